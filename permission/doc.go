// Package permission answers "can this user do X" from the cached user and
// role record, without contacting the backend.
//
// A permission string is either a concrete capability ("payroll.read"), a
// module-level wildcard ("payroll.*"), or the global wildcard "*". Grants
// are the union of the user-level list and the role record's list; a bare
// string role contributes no grants of its own.
package permission
