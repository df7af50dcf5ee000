// Package transport ships the HTTP implementation of the coordinator's
// backend contract: JSON login and refresh calls plus the best-effort
// bearer logout notice. Errors are normalized onto the authkit sentinels
// so the coordinator can tell a rejected credential from an unreachable
// server.
package transport
