package permission

import (
	"strings"

	"github.com/ferrytech/authkit/session"
)

// Wildcard is the global grant matching every permission.
const Wildcard = "*"

// DefaultAdminRole is the role identifier that short-circuits every
// permission check.
const DefaultAdminRole = "admin"

// Resolver evaluates permission and role checks against a cached user
// record. The zero value uses [DefaultAdminRole].
type Resolver struct {
	adminRole string
}

// NewResolver creates a resolver. adminRole may be empty to accept the
// default.
func NewResolver(adminRole string) *Resolver {
	if adminRole == "" {
		adminRole = DefaultAdminRole
	}
	return &Resolver{adminRole: adminRole}
}

// HasPermission reports whether the user holds perm. A grant matches when
// it is the global wildcard, the exact permission string, or the wildcard
// for the permission's module (the substring before the first dot). Users
// whose role is the admin role pass every check.
func (r *Resolver) HasPermission(u *session.User, perm string) bool {
	if u == nil || perm == "" {
		return false
	}
	if u.RoleID() == r.admin() {
		return true
	}

	module := ""
	if i := strings.Index(perm, "."); i > 0 {
		module = perm[:i]
	}

	for _, grants := range [][]string{u.Permissions, u.RolePermissions()} {
		for _, grant := range grants {
			if grant == Wildcard || grant == perm {
				return true
			}
			if module != "" && grant == module+".*" {
				return true
			}
		}
	}
	return false
}

// HasRole reports whether the user's role identifier equals roleID. This is
// a string identity comparison; there is no role hierarchy.
func (r *Resolver) HasRole(u *session.User, roleID string) bool {
	if u == nil || roleID == "" {
		return false
	}
	return u.RoleID() == roleID
}

func (r *Resolver) admin() string {
	if r == nil || r.adminRole == "" {
		return DefaultAdminRole
	}
	return r.adminRole
}
