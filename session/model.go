package session

import "time"

// RoleRecord is the expanded form of a user's role. Backends may return the
// role either as a bare identifier string or as a full record carrying its
// own permission list.
type RoleRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// User is the cached account record attached to a session. Role holds the
// role identifier; RoleDetail is non-nil when the backend supplied a full
// [RoleRecord] instead of a bare string.
type User struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	DisplayName string      `json:"displayName,omitempty"`
	Role        string      `json:"role,omitempty"`
	RoleDetail  *RoleRecord `json:"roleDetail,omitempty"`
	Permissions []string    `json:"permissions,omitempty"`
}

// RoleID returns the effective role identifier: the RoleDetail ID when a
// full record is present, otherwise the bare Role string.
func (u *User) RoleID() string {
	if u == nil {
		return ""
	}
	if u.RoleDetail != nil && u.RoleDetail.ID != "" {
		return u.RoleDetail.ID
	}
	return u.Role
}

// RolePermissions returns the permission list carried by the role record,
// or nil when the role is a bare string.
func (u *User) RolePermissions() []string {
	if u == nil || u.RoleDetail == nil {
		return nil
	}
	return u.RoleDetail.Permissions
}

// Session is the tuple of tokens, cached user record, and absolute expiry
// instants currently considered valid. Both expiries are instants, never
// durations, and AccessExpiry never exceeds RefreshExpiry for a session
// accepted by [Session.Valid].
type Session struct {
	AccessToken   string    `json:"accessToken"`
	RefreshToken  string    `json:"refreshToken"`
	User          User      `json:"user"`
	AccessExpiry  time.Time `json:"accessExpiry"`
	RefreshExpiry time.Time `json:"refreshExpiry"`
}

// Valid reports whether the session is structurally complete: both tokens
// non-empty, both expiries set, and the access expiry not after the refresh
// expiry. A session failing Valid is treated as absent, never healed
// field by field.
func (s *Session) Valid() bool {
	if s == nil {
		return false
	}
	if s.AccessToken == "" || s.RefreshToken == "" {
		return false
	}
	if s.AccessExpiry.IsZero() || s.RefreshExpiry.IsZero() {
		return false
	}
	return !s.AccessExpiry.After(s.RefreshExpiry)
}

// AccessExpired reports whether the access token is unusable at the given
// instant.
func (s *Session) AccessExpired(now time.Time) bool {
	return s == nil || !now.Before(s.AccessExpiry)
}

// RefreshExpired reports whether the refresh token is unusable at the given
// instant. Once true the session is unrecoverable locally.
func (s *Session) RefreshExpired(now time.Time) bool {
	return s == nil || !now.Before(s.RefreshExpiry)
}

// Active reports whether the session authorizes API calls at the given
// instant: tokens present and the access token not yet expired.
func (s *Session) Active(now time.Time) bool {
	if s == nil || s.AccessToken == "" || s.RefreshToken == "" {
		return false
	}
	return now.Before(s.AccessExpiry)
}

// Clone returns a deep copy so callers can hand sessions across goroutine
// boundaries without sharing the user record.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.User.RoleDetail != nil {
		rd := *s.User.RoleDetail
		rd.Permissions = append([]string(nil), s.User.RoleDetail.Permissions...)
		out.User.RoleDetail = &rd
	}
	out.User.Permissions = append([]string(nil), s.User.Permissions...)
	return &out
}
