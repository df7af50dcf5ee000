package authkit

import (
	"context"
	"time"

	"github.com/ferrytech/authkit/session"
)

// State is the coordinator's lifecycle state.
type State uint8

const (
	// StateUnauthenticated means no session exists.
	StateUnauthenticated State = iota
	// StateAuthenticating means a login call is in flight.
	StateAuthenticating
	// StateAuthenticated means a session is established.
	StateAuthenticated
	// StateRefreshing means a token renewal is in flight.
	StateRefreshing
	// StateLoggingOut means local teardown is in progress.
	StateLoggingOut
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateLoggingOut:
		return "logging_out"
	default:
		return "unknown"
	}
}

// Credentials is the login input. Role is optional and forwarded verbatim
// to the backend. Remember selects long-lived retention in the credential
// store; when false the session does not survive a process restart.
type Credentials struct {
	Identity string
	Password string
	Role     string
	Remember bool
}

// TokenGrant is a successful login or refresh payload normalized by the
// transport: opaque tokens plus absolute expiry instants. User is nil on
// refresh responses that omit the user record, in which case the
// coordinator keeps the previously cached user.
type TokenGrant struct {
	AccessToken   string
	RefreshToken  string
	User          *session.User
	AccessExpiry  time.Time
	RefreshExpiry time.Time
}

// Backend is the opaque request surface the coordinator depends on. The
// transport package ships an HTTP implementation; tests substitute fakes.
//
// Login and Refresh errors must wrap [ErrInvalidCredentials] when the
// backend rejected the request and [ErrBackendUnavailable] on transport
// failure, so the coordinator can apply the correct policy.
type Backend interface {
	Login(ctx context.Context, creds Credentials) (*TokenGrant, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error)
	Logout(ctx context.Context, accessToken string) error
}

// Snapshot is the read-only view handed to consumers. IsAuthenticated is
// true iff a session exists, its tokens are non-empty, and the access
// token has not expired.
type Snapshot struct {
	State           State
	User            *session.User
	IsAuthenticated bool
	IsLoading       bool
	Err             error
	AccessExpiry    time.Time
	RefreshExpiry   time.Time
}

// Subscriber receives a [Snapshot] after every state change. Subscribers
// run synchronously on the goroutine driving the transition and must not
// block.
type Subscriber func(Snapshot)
