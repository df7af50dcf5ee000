package authkit

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned when the backend rejects a login.
	// The backend's message is attached by wrapping.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLockedOut is returned when the rate limiter denies a login
	// before any network call. See [LockoutError] for the remaining time.
	ErrLockedOut = errors.New("login locked out")
	// ErrBackendUnavailable is returned on transport-level failure
	// reaching the backend.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrRefreshExpired is returned when the refresh token has expired;
	// the session is unrecoverable and has been cleared.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrMalformedGrant is returned when a backend response is missing
	// tokens, user record, or expiry instants.
	ErrMalformedGrant = errors.New("malformed token grant")
	// ErrNotAuthenticated is returned when an operation requires an
	// active session and none exists.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrAlreadyAuthenticated is returned when login is attempted while
	// a session is already established.
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	// ErrLoginInProgress is returned when login is attempted while
	// another login or logout is still resolving.
	ErrLoginInProgress = errors.New("login already in progress")
	// ErrCoordinatorClosed is returned after [Coordinator.Close].
	ErrCoordinatorClosed = errors.New("coordinator closed")
)

// LockoutError carries the remaining lockout duration for a denied login.
// It unwraps to [ErrLockedOut].
type LockoutError struct {
	Identity  string
	Remaining time.Duration
}

// Error implements error.
func (e *LockoutError) Error() string {
	return fmt.Sprintf("login for %q locked out for another %s", e.Identity, e.Remaining.Round(time.Second))
}

// Unwrap lets errors.Is match [ErrLockedOut].
func (e *LockoutError) Unwrap() error {
	return ErrLockedOut
}
