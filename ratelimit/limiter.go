package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Default lockout policy.
const (
	DefaultMaxAttempts   = 5
	DefaultLockoutWindow = 15 * time.Minute
)

// ErrLimiterUnavailable indicates the limiter backend is unreachable.
var ErrLimiterUnavailable = errors.New("rate limiter backend unavailable")

// Config holds lockout tuning parameters. Zero values fall back to the
// package defaults.
type Config struct {
	MaxAttempts   int
	LockoutWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.LockoutWindow <= 0 {
		c.LockoutWindow = DefaultLockoutWindow
	}
	return c
}

// Decision is the outcome of a [Limiter.Check] call. Remaining is zero when
// the identity is allowed, otherwise the time until the lockout lifts.
type Decision struct {
	Allowed   bool
	Remaining time.Duration
	Failures  int
}

// Limiter is consulted before any login reaches the backend.
type Limiter interface {
	// Check reports whether a login attempt for identity may proceed.
	// An identity with no record, or whose most recent failure is older
	// than the lockout window, is allowed and its stale record dropped.
	Check(ctx context.Context, identity string) (Decision, error)

	// RecordFailure increments the failure counter for identity and
	// stamps the failure time.
	RecordFailure(ctx context.Context, identity string) error

	// Clear removes the failure record for identity. Called on
	// successful login.
	Clear(ctx context.Context, identity string) error
}
