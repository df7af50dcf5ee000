package authkit

import (
	"errors"
	"time"

	"github.com/ferrytech/authkit/ratelimit"
	"github.com/ferrytech/authkit/sessionclock"
)

// Config defines coordinator tuning. Construct it once, adjust what you
// need, and treat it as immutable after [Builder.Build].
type Config struct {
	Clock   sessionclock.Config
	Limiter ratelimit.Config
	Backend BackendConfig
	Audit   AuditConfig
	Metrics MetricsConfig

	// AdminRole is the role identifier that short-circuits permission
	// checks. Empty selects "admin".
	AdminRole string
}

/*
====================================
BACKEND CONFIG
====================================
*/

// BackendConfig bounds the coordinator's backend calls. Unlike the
// transport's own settings these apply per operation, so a hung request
// can never pin the coordinator in Authenticating or Refreshing.
type BackendConfig struct {
	// RequestTimeout bounds login and refresh calls.
	RequestTimeout time.Duration
	// LogoutTimeout bounds the fire-and-forget backend logout notice.
	LogoutTimeout time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Clock:   sessionclock.Config{}.WithDefaults(),
		Limiter: ratelimit.Config{MaxAttempts: ratelimit.DefaultMaxAttempts, LockoutWindow: ratelimit.DefaultLockoutWindow},
		Backend: BackendConfig{
			RequestTimeout: 15 * time.Second,
			LogoutTimeout:  5 * time.Second,
		},
		Audit:   AuditConfig{Enabled: true, BufferSize: 64, DropIfFull: true},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.Backend.RequestTimeout <= 0 {
		return errors.New("Backend.RequestTimeout must be positive")
	}
	if c.Backend.LogoutTimeout <= 0 {
		return errors.New("Backend.LogoutTimeout must be positive")
	}
	if c.Limiter.MaxAttempts < 0 {
		return errors.New("Limiter.MaxAttempts cannot be negative")
	}
	if c.Limiter.LockoutWindow < 0 {
		return errors.New("Limiter.LockoutWindow cannot be negative")
	}
	if c.Clock.PolicyInterval < 0 || c.Clock.DisplayInterval < 0 {
		return errors.New("Clock intervals cannot be negative")
	}
	if c.Clock.RefreshThreshold < 0 || c.Clock.WarningThreshold < 0 {
		return errors.New("Clock thresholds cannot be negative")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("Audit.BufferSize cannot be negative")
	}
	return nil
}

func cloneConfig(c Config) Config {
	// All fields are values; a shallow copy detaches the caller's copy.
	return c
}
