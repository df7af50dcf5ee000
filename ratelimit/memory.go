package ratelimit

import (
	"context"
	"sync"
	"time"
)

// attemptRecord tracks failures for one identity.
type attemptRecord struct {
	failureCount  int
	lastFailureAt time.Time
}

// MemoryLimiter is an in-process [Limiter] for single-client deployments.
// Records do not survive a restart; the Redis limiter exists for
// deployments that need shared or durable counters.
type MemoryLimiter struct {
	config Config
	now    func() time.Time

	mu      sync.Mutex
	records map[string]*attemptRecord
}

// MemoryOption configures a [MemoryLimiter].
type MemoryOption func(*MemoryLimiter)

// WithNow overrides the limiter's time source. Intended for tests.
func WithNow(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		l.now = now
	}
}

// NewMemory creates an in-memory limiter with the given policy.
func NewMemory(cfg Config, opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		config:  cfg.withDefaults(),
		now:     time.Now,
		records: make(map[string]*attemptRecord),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check implements [Limiter].
func (l *MemoryLimiter) Check(_ context.Context, identity string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[identity]
	if !ok {
		return Decision{Allowed: true}, nil
	}

	now := l.now()
	elapsed := now.Sub(rec.lastFailureAt)
	if elapsed > l.config.LockoutWindow {
		// Window elapsed: hard reset, not a gradual decay.
		delete(l.records, identity)
		return Decision{Allowed: true}, nil
	}

	if rec.failureCount >= l.config.MaxAttempts {
		return Decision{
			Allowed:   false,
			Remaining: l.config.LockoutWindow - elapsed,
			Failures:  rec.failureCount,
		}, nil
	}

	return Decision{Allowed: true, Failures: rec.failureCount}, nil
}

// RecordFailure implements [Limiter].
func (l *MemoryLimiter) RecordFailure(_ context.Context, identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[identity]
	if !ok || now.Sub(rec.lastFailureAt) > l.config.LockoutWindow {
		rec = &attemptRecord{}
		l.records[identity] = rec
	}
	rec.failureCount++
	rec.lastFailureAt = now
	return nil
}

// Clear implements [Limiter].
func (l *MemoryLimiter) Clear(_ context.Context, identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.records, identity)
	return nil
}
