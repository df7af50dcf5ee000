package ratelimit

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(t *testing.T) (*MemoryLimiter, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	return NewMemory(Config{}, WithNow(clock.Now)), clock
}

func TestMemoryAllowsUnknownIdentity(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t)

	dec, err := limiter.Check(ctx, "alice")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !dec.Allowed || dec.Remaining != 0 {
		t.Fatalf("unknown identity should be allowed, got %+v", dec)
	}
}

func TestMemoryLockoutAfterMaxFailures(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t)

	for i := 0; i < DefaultMaxAttempts; i++ {
		dec, err := limiter.Check(ctx, "alice")
		if err != nil {
			t.Fatalf("check #%d failed: %v", i+1, err)
		}
		if !dec.Allowed {
			t.Fatalf("attempt %d should still be allowed", i+1)
		}
		if err := limiter.RecordFailure(ctx, "alice"); err != nil {
			t.Fatalf("record failure #%d: %v", i+1, err)
		}
	}

	dec, err := limiter.Check(ctx, "alice")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if dec.Allowed {
		t.Fatal("sixth attempt should be denied")
	}
	if dec.Remaining <= 0 {
		t.Fatalf("lockout should carry a positive remaining time, got %v", dec.Remaining)
	}
	if dec.Failures != DefaultMaxAttempts {
		t.Fatalf("failures = %d, want %d", dec.Failures, DefaultMaxAttempts)
	}
}

func TestMemoryIdentitiesAreIndependent(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t)

	for i := 0; i < DefaultMaxAttempts; i++ {
		if err := limiter.RecordFailure(ctx, "alice"); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}

	dec, err := limiter.Check(ctx, "bob")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !dec.Allowed {
		t.Fatal("bob must be unaffected by alice's lockout")
	}
}

func TestMemoryHardResetAfterWindow(t *testing.T) {
	ctx := context.Background()
	limiter, clock := newTestLimiter(t)

	for i := 0; i < DefaultMaxAttempts; i++ {
		if err := limiter.RecordFailure(ctx, "alice"); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}

	clock.Advance(DefaultLockoutWindow + time.Second)

	dec, err := limiter.Check(ctx, "alice")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !dec.Allowed {
		t.Fatal("lockout should lift once the window elapses")
	}
	if dec.Failures != 0 {
		t.Fatalf("counter must reset to zero, not decay: got %d", dec.Failures)
	}
}

func TestMemoryWindowMeasuredFromLastFailure(t *testing.T) {
	ctx := context.Background()
	limiter, clock := newTestLimiter(t)

	for i := 0; i < DefaultMaxAttempts; i++ {
		if err := limiter.RecordFailure(ctx, "alice"); err != nil {
			t.Fatalf("record failure: %v", err)
		}
		clock.Advance(time.Minute)
	}

	// 14 minutes after the last failure: still locked.
	clock.Advance(13 * time.Minute)
	dec, err := limiter.Check(ctx, "alice")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if dec.Allowed {
		t.Fatal("lockout window counts from the most recent failure")
	}

	clock.Advance(2 * time.Minute)
	dec, err = limiter.Check(ctx, "alice")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !dec.Allowed {
		t.Fatal("lockout should lift 15 minutes after the last failure")
	}
}

func TestMemoryClearResetsCounter(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t)

	for i := 0; i < DefaultMaxAttempts; i++ {
		if err := limiter.RecordFailure(ctx, "alice"); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	if err := limiter.Clear(ctx, "alice"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	dec, err := limiter.Check(ctx, "alice")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !dec.Allowed || dec.Failures != 0 {
		t.Fatalf("cleared identity should start fresh, got %+v", dec)
	}
}
