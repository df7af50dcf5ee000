package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedis(client, Config{}, "authkit-test"), mr
}

func TestRedisLockoutAfterMaxFailures(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newRedisLimiter(t)

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
	if dec.Remaining <= 0 || dec.Remaining > DefaultLockoutWindow {
		t.Fatalf("remaining out of range: %v", dec.Remaining)
	}
}

func TestRedisHardResetAfterWindow(t *testing.T) {
	ctx := context.Background()
	limiter, mr := newRedisLimiter(t)

	for i := 0; i < DefaultMaxAttempts; i++ {
		if err := limiter.RecordFailure(ctx, "alice"); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}

	mr.FastForward(DefaultLockoutWindow + time.Second)

	dec, err := limiter.Check(ctx, "alice")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !dec.Allowed || dec.Failures != 0 {
		t.Fatalf("expired counter should reset fully, got %+v", dec)
	}
}

func TestRedisIdentitiesAreIndependent(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newRedisLimiter(t)

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

func TestRedisClearResetsCounter(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newRedisLimiter(t)

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
	if !dec.Allowed {
		t.Fatal("cleared identity should be allowed")
	}
}
