package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter enforces the lockout policy with Redis counters so several
// processes sharing one backend see the same failure history. The counter
// TTL is refreshed on every failure, which makes Redis expire the record
// exactly one lockout window after the most recent failure.
type RedisLimiter struct {
	client redis.UniversalClient
	config Config
	prefix string
}

// NewRedis creates a Redis-backed limiter. prefix namespaces the counters,
// defaulting to "authkit".
func NewRedis(client redis.UniversalClient, cfg Config, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "authkit"
	}
	return &RedisLimiter{
		client: client,
		config: cfg.withDefaults(),
		prefix: prefix,
	}
}

func (l *RedisLimiter) key(identity string) string {
	return l.prefix + ":fl:" + identity
}

// Check implements [Limiter]. Expired records are dropped by Redis itself
// via the TTL set in RecordFailure.
func (l *RedisLimiter) Check(ctx context.Context, identity string) (Decision, error) {
	count, err := l.client.Get(ctx, l.key(identity)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Decision{Allowed: true}, nil
		}
		return Decision{}, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}

	if count < int64(l.config.MaxAttempts) {
		return Decision{Allowed: true, Failures: int(count)}, nil
	}

	remaining, err := l.client.PTTL(ctx, l.key(identity)).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if remaining <= 0 {
		// Counter exists without a TTL only if a failure write was
		// interrupted; treat it as stale rather than locking forever.
		_ = l.client.Del(ctx, l.key(identity)).Err()
		return Decision{Allowed: true}, nil
	}

	return Decision{
		Allowed:   false,
		Remaining: remaining,
		Failures:  int(count),
	}, nil
}

// RecordFailure implements [Limiter].
func (l *RedisLimiter) RecordFailure(ctx context.Context, identity string) error {
	pipe := l.client.TxPipeline()
	pipe.Incr(ctx, l.key(identity))
	pipe.Expire(ctx, l.key(identity), l.config.LockoutWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return nil
}

// Clear implements [Limiter].
func (l *RedisLimiter) Clear(ctx context.Context, identity string) error {
	if err := l.client.Del(ctx, l.key(identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return nil
}
