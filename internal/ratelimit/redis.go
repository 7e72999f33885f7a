package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter enforces the same fixed-window policy as Window, but
// against a shared Redis counter, so the limit holds across multiple
// service instances.
//
// Scheme: INCR the key; the call that creates it (reply == 1) also sets
// the expiry to the window length. Redis evicts expired keys itself, so
// there is no sweep to run. On denial, the key's TTL is the time until
// the window resets.
type RedisLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		max:    max,
		window: window,
	}
}

func (l *RedisLimiter) Check(ctx context.Context, key Key) (Decision, error) {
	k := FormatKey(key)

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("incr rate key: %w", err)
	}

	if count == 1 {
		// First admission in this window; start the clock.
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("expire rate key: %w", err)
		}
	}

	if count <= int64(l.max) {
		return Decision{Allowed: true}, nil
	}

	ttl, err := l.client.TTL(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ttl rate key: %w", err)
	}
	if ttl < 0 {
		// Expiry was lost (e.g. the Expire above raced a restart).
		// Re-arm it so the key can't deny forever.
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("re-expire rate key: %w", err)
		}
		ttl = l.window
	}

	return Decision{Allowed: false, RetryAfter: retryAfter(ttl)}, nil
}

var _ Limiter = (*RedisLimiter)(nil)
