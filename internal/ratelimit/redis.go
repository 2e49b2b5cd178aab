package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements Limiter with a fixed-window counter in Redis,
// giving all replicas of the service a shared view of each key's budget.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewRedisLimiter creates a limiter allowing limit requests per key per window.
// The client is owned by the caller; Close does not close it.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
	}
}

// Allow increments the window counter for key and reports whether the key is
// still under its budget. The first hit in a window sets the expiry.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := "ratelimit:" + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: incr %s: %w", redisKey, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit: expire %s: %w", redisKey, err)
		}
	}
	return count <= l.limit, nil
}

// Close is a no-op; the Redis client belongs to the caller.
func (l *RedisLimiter) Close() error { return nil }
