package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements the fixed-window counter on Redis so the budget is
// shared across processes. INCR+EXPIRE run in one pipeline; Redis serializes
// the increment, keeping check-and-consume atomic.
type RedisLimiter struct {
	client *redis.Client
	window time.Duration
}

// NewRedisLimiter connects to Redis at addr and verifies the connection.
func NewRedisLimiter(addr string, window time.Duration) (*RedisLimiter, error) {
	if window <= 0 {
		window = time.Minute
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ratelimit: failed to connect to redis: %w", err)
	}

	return &RedisLimiter{client: client, window: window}, nil
}

// Allow increments the (keyID, windowIndex) counter and reports whether the
// request fits the limit. Over-limit requests are decremented back so a
// denied request does not consume budget.
func (l *RedisLimiter) Allow(ctx context.Context, keyID string, limit int) (bool, int, error) {
	if limit <= 0 {
		limit = 1
	}
	idx := time.Now().UnixNano() / int64(l.window)
	key := fmt.Sprintf("ratelimit:%s:%d", keyID, idx)

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	// Two windows of TTL so a counter outlives its own window but not much more.
	pipe.Expire(ctx, key, 2*l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("ratelimit: redis pipeline failed: %w", err)
	}

	count := int(incr.Val())
	if count > limit {
		// Give the slot back; the denied request must not charge the window.
		l.client.Decr(ctx, key)
		return false, 0, nil
	}
	return true, limit - count, nil
}

// Close releases the Redis connection.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
