package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix prefixes the Redis counter keys.
const DefaultKeyPrefix = "evolve:throttle:"

// windowScript increments the window counter and starts the window on the
// first hit. Returns 1 when the hit fits in the limit.
var windowScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
	return 0
end
return 1
`)

// RedisLimiter is a fixed-window limiter whose counter lives in Redis, so
// every process using the same key shares one budget. At a window boundary
// up to twice the limit can start.
//
// Redis errors fail open: the work is allowed and the error logged.
type RedisLimiter struct {
	client redis.Cmdable
	key    string
	limit  int
	window time.Duration
	logger *slog.Logger
}

// RedisOption configures a RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithLogger sets the logger used for Redis errors.
func WithLogger(l *slog.Logger) RedisOption {
	return func(r *RedisLimiter) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRedisLimiter allows limit events per window under name.
func NewRedisLimiter(client redis.Cmdable, name string, limit int, window time.Duration, opts ...RedisOption) *RedisLimiter {
	if limit < 1 {
		limit = 1
	}
	if window < time.Millisecond {
		window = time.Second
	}
	r := &RedisLimiter{
		client: client,
		key:    DefaultKeyPrefix + name,
		limit:  limit,
		window: window,
		logger: slog.Default().With("component", "ratelimit"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Allow counts one hit in the current window.
func (r *RedisLimiter) Allow(ctx context.Context) bool {
	ok, err := windowScript.Run(ctx, r.client, []string{r.key}, r.limit, r.window.Milliseconds()).Int()
	if err != nil {
		r.logger.Warn("throttle check failed, allowing", "key", r.key, "error", err)
		return true
	}
	return ok == 1
}

// Wait polls Allow until it succeeds or ctx ends.
func (r *RedisLimiter) Wait(ctx context.Context) error {
	interval := r.window / time.Duration(r.limit)
	if interval <= 0 {
		interval = time.Millisecond
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if r.Allow(ctx) {
				return nil
			}
			timer.Reset(interval)
		}
	}
}

// Remaining returns how many events the current window still allows.
func (r *RedisLimiter) Remaining(ctx context.Context) (int, error) {
	used, err := r.client.Get(ctx, r.key).Int()
	if errors.Is(err, redis.Nil) {
		return r.limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return max(r.limit-used, 0), nil
}

// Reset clears the current window.
func (r *RedisLimiter) Reset(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

var _ Limiter = (*RedisLimiter)(nil)
