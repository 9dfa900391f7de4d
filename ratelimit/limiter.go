// Package ratelimit throttles migration work.
//
// Batch migrations can touch millions of stored values; a Limiter caps how
// fast steps are started so the backing stores are not saturated.
// TokenBucket limits a single process. RedisLimiter shares one budget across
// every process migrating the same data set.
//
// # Basic Usage
//
//	// 500 values per second, bursts of 50
//	limiter := ratelimit.NewTokenBucket(500, 50)
//
//	results := exec.ExecuteBatch(ctx, chain, values,
//	    migration.WithLimiter(limiter))
//
// A Limiter can also be used directly:
//
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter decides when the next unit of work may start.
// Implementations are safe for concurrent use.
type Limiter interface {
	// Allow reports whether work may start now, consuming a slot if so.
	Allow(ctx context.Context) bool

	// Wait blocks until work may start or ctx ends.
	Wait(ctx context.Context) error
}

// TokenBucket is an in-process limiter backed by golang.org/x/time/rate.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a limiter allowing rps events per second with
// bursts of up to burst events. A non-positive rps disables limiting.
func NewTokenBucket(rps float64, burst int) *TokenBucket {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(limit, burst)}
}

// Allow consumes a token if one is available.
func (t *TokenBucket) Allow(_ context.Context) bool {
	return t.limiter.Allow()
}

// Wait blocks until a token is available.
func (t *TokenBucket) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// SetLimit changes the rate, e.g. to back off while a store is degraded.
func (t *TokenBucket) SetLimit(rps float64) {
	t.limiter.SetLimit(rate.Limit(rps))
}

// Limit returns the rate in events per second.
func (t *TokenBucket) Limit() float64 {
	return float64(t.limiter.Limit())
}

// Burst returns the bucket size.
func (t *TokenBucket) Burst() int {
	return t.limiter.Burst()
}

var _ Limiter = (*TokenBucket)(nil)
