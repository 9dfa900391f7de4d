package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestTokenBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("reports configuration", func(t *testing.T) {
		limiter := NewTokenBucket(100, 10)
		if limiter.Limit() != 100 {
			t.Errorf("expected limit 100, got %f", limiter.Limit())
		}
		if limiter.Burst() != 10 {
			t.Errorf("expected burst 10, got %d", limiter.Burst())
		}
	})

	t.Run("burst then exhausted", func(t *testing.T) {
		limiter := NewTokenBucket(1, 3)
		for i := 0; i < 3; i++ {
			if !limiter.Allow(ctx) {
				t.Fatalf("expected Allow at %d", i)
			}
		}
		if limiter.Allow(ctx) {
			t.Error("expected bucket to be empty")
		}
	})

	t.Run("non-positive rate is unlimited", func(t *testing.T) {
		limiter := NewTokenBucket(0, 0)
		for i := 0; i < 1000; i++ {
			if !limiter.Allow(ctx) {
				t.Fatalf("expected unlimited bucket to allow at %d", i)
			}
		}
	})

	t.Run("Wait refills", func(t *testing.T) {
		limiter := NewTokenBucket(100, 1)
		limiter.Allow(ctx)

		waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		if err := limiter.Wait(waitCtx); err != nil {
			t.Errorf("Wait failed: %v", err)
		}
	})

	t.Run("Wait honours cancellation", func(t *testing.T) {
		limiter := NewTokenBucket(0.001, 1)
		limiter.Allow(ctx)

		waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		if err := limiter.Wait(waitCtx); err == nil {
			t.Error("expected Wait to fail")
		}
	})

	t.Run("SetLimit", func(t *testing.T) {
		limiter := NewTokenBucket(10, 1)
		limiter.SetLimit(50)
		if limiter.Limit() != 50 {
			t.Errorf("expected limit 50, got %f", limiter.Limit())
		}
	})
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("window limit", func(t *testing.T) {
		mr, client := newRedis(t)
		limiter := NewRedisLimiter(client, "users", 3, time.Second)

		for i := 0; i < 3; i++ {
			if !limiter.Allow(ctx) {
				t.Fatalf("expected Allow at %d", i)
			}
		}
		if limiter.Allow(ctx) {
			t.Error("expected window to be exhausted")
		}

		remaining, err := limiter.Remaining(ctx)
		if err != nil {
			t.Fatalf("Remaining failed: %v", err)
		}
		if remaining != 0 {
			t.Errorf("expected 0 remaining, got %d", remaining)
		}

		mr.FastForward(2 * time.Second)
		if !limiter.Allow(ctx) {
			t.Error("expected new window to allow")
		}
	})

	t.Run("limiters share a key", func(t *testing.T) {
		_, client := newRedis(t)
		a := NewRedisLimiter(client, "orders", 2, time.Minute)
		b := NewRedisLimiter(client, "orders", 2, time.Minute)

		a.Allow(ctx)
		b.Allow(ctx)
		if a.Allow(ctx) || b.Allow(ctx) {
			t.Error("expected shared budget to be exhausted")
		}
	})

	t.Run("Remaining on fresh key", func(t *testing.T) {
		_, client := newRedis(t)
		limiter := NewRedisLimiter(client, "fresh", 5, time.Second)
		remaining, err := limiter.Remaining(ctx)
		if err != nil {
			t.Fatalf("Remaining failed: %v", err)
		}
		if remaining != 5 {
			t.Errorf("expected 5 remaining, got %d", remaining)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		_, client := newRedis(t)
		limiter := NewRedisLimiter(client, "reset", 1, time.Minute)
		limiter.Allow(ctx)
		if err := limiter.Reset(ctx); err != nil {
			t.Fatalf("Reset failed: %v", err)
		}
		if !limiter.Allow(ctx) {
			t.Error("expected Allow after Reset")
		}
	})

	t.Run("Wait honours cancellation", func(t *testing.T) {
		_, client := newRedis(t)
		limiter := NewRedisLimiter(client, "wait", 1, time.Hour)
		limiter.Allow(ctx)

		waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		if err := limiter.Wait(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected DeadlineExceeded, got %v", err)
		}
	})

	t.Run("fails open", func(t *testing.T) {
		mr, client := newRedis(t)
		limiter := NewRedisLimiter(client, "down", 1, time.Second)
		mr.Close()
		if !limiter.Allow(ctx) {
			t.Error("expected Allow when redis is unavailable")
		}
	})
}
