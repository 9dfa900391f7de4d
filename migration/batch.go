package migration

import (
	"context"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rbaliyan/evolve/ratelimit"
)

// BatchOption configures ExecuteBatch.
type BatchOption func(*batchOptions)

type batchOptions struct {
	concurrency int
	limiter     ratelimit.Limiter
	exec        []ExecOption
}

// WithConcurrency sets how many values are migrated at once
// (default: GOMAXPROCS).
func WithConcurrency(n int) BatchOption {
	return func(o *batchOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLimiter throttles how fast values are started.
func WithLimiter(l ratelimit.Limiter) BatchOption {
	return func(o *batchOptions) {
		o.limiter = l
	}
}

// WithRateLimit throttles the batch to rps values per second using an
// in-process token bucket.
func WithRateLimit(rps float64, burst int) BatchOption {
	return func(o *batchOptions) {
		o.limiter = ratelimit.NewTokenBucket(rps, burst)
	}
}

// WithExecOptions passes options to every chain execution of the batch.
func WithExecOptions(opts ...ExecOption) BatchOption {
	return func(o *batchOptions) {
		o.exec = append(o.exec, opts...)
	}
}

// BatchResult holds the per-value results of ExecuteBatch in input order.
type BatchResult struct {
	ID        string
	Results   []*Result
	Succeeded int
	Failed    int
}

// Failures returns the indexes of the values that failed.
func (b *BatchResult) Failures() []int {
	var idx []int
	for i, r := range b.Results {
		if !r.Success {
			idx = append(idx, i)
		}
	}
	return idx
}

// ExecuteBatch runs chain on every value independently. Values are migrated
// concurrently; each one follows ExecuteChain semantics and a failure of
// one value never affects the others. Values not started before ctx ends
// are reported with ErrCancelled.
func (e *Executor) ExecuteBatch(ctx context.Context, chain *Chain, values []any, opts ...BatchOption) *BatchResult {
	o := batchOptions{concurrency: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&o)
	}

	batch := &BatchResult{
		ID:      uuid.NewString(),
		Results: make([]*Result, len(values)),
	}
	if chain == nil {
		for i := range values {
			batch.Results[i] = failure(ErrNoPath)
		}
		batch.Failed = len(values)
		return batch
	}

	e.logger.Info("executing batch",
		"batch_id", batch.ID,
		"schema", chain.Name,
		"from", chain.From,
		"to", chain.To,
		"values", len(values),
		"concurrency", o.concurrency)

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, v := range values {
		if err := e.admit(ctx, o.limiter); err != nil {
			batch.Results[i] = failure(fmt.Errorf("%w: %w", ErrCancelled, err))
			continue
		}
		g.Go(func() error {
			// each goroutine writes only its own slot
			batch.Results[i] = e.ExecuteChain(ctx, chain, v, o.exec...)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range batch.Results {
		if r.Success {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
	}

	e.logger.Info("batch completed",
		"batch_id", batch.ID,
		"succeeded", batch.Succeeded,
		"failed", batch.Failed)
	return batch
}

func (e *Executor) admit(ctx context.Context, l ratelimit.Limiter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
