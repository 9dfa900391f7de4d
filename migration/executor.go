package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/rbaliyan/evolve/migration"

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracing enables/disables spans for steps and chains (default: true).
func WithTracing(enabled bool) ExecutorOption {
	return func(e *Executor) {
		e.tracingEnabled = enabled
	}
}

// WithMetrics enables/disables step and chain metrics (default: true).
func WithMetrics(enabled bool) ExecutorOption {
	return func(e *Executor) {
		e.metricsEnabled = enabled
	}
}

// WithRecovery enables/disables turning transform panics into
// ErrExecution results. Recovery should always be enabled, can be disabled
// for testing.
func WithRecovery(enabled bool) ExecutorOption {
	return func(e *Executor) {
		e.recovery = enabled
	}
}

// WithClock sets the time source used for provenance timestamps.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// ExecOption configures a single execution.
type ExecOption func(*execOptions)

type execOptions struct {
	dryRun      bool
	provenance  bool
	stopOnError bool
	// skipInput disables input validation for dry-run steps after the
	// first, whose input is still the untransformed original.
	skipInput bool
}

// DryRun validates the input without calling any transform. The original
// input is returned as Data.
func DryRun(enabled bool) ExecOption {
	return func(o *execOptions) {
		o.dryRun = enabled
	}
}

// WithProvenance toggles attaching a Provenance to the result (default: true).
func WithProvenance(enabled bool) ExecOption {
	return func(o *execOptions) {
		o.provenance = enabled
	}
}

// StopOnError makes a chain stop at its first failing step (default: true).
// When disabled, later steps receive the last successful value.
func StopOnError(enabled bool) ExecOption {
	return func(o *execOptions) {
		o.stopOnError = enabled
	}
}

func newExecOptions(opts []ExecOption) execOptions {
	o := execOptions{provenance: true, stopOnError: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Executor runs migrations. It holds no locks and is safe for concurrent
// use; every call works on its own data.
type Executor struct {
	logger         *slog.Logger
	tracingEnabled bool
	metricsEnabled bool
	recovery       bool
	now            func() time.Time

	tracer   trace.Tracer
	steps    metric.Int64Counter
	chains   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewExecutor creates an executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		logger:         slog.Default().With("component", "migration"),
		tracingEnabled: true,
		metricsEnabled: true,
		recovery:       true,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.tracingEnabled {
		e.tracer = otel.Tracer(instrumentationName)
	}
	if e.metricsEnabled {
		meter := otel.Meter(instrumentationName)
		// instrument errors leave the field nil; record checks for that
		e.steps, _ = meter.Int64Counter("evolve.migration.steps",
			metric.WithDescription("Total number of migration steps executed"))
		e.chains, _ = meter.Int64Counter("evolve.migration.chains",
			metric.WithDescription("Total number of migration chains executed"))
		e.duration, _ = meter.Float64Histogram("evolve.migration.duration",
			metric.WithDescription("Duration of migration steps and chains"),
			metric.WithUnit("s"))
	}
	return e
}

// ExecuteStep runs the forward transform of m on data.
//
// The input is parsed with the source schema first (unless disabled) and the
// transform receives the parsed value. The output is parsed with the target
// schema and the parsed value is returned. Failures are reported in the
// result, never as a Go error.
func (e *Executor) ExecuteStep(ctx context.Context, m *Migration, data any, opts ...ExecOption) *Result {
	if m == nil {
		return failure(fmt.Errorf("%w: nil migration", ErrInvalidMigration))
	}
	return e.step(ctx, m, Up, data, newExecOptions(opts))
}

// ExecuteBidirectional runs m in the given direction. Down applies the
// backward transform, validating against the target schema on the way in
// and the source schema on the way out.
func (e *Executor) ExecuteBidirectional(ctx context.Context, m *Migration, data any, dir Direction, opts ...ExecOption) *Result {
	if m == nil {
		return failure(fmt.Errorf("%w: nil migration", ErrInvalidMigration))
	}
	view, err := m.view(dir)
	if err != nil {
		return failure(err)
	}
	return e.step(ctx, view, dir, data, newExecOptions(opts))
}

// ExecuteChain runs every step of chain in order, threading each output
// into the next step.
//
// VersionsApplied starts with chain.From and grows by one version per
// successful step; MigrationsApplied names the successful steps. On failure
// Data and Provenance are nil and Err joins every step error.
func (e *Executor) ExecuteChain(ctx context.Context, chain *Chain, data any, opts ...ExecOption) *Result {
	if chain == nil {
		return failure(ErrNoPath)
	}
	o := newExecOptions(opts)
	start := e.now()

	ctx, span := e.startSpan(ctx, "evolve.migration.chain",
		attribute.String("schema", chain.Name),
		attribute.Int("from", chain.From),
		attribute.Int("to", chain.To),
		attribute.String("direction", chain.Direction.String()),
		attribute.Bool("dry_run", o.dryRun))
	defer span.End()

	e.logger.Info("executing chain",
		"schema", chain.Name,
		"from", chain.From,
		"to", chain.To,
		"steps", chain.Len(),
		"dry_run", o.dryRun)

	res := &Result{
		VersionsApplied:   []int{chain.From},
		MigrationsApplied: []string{},
	}
	var descriptions []string
	current := data

	for i, m := range chain.Migrations {
		label := m.label(chain.Direction)
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("%w before %s: %w", ErrCancelled, label, err))
			break
		}

		view, err := m.view(chain.Direction)
		if err != nil {
			res.Errors = append(res.Errors, err)
			if o.stopOnError {
				break
			}
			continue
		}

		stepOpts := o
		stepOpts.provenance = false
		stepOpts.skipInput = o.dryRun && i > 0

		sr := e.step(ctx, view, chain.Direction, current, stepOpts)
		if !sr.Success {
			res.Errors = append(res.Errors, fmt.Errorf("%s: %w", label, sr.Err))
			if o.stopOnError {
				break
			}
			continue
		}

		current = sr.Data
		res.VersionsApplied = append(res.VersionsApplied, view.to)
		res.MigrationsApplied = append(res.MigrationsApplied, label)
		if view.description != "" {
			descriptions = append(descriptions, view.description)
		}
	}

	if len(res.Errors) > 0 {
		res.Err = errors.Join(res.Errors...)
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		e.logger.Error("chain failed",
			"schema", chain.Name,
			"from", chain.From,
			"to", chain.To,
			"applied", len(res.MigrationsApplied),
			"error", res.Err)
	} else {
		res.Success = true
		res.Data = current
		e.logger.Info("chain completed",
			"schema", chain.Name,
			"from", chain.From,
			"to", chain.To,
			"steps", len(res.MigrationsApplied))
	}

	elapsed := e.now().Sub(start)
	if o.provenance && res.Success {
		p := newProvenance(chain.Name, chain.From, chain.To, chain.Direction, start)
		p.Description = strings.Join(descriptions, "; ")
		p.Duration = elapsed
		p.DryRun = o.dryRun
		p.Steps = append([]string(nil), res.MigrationsApplied...)
		res.Provenance = p
	}
	e.record(ctx, e.chains, "chain", chain.Name, chain.Direction, res.Success, elapsed)
	return res
}

// Rollback undoes chain: its migrations are executed last to first in the
// opposite direction, starting from data at chain.To. It always stops at
// the first failure.
func (e *Executor) Rollback(ctx context.Context, chain *Chain, data any, opts ...ExecOption) *Result {
	if chain == nil {
		return failure(ErrNoPath)
	}
	opts = append(opts[:len(opts):len(opts)], StopOnError(true))
	return e.ExecuteChain(ctx, chain.Reverse(), data, opts...)
}

// step executes an oriented migration: the forward transform of m is
// applied whatever dir says; dir is only reported.
func (e *Executor) step(ctx context.Context, m *Migration, dir Direction, data any, o execOptions) *Result {
	start := e.now()
	label := m.label(Up)

	ctx, span := e.startSpan(ctx, "evolve.migration.step",
		attribute.String("migration", label),
		attribute.String("direction", dir.String()),
		attribute.Bool("dry_run", o.dryRun))
	defer span.End()

	e.logger.Debug("executing step",
		"migration", label,
		"direction", dir.String(),
		"dry_run", o.dryRun)

	res := &Result{}
	out, err := e.apply(ctx, m, data, o)
	if err != nil {
		res.Err = err
		res.Errors = []error{err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("step failed",
			"migration", label,
			"error", err)
	} else {
		res.Success = true
		res.Data = out
		res.MigrationsApplied = []string{label}
		if m.name != "" {
			res.VersionsApplied = []int{m.from, m.to}
		}
	}

	elapsed := e.now().Sub(start)
	if o.provenance && res.Success {
		p := newProvenance(m.name, m.from, m.to, dir, start)
		p.Description = m.description
		p.Duration = elapsed
		p.DryRun = o.dryRun
		p.Steps = []string{label}
		res.Provenance = p
	}
	e.record(ctx, e.steps, "step", m.name, dir, res.Success, elapsed)
	return res
}

func (e *Executor) apply(ctx context.Context, m *Migration, data any, o execOptions) (any, error) {
	input := data
	if m.validateInput && m.source != nil && !o.skipInput {
		parsed, err := m.source.Parse(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInputValidation, err)
		}
		input = parsed
	}
	if o.dryRun {
		return data, nil
	}

	out, err := e.transform(ctx, m.forward, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}

	if m.validateOutput && m.target != nil {
		parsed, err := m.target.Parse(ctx, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOutputValidation, err)
		}
		out = parsed
	}
	return out, nil
}

func (e *Executor) transform(ctx context.Context, fn Transform, data any) (out any, err error) {
	if e.recovery {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
	}
	return fn(ctx, data)
}

func (e *Executor) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if e.tracer == nil {
		// non-recording span; ending it leaves any parent in ctx untouched
		return ctx, trace.SpanFromContext(context.Background())
	}
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (e *Executor) record(ctx context.Context, counter metric.Int64Counter, kind, name string, dir Direction, ok bool, elapsed time.Duration) {
	if !e.metricsEnabled {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	attrs := []attribute.KeyValue{
		attribute.String("schema", name),
		attribute.String("direction", dir.String()),
		attribute.String("outcome", outcome),
	}
	if counter != nil {
		counter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if e.duration != nil {
		attrs = append(attrs, attribute.String("kind", kind))
		e.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
	}
}
