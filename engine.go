package evolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rbaliyan/evolve/compat"
	"github.com/rbaliyan/evolve/migration"
	"github.com/rbaliyan/evolve/notify"
	"github.com/rbaliyan/evolve/registry"
	"github.com/rbaliyan/evolve/schema"
	"github.com/rbaliyan/evolve/store"
)

const (
	engineStopped = 0
	engineRunning = 1
)

var engineRegistry sync.Map // map[string]*Engine

// GetEngine returns the running engine registered under name, or nil.
func GetEngine(name string) *Engine {
	if v, ok := engineRegistry.Load(name); ok {
		return v.(*Engine)
	}
	return nil
}

// Engines returns the names of all running engines.
func Engines() []string {
	var names []string
	engineRegistry.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	return names
}

// Engine manages schema versions and the migrations between them.
type Engine struct {
	status     int32
	id         string
	name       string
	logger     *slog.Logger
	store      store.Store
	notifier   notify.Notifier
	versions   *registry.Registry
	migrations *migration.Registry
	executor   *migration.Executor
	checker    *compat.Checker
}

// NewEngine creates an engine and registers it globally under name.
func NewEngine(name string, opts ...Option) (*Engine, error) {
	o := newEngineOptions(opts...)
	if name == "" {
		name = DefaultEngineName
	}
	if _, exists := engineRegistry.Load(name); exists {
		return nil, fmt.Errorf("%w: %q", ErrEngineExists, name)
	}

	logger := o.logger.With("component", "evolve>"+name)

	regOpts := []registry.Option{
		registry.WithLogger(logger),
		registry.WithClock(o.now),
	}
	if o.store != nil {
		regOpts = append(regOpts, registry.WithStore(o.store))
	}
	if o.codec != nil {
		regOpts = append(regOpts, registry.WithCodec(o.codec))
	}
	if o.notifier != nil {
		regOpts = append(regOpts, registry.WithNotifier(o.notifier))
	}
	versions := registry.New(regOpts...)

	e := &Engine{
		status:   engineRunning,
		id:       uuid.NewString(),
		name:     name,
		logger:   logger,
		store:    o.store,
		notifier: o.notifier,
		versions: versions,
		migrations: migration.NewRegistry(versions,
			migration.WithCacheSize(o.cacheSize),
			migration.WithRegistryLogger(logger)),
		executor: migration.NewExecutor(
			migration.WithLogger(logger),
			migration.WithClock(o.now),
			migration.WithTracing(o.tracingEnabled),
			migration.WithMetrics(o.metricsEnabled),
			migration.WithRecovery(o.recoveryEnabled)),
		checker: compat.NewChecker(compat.WithFieldChecks(o.fieldChecks)),
	}

	if _, loaded := engineRegistry.LoadOrStore(name, e); loaded {
		return nil, fmt.Errorf("%w: %q", ErrEngineExists, name)
	}
	return e, nil
}

// ID returns the engine instance ID.
func (e *Engine) ID() string { return e.id }

// Name returns the engine name.
func (e *Engine) Name() string { return e.name }

// Running reports whether the engine has not been closed.
func (e *Engine) Running() bool {
	return atomic.LoadInt32(&e.status) == engineRunning
}

// Versions returns the version registry.
func (e *Engine) Versions() *registry.Registry { return e.versions }

// Migrations returns the migration registry.
func (e *Engine) Migrations() *migration.Registry { return e.migrations }

// Executor returns the migration executor.
func (e *Engine) Executor() *migration.Executor { return e.executor }

func (e *Engine) checkRunning() error {
	if !e.Running() {
		return ErrEngineClosed
	}
	return nil
}

// CreateSchema registers version 1 of name.
func (e *Engine) CreateSchema(ctx context.Context, name string, s schema.Schema, opts ...registry.RecordOption) (*registry.Record, error) {
	if err := e.checkRunning(); err != nil {
		return nil, err
	}
	return e.versions.Create(ctx, name, s, opts...)
}

// AddVersion registers the next version of name.
func (e *Engine) AddVersion(ctx context.Context, name string, s schema.Schema, opts ...registry.RecordOption) (*registry.Record, error) {
	if err := e.checkRunning(); err != nil {
		return nil, err
	}
	return e.versions.AddVersion(ctx, name, s, opts...)
}

// GetVersion returns version v of name.
func (e *Engine) GetVersion(name string, v int) (*registry.Record, error) {
	return e.versions.Get(name, v)
}

// Current returns the highest version of name.
func (e *Engine) Current(name string) (*registry.Record, error) {
	return e.versions.Current(name)
}

// RegisterMigration registers the migration from version to-1 to to.
func (e *Engine) RegisterMigration(name string, to int, forward migration.Transform, opts ...migration.Option) (*migration.Migration, error) {
	if err := e.checkRunning(); err != nil {
		return nil, err
	}
	return e.migrations.Register(name, to, forward, opts...)
}

// CheckVersions compares two registered versions of name.
func (e *Engine) CheckVersions(name string, from, to int) (compat.Result, error) {
	a, err := e.versions.Get(name, from)
	if err != nil {
		return compat.Result{}, err
	}
	b, err := e.versions.Get(name, to)
	if err != nil {
		return compat.Result{}, err
	}
	return e.checker.Check(a.Schema, b.Schema), nil
}

// CheckTransitive checks the current version of name against every earlier
// version and reports the weakest compatibility seen.
func (e *Engine) CheckTransitive(name string) (compat.Result, error) {
	records, err := e.versions.List(name)
	if err != nil {
		return compat.Result{}, err
	}
	history := make([]schema.Schema, len(records))
	for i, rec := range records {
		history[i] = rec.Schema
	}
	return e.checker.CheckTransitive(history...), nil
}

// Migrate moves data of name from version from to version to. A missing
// path yields a result carrying migration.ErrNoPath.
func (e *Engine) Migrate(ctx context.Context, name string, data any, from, to int, opts ...migration.ExecOption) *migration.Result {
	chain := e.migrations.BuildChain(name, from, to)
	if chain == nil {
		err := fmt.Errorf("%w: %s v%d->v%d", migration.ErrNoPath, name, from, to)
		return &migration.Result{Err: err, Errors: []error{err}}
	}
	return e.executor.ExecuteChain(ctx, chain, data, opts...)
}

// MigrateToCurrent moves data of name from version from to the current
// version.
func (e *Engine) MigrateToCurrent(ctx context.Context, name string, data any, from int, opts ...migration.ExecOption) *migration.Result {
	cur, err := e.versions.Current(name)
	if err != nil {
		return &migration.Result{Err: err, Errors: []error{err}}
	}
	return e.Migrate(ctx, name, data, from, cur.Version, opts...)
}

// Rollback undoes a migration of name from version from to version to:
// data is expected at version to and is returned at version from.
func (e *Engine) Rollback(ctx context.Context, name string, data any, from, to int, opts ...migration.ExecOption) *migration.Result {
	chain := e.migrations.BuildChain(name, from, to)
	if chain == nil {
		err := fmt.Errorf("%w: %s v%d->v%d", migration.ErrNoPath, name, from, to)
		return &migration.Result{Err: err, Errors: []error{err}}
	}
	return e.executor.Rollback(ctx, chain, data, opts...)
}

// MigrateBatch moves every value of name from version from to version to.
func (e *Engine) MigrateBatch(ctx context.Context, name string, values []any, from, to int, opts ...migration.BatchOption) *migration.BatchResult {
	return e.executor.ExecuteBatch(ctx, e.migrations.BuildChain(name, from, to), values, opts...)
}

// DeleteVersion removes version v of name together with every migration
// touching it.
func (e *Engine) DeleteVersion(ctx context.Context, name string, v int) error {
	if err := e.checkRunning(); err != nil {
		return err
	}
	if err := e.versions.DeleteVersion(ctx, name, v); err != nil {
		return err
	}
	if n := e.migrations.Forget(name, v); n > 0 {
		e.logger.Info("migrations dropped with version",
			"schema", name,
			"version", v,
			"migrations", n)
	}
	return nil
}

// RemoveSchema removes name with all its versions and migrations.
func (e *Engine) RemoveSchema(ctx context.Context, name string) error {
	if err := e.checkRunning(); err != nil {
		return err
	}
	if err := e.versions.Remove(ctx, name); err != nil {
		return err
	}
	e.migrations.Remove(name)
	return nil
}

// Close unregisters the engine and closes its store and notifier.
func (e *Engine) Close(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&e.status, engineRunning, engineStopped) {
		return nil
	}
	engineRegistry.Delete(e.name)

	var errs []error
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if c, ok := e.notifier.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close notifier: %w", err))
		}
	}
	return errors.Join(errs...)
}
