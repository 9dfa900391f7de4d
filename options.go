package evolve

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/evolve/codec"
	"github.com/rbaliyan/evolve/migration"
	"github.com/rbaliyan/evolve/notify"
	"github.com/rbaliyan/evolve/store"
)

// DefaultEngineName is used when NewEngine is given an empty name.
var DefaultEngineName = "evolve"

// engineOptions holds configuration for an engine (unexported)
type engineOptions struct {
	store           store.Store
	codec           codec.Codec
	notifier        notify.Notifier
	logger          *slog.Logger
	now             func() time.Time
	cacheSize       int
	tracingEnabled  bool
	metricsEnabled  bool
	recoveryEnabled bool
	fieldChecks     bool
}

// Option configures an Engine.
type Option func(*engineOptions)

// WithStore persists version records to s. The engine closes s on Close.
func WithStore(s store.Store) Option {
	return func(o *engineOptions) {
		o.store = s
	}
}

// WithCodec sets the encoding of persisted records.
func WithCodec(c codec.Codec) Option {
	return func(o *engineOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithNotifier publishes registry changes to n.
func WithNotifier(n notify.Notifier) Option {
	return func(o *engineOptions) {
		o.notifier = n
	}
}

// WithLogger sets a custom logger for the engine
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the time source for records and provenance.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithCacheSize sets how many resolved chains are cached.
func WithCacheSize(n int) Option {
	return func(o *engineOptions) {
		o.cacheSize = n
	}
}

// WithTracing enables/disables tracing of migrations
func WithTracing(enabled bool) Option {
	return func(o *engineOptions) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics enables/disables migration metrics
func WithMetrics(enabled bool) Option {
	return func(o *engineOptions) {
		o.metricsEnabled = enabled
	}
}

// WithRecovery enables/disables panic recovery in transforms.
// recovery should always be enabled, can be disabled for testing.
func WithRecovery(enabled bool) Option {
	return func(o *engineOptions) {
		o.recoveryEnabled = enabled
	}
}

// WithFieldChecks enables/disables comparing the definitions of fields kept
// across versions in compatibility checks (default: false).
func WithFieldChecks(enabled bool) Option {
	return func(o *engineOptions) {
		o.fieldChecks = enabled
	}
}

func newEngineOptions(opts ...Option) *engineOptions {
	o := &engineOptions{
		logger:          slog.Default(),
		now:             time.Now,
		cacheSize:       migration.DefaultCacheSize,
		tracingEnabled:  true,
		metricsEnabled:  true,
		recoveryEnabled: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
