// Package registry tracks the version history of named schemas.
//
// Each name owns an evolution: records numbered 1, 2, 3, ... with a current
// pointer at the highest version and an index from content hash to version.
// Every mutation takes a lock scoped to that name only, so registrations of
// unrelated schemas never contend.
//
// # Basic Usage
//
//	reg := registry.New()
//
//	v1 := schema.NewObject().
//	    Required("id", schema.String()).
//	    Required("name", schema.String())
//	reg.Create(ctx, "users", v1, registry.WithDescription("initial"))
//
//	v2 := schema.NewObject().
//	    Required("id", schema.String()).
//	    Required("firstName", schema.String()).
//	    Required("lastName", schema.String())
//	rec, err := reg.AddVersion(ctx, "users", v2)
//	// rec.Version == 2
//
// # Persistence and Notifications
//
// With WithStore the registry writes a StoredRecord under "name@version"
// after every mutation. The store is a cache for other readers; the
// in-memory registry stays authoritative and store errors are only logged.
// With WithNotifier every mutation also emits a notify.Change.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/evolve/codec"
	"github.com/rbaliyan/evolve/notify"
	"github.com/rbaliyan/evolve/schema"
	"github.com/rbaliyan/evolve/store"
)

// entry holds the evolution of one name behind its own lock.
type entry struct {
	mu       sync.RWMutex
	name     string
	versions map[int]*Record
	order    []int // ascending
	hashes   map[string]int
	removed  bool
}

func newEntry(name string) *entry {
	return &entry{
		name:     name,
		versions: make(map[int]*Record),
		hashes:   make(map[string]int),
	}
}

// current returns the highest registered version, or 0 when empty.
func (e *entry) current() int {
	if len(e.order) == 0 {
		return 0
	}
	return e.order[len(e.order)-1]
}

func (e *entry) insert(rec *Record) {
	e.versions[rec.Version] = rec
	e.hashes[rec.Hash] = rec.Version
	e.order = append(e.order, rec.Version)
	sort.Ints(e.order)
}

func (e *entry) drop(v int) {
	rec := e.versions[v]
	delete(e.versions, v)
	delete(e.hashes, rec.Hash)
	for i, n := range e.order {
		if n == v {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore enables write-through persistence of record metadata.
func WithStore(s store.Store) Option {
	return func(r *Registry) {
		r.store = s
	}
}

// WithCodec sets the codec used to encode stored records (default: JSON).
func WithCodec(c codec.Codec) Option {
	return func(r *Registry) {
		if c != nil {
			r.codec = c
		}
	}
}

// WithNotifier sets the notifier receiving change events.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Registry) {
		r.notifier = n
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock sets the time source used for timestamps and hashes.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry is the version registry.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	store    store.Store
	codec    codec.Codec
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time

	// store writes happen outside entry locks; seq orders them per key
	seq  atomic.Uint64
	ioMu sync.Mutex
	keys map[string]*keyState
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		keys:    make(map[string]*keyState),
		codec:   codec.Default(),
		logger:  slog.Default().With("component", "registry"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// lookup returns the live entry for name.
func (r *Registry) lookup(name string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, name)
	}
	return e, nil
}

func validate(name string, s schema.Schema) error {
	if name == "" {
		return ErrEmptyName
	}
	if s == nil {
		return ErrNilSchema
	}
	return nil
}

// newRecord builds the record for version v of name.
func (r *Registry) newRecord(name string, v int, s schema.Schema, opts []RecordOption) *Record {
	now := r.now()
	rec := &Record{
		Name:      name,
		Version:   v,
		Schema:    s,
		Hash:      schema.SaltedHash(s, v, now),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(rec)
	}
	return rec
}

// Create registers version 1 of a new schema.
// Returns ErrSchemaExists if name already has versions.
func (r *Registry) Create(ctx context.Context, name string, s schema.Schema, opts ...RecordOption) (*Record, error) {
	if err := validate(name, s); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.entries[name]; ok {
		existing.mu.RLock()
		gone := existing.removed
		existing.mu.RUnlock()
		if !gone {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrSchemaExists, name)
		}
	}
	e := newEntry(name)
	e.mu.Lock()
	r.entries[name] = e
	r.mu.Unlock()

	rec := r.newRecord(name, 1, s, opts)
	e.insert(rec)
	op := r.saveOp(rec)
	out := rec.Clone()
	e.mu.Unlock()
	r.apply(ctx, op)

	r.logger.Info("schema created", "schema", name, "version", 1, "hash", rec.Hash)
	r.notify(ctx, notify.Change{Name: name, Version: 1, Kind: notify.KindCreated, Hash: rec.Hash, At: rec.CreatedAt})
	return out, nil
}

// AddVersion registers the next version (current + 1) of an existing schema.
func (r *Registry) AddVersion(ctx context.Context, name string, s schema.Schema, opts ...RecordOption) (*Record, error) {
	if err := validate(name, s); err != nil {
		return nil, err
	}
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, name)
	}
	rec := r.newRecord(name, e.current()+1, s, opts)
	e.insert(rec)
	op := r.saveOp(rec)
	out := rec.Clone()
	e.mu.Unlock()
	r.apply(ctx, op)

	r.logger.Info("schema version added", "schema", name, "version", rec.Version, "hash", rec.Hash)
	r.notify(ctx, notify.Change{Name: name, Version: rec.Version, Kind: notify.KindVersionAdded, Hash: rec.Hash, At: rec.CreatedAt})
	return out, nil
}

// Register registers version v of name explicitly.
//
// Version 1 of an unknown name creates the schema. Otherwise v must be the
// next version: an existing (name, v) pair fails with ErrVersionExists and
// any other number fails with ErrInvalidVersion.
func (r *Registry) Register(ctx context.Context, name string, v int, s schema.Schema, opts ...RecordOption) (*Record, error) {
	if err := validate(name, s); err != nil {
		return nil, err
	}
	if v < 1 {
		return nil, fmt.Errorf("%w: %d < 1", ErrInvalidVersion, v)
	}

	r.mu.RLock()
	_, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		if v != 1 {
			return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, name)
		}
		rec, err := r.Create(ctx, name, s, opts...)
		if err == nil {
			return rec, nil
		}
		// Lost a race with another creator; fall through to the checks below.
	}

	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, name)
	}
	if _, exists := e.versions[v]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s v%d", ErrVersionExists, name, v)
	}
	if next := e.current() + 1; v != next {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s v%d, next is v%d", ErrInvalidVersion, name, v, next)
	}
	rec := r.newRecord(name, v, s, opts)
	e.insert(rec)
	op := r.saveOp(rec)
	out := rec.Clone()
	e.mu.Unlock()
	r.apply(ctx, op)

	r.logger.Info("schema version added", "schema", name, "version", v, "hash", rec.Hash)
	r.notify(ctx, notify.Change{Name: name, Version: v, Kind: notify.KindVersionAdded, Hash: rec.Hash, At: rec.CreatedAt})
	return out, nil
}

// Get returns version v of name.
func (r *Registry) Get(name string, v int) (*Record, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	rec, ok := e.versions[v]
	if !ok || e.removed {
		return nil, fmt.Errorf("%w: %s v%d", ErrVersionNotFound, name, v)
	}
	return rec.Clone(), nil
}

// Current returns the highest version of name.
func (r *Registry) Current(name string) (*Record, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.removed || len(e.order) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, name)
	}
	return e.versions[e.current()].Clone(), nil
}

// List returns every version of name in ascending order.
func (r *Registry) List(name string) ([]*Record, error) {
	ev, err := r.Evolution(name)
	if err != nil {
		return nil, err
	}
	return ev.Records, nil
}

// Evolution returns a snapshot of the whole history of name.
func (r *Registry) Evolution(name string) (*Evolution, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.removed {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, name)
	}
	ev := &Evolution{
		Name:    name,
		Records: make([]*Record, 0, len(e.order)),
		Current: e.current(),
	}
	for _, v := range e.order {
		ev.Records = append(ev.Records, e.versions[v].Clone())
	}
	return ev, nil
}

// FindByHash returns the version of name carrying hash.
func (r *Registry) FindByHash(name, hash string) (*Record, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, ok := e.hashes[hash]
	if !ok || e.removed {
		return nil, fmt.Errorf("%w: %s %s", ErrHashNotFound, name, hash)
	}
	return e.versions[v].Clone(), nil
}

// Names returns every registered schema name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UpdateMetadata changes the description and metadata of version v.
//
// fn receives copies of the current values and edits them in place; the
// result replaces the stored values and UpdatedAt is bumped. Version, schema,
// hash and creation time are never affected.
//
// Example:
//
//	reg.UpdateMetadata(ctx, "users", 2, func(m *registry.Metadata, desc *string) {
//	    m.Tags = append(m.Tags, "deprecated")
//	    *desc = "superseded by v3"
//	})
func (r *Registry) UpdateMetadata(ctx context.Context, name string, v int, fn func(m *Metadata, description *string)) (*Record, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	rec, ok := e.versions[v]
	if !ok || e.removed {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s v%d", ErrVersionNotFound, name, v)
	}
	updated := rec.Clone()
	fn(&updated.Metadata, &updated.Description)
	updated.UpdatedAt = r.now()
	e.versions[v] = updated
	op := r.saveOp(updated)
	out := updated.Clone()
	e.mu.Unlock()
	r.apply(ctx, op)

	r.logger.Debug("schema metadata updated", "schema", name, "version", v)
	r.notify(ctx, notify.Change{Name: name, Version: v, Kind: notify.KindMetadataUpdated, Hash: updated.Hash, At: updated.UpdatedAt})
	return out, nil
}

// DeleteVersion removes version v of name along with its hash index entry
// and its stored copy. The current pointer falls back to the highest
// remaining version; deleting the last version removes the schema.
func (r *Registry) DeleteVersion(ctx context.Context, name string, v int) error {
	e, err := r.lookup(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	rec, ok := e.versions[v]
	if !ok || e.removed {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s v%d", ErrVersionNotFound, name, v)
	}
	e.drop(v)
	op := r.deleteOp(name, v)
	empty := len(e.order) == 0
	if empty {
		e.removed = true
	}
	e.mu.Unlock()
	r.apply(ctx, op)

	if empty {
		r.mu.Lock()
		if r.entries[name] == e {
			delete(r.entries, name)
		}
		r.mu.Unlock()
	}

	r.logger.Info("schema version deleted", "schema", name, "version", v)
	r.notify(ctx, notify.Change{Name: name, Version: v, Kind: notify.KindVersionDeleted, Hash: rec.Hash, At: r.now()})
	return nil
}

// Remove deletes every version of name.
func (r *Registry) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSchemaNotFound, name)
	}
	delete(r.entries, name)

	// ops are captured before r.mu is released so a re-Create of name
	// always orders after them
	e.mu.Lock()
	e.removed = true
	versions := append([]int(nil), e.order...)
	ops := make([]storeOp, 0, len(versions))
	for _, v := range versions {
		ops = append(ops, r.deleteOp(name, v))
	}
	e.mu.Unlock()
	r.mu.Unlock()
	r.apply(ctx, ops...)

	r.logger.Info("schema removed", "schema", name, "versions", len(versions))
	r.notify(ctx, notify.Change{Name: name, Kind: notify.KindRemoved, At: r.now()})
	return nil
}

func (r *Registry) notify(ctx context.Context, c notify.Change) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, c); err != nil {
		r.logger.Warn("failed to notify schema change",
			"schema", c.Name,
			"version", c.Version,
			"kind", c.Kind,
			"error", err)
	}
}
