package migration

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rbaliyan/evolve/registry"
)

// DefaultCacheSize is the number of resolved chains kept per registry.
const DefaultCacheSize = 256

// Versions resolves schema versions. *registry.Registry satisfies it.
type Versions interface {
	Get(name string, v int) (*registry.Record, error)
}

var _ Versions = (*registry.Registry)(nil)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCacheSize sets how many resolved chains are cached. Zero disables the
// cache.
func WithCacheSize(n int) RegistryOption {
	return func(r *Registry) {
		if n >= 0 {
			r.cacheSize = n
		}
	}
}

// WithRegistryLogger sets the logger.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

type chainKey struct {
	name     string
	from, to int
}

// edgeSet holds the migrations of one schema name.
type edgeSet struct {
	mu         sync.RWMutex
	edges      map[Key]*Migration
	generation uint64
	removed    bool
}

// Registry holds the migrations of every schema, keyed by adjacent version
// pairs. Migrations are immutable once registered; Forget and Remove exist
// for cascading version deletes.
//
// Each schema name has its own lock; the registry-level mutex only guards
// the name to edge set map.
type Registry struct {
	mu        sync.RWMutex
	sets      map[string]*edgeSet
	versions  Versions
	cache     *lru.Cache[chainKey, *Chain]
	cacheSize int
	logger    *slog.Logger
}

// NewRegistry creates a migration registry resolving schemas from versions.
func NewRegistry(versions Versions, opts ...RegistryOption) *Registry {
	r := &Registry{
		versions:  versions,
		sets:      make(map[string]*edgeSet),
		cacheSize: DefaultCacheSize,
		logger:    slog.Default().With("component", "migration"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cacheSize > 0 {
		// only fails for non-positive sizes
		r.cache, _ = lru.New[chainKey, *Chain](r.cacheSize)
	}
	return r
}

func (r *Registry) set(name string) *edgeSet {
	r.mu.RLock()
	s := r.sets[name]
	r.mu.RUnlock()
	return s
}

// lockSet returns the edge set of name write-locked, creating it if needed.
func (r *Registry) lockSet(name string) *edgeSet {
	for {
		r.mu.Lock()
		s, ok := r.sets[name]
		if !ok {
			s = &edgeSet{edges: make(map[Key]*Migration)}
			r.sets[name] = s
		}
		r.mu.Unlock()

		s.mu.Lock()
		if !s.removed {
			return s
		}
		// lost a race with Remove
		s.mu.Unlock()
	}
}

// Register adds the migration from version to-1 to version to of name.
// Both versions must exist in the version registry; their schemas are
// captured at registration time.
func (r *Registry) Register(name string, to int, forward Transform, opts ...Option) (*Migration, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty schema name", ErrInvalidMigration)
	}
	if to < 2 {
		return nil, fmt.Errorf("%w: target version must be at least 2, got %d", ErrInvalidMigration, to)
	}
	if forward == nil {
		return nil, ErrNilTransform
	}

	from := to - 1
	source, err := r.versions.Get(name, from)
	if err != nil {
		return nil, fmt.Errorf("%w: source v%d: %w", ErrInvalidMigration, from, err)
	}
	target, err := r.versions.Get(name, to)
	if err != nil {
		return nil, fmt.Errorf("%w: target v%d: %w", ErrInvalidMigration, to, err)
	}

	m := build(forward, opts)
	m.name = name
	m.from = from
	m.to = to
	m.source = source.Schema
	m.target = target.Schema

	s := r.lockSet(name)
	defer s.mu.Unlock()

	if _, exists := s.edges[m.Key()]; exists {
		return nil, fmt.Errorf("%w: %s", ErrMigrationExists, m)
	}
	s.edges[m.Key()] = m
	r.invalidate(name, s)

	r.logger.Debug("migration registered",
		"schema", name,
		"from", from,
		"to", to,
		"reversible", m.Reversible())
	return m, nil
}

// Get returns the migration connecting from and to, in either order.
func (r *Registry) Get(name string, from, to int) (*Migration, bool) {
	if from > to {
		from, to = to, from
	}
	s := r.set(name)
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.edges[Key{From: from, To: to}]
	return m, ok
}

// List returns the migrations of name in ascending order.
func (r *Registry) List(name string) []*Migration {
	s := r.set(name)
	if s == nil {
		return []*Migration{}
	}
	s.mu.RLock()
	list := make([]*Migration, 0, len(s.edges))
	for _, m := range s.edges {
		list = append(list, m)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].from < list[j].from
	})
	return list
}

// Forget removes every migration touching version v of name. It reports
// how many were removed.
func (r *Registry) Forget(name string, v int) int {
	s := r.set(name)
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.edges {
		if k.From == v || k.To == v {
			delete(s.edges, k)
			n++
		}
	}
	if n > 0 {
		r.invalidate(name, s)
	}
	return n
}

// Remove drops every migration of name.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	s, ok := r.sets[name]
	delete(r.sets, name)
	r.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	s.removed = true
	s.edges = map[Key]*Migration{}
	r.invalidate(name, s)
	s.mu.Unlock()
}

// invalidate bumps the generation of s so cached chains of name are
// rebuilt. Callers hold s.mu.
func (r *Registry) invalidate(name string, s *edgeSet) {
	s.generation++
	if r.cache == nil {
		return
	}
	for _, k := range r.cache.Keys() {
		if k.name == name {
			r.cache.Remove(k)
		}
	}
}

// BuildChain resolves the migrations connecting from and to. It returns an
// empty chain when from == to and nil when any adjacent pair on the way has
// no migration.
//
// A Down chain is returned even when some steps have no backward transform;
// execution reports ErrNoBackward at the first such step.
func (r *Registry) BuildChain(name string, from, to int) *Chain {
	key := chainKey{name: name, from: from, to: to}
	dir := Up
	if from > to {
		dir = Down
	}
	chain := &Chain{Name: name, From: from, To: to, Direction: dir}

	s := r.set(name)
	if s == nil {
		if from == to {
			return chain
		}
		return nil
	}

	s.mu.RLock()
	gen := s.generation
	if r.cache != nil {
		if c, ok := r.cache.Get(key); ok {
			s.mu.RUnlock()
			return c.clone()
		}
	}
	switch dir {
	case Up:
		for v := from; v < to; v++ {
			m, ok := s.edges[Key{From: v, To: v + 1}]
			if !ok {
				s.mu.RUnlock()
				return nil
			}
			chain.Migrations = append(chain.Migrations, m)
		}
	case Down:
		for v := from; v > to; v-- {
			m, ok := s.edges[Key{From: v - 1, To: v}]
			if !ok {
				s.mu.RUnlock()
				return nil
			}
			chain.Migrations = append(chain.Migrations, m)
		}
	}
	s.mu.RUnlock()

	if r.cache != nil {
		s.mu.Lock()
		// skip the insert when a registration raced with the build
		if s.generation == gen && !s.removed {
			r.cache.Add(key, chain)
		}
		s.mu.Unlock()
	}
	return chain.clone()
}
