// Package migration registers single-hop transformations between adjacent
// schema versions, resolves them into chains and executes them.
//
// # Overview
//
// A Migration converts data written for version N of a schema into data for
// version N+1 (forward) and optionally back (backward). The Registry keeps at
// most one migration per adjacent pair. BuildChain walks the pairs between
// any two versions; the Executor runs steps and chains with validation
// against the source and target schemas, dry runs, rollback and provenance.
//
// # Basic Usage
//
//	migrations := migration.NewRegistry(versions)
//
//	migrations.Register("users", 2, splitName,
//	    migration.WithBackward(joinName),
//	    migration.WithDescription("split name into first/last"))
//
//	chain := migrations.BuildChain("users", 1, 3)
//	if chain == nil {
//	    // no path
//	}
//
//	exec := migration.NewExecutor()
//	res := exec.ExecuteChain(ctx, chain, data)
//	if !res.Success {
//	    log.Println(res.Err)
//	}
//
// # Errors
//
// Registration problems are returned as errors. Problems with the data being
// migrated never are: every executor method returns a *Result whose Success
// flag and Err field describe what happened.
package migration

import (
	"context"
	"fmt"

	"github.com/rbaliyan/evolve/schema"
)

// Transform converts a value. It must not mutate its input.
type Transform func(ctx context.Context, data any) (any, error)

// Direction is the direction a step or chain is traversed in.
type Direction int

// Directions.
const (
	// Up applies forward transforms, towards higher versions.
	Up Direction = iota
	// Down applies backward transforms, towards lower versions.
	Down
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == Down {
		return Up
	}
	return Down
}

// Key identifies the edge between two adjacent versions. From is always the
// lower version.
type Key struct {
	From int
	To   int
}

func (k Key) String() string {
	return fmt.Sprintf("v%d->v%d", k.From, k.To)
}

// Migration is one edge of the version graph. It is immutable once built.
type Migration struct {
	name           string
	from           int
	to             int
	forward        Transform
	backward       Transform
	description    string
	validateInput  bool
	validateOutput bool
	source         schema.Schema
	target         schema.Schema
}

// Option configures a migration.
type Option func(*Migration)

// WithDescription sets a human-readable description.
func WithDescription(desc string) Option {
	return func(m *Migration) {
		m.description = desc
	}
}

// WithBackward sets the transform from the target back to the source.
func WithBackward(fn Transform) Option {
	return func(m *Migration) {
		m.backward = fn
	}
}

// WithInputValidation toggles parsing input with the source schema
// (default: true).
func WithInputValidation(enabled bool) Option {
	return func(m *Migration) {
		m.validateInput = enabled
	}
}

// WithOutputValidation toggles parsing output with the target schema
// (default: true).
func WithOutputValidation(enabled bool) Option {
	return func(m *Migration) {
		m.validateOutput = enabled
	}
}

func build(forward Transform, opts []Option) *Migration {
	m := &Migration{
		forward:        forward,
		validateInput:  true,
		validateOutput: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// New creates a standalone migration between two schemas. Standalone
// migrations have no name or version numbers and are executed directly
// with Executor.ExecuteStep; they never take part in chains.
func New(source, target schema.Schema, forward Transform, opts ...Option) (*Migration, error) {
	if forward == nil {
		return nil, ErrNilTransform
	}
	m := build(forward, opts)
	m.source = source
	m.target = target
	return m, nil
}

// Name returns the schema name, empty for standalone migrations.
func (m *Migration) Name() string { return m.name }

// From returns the source version.
func (m *Migration) From() int { return m.from }

// To returns the target version.
func (m *Migration) To() int { return m.to }

// Key returns the edge key.
func (m *Migration) Key() Key { return Key{From: m.from, To: m.to} }

// Description returns the description.
func (m *Migration) Description() string { return m.description }

// Source returns the source schema, if any.
func (m *Migration) Source() schema.Schema { return m.source }

// Target returns the target schema, if any.
func (m *Migration) Target() schema.Schema { return m.target }

// Reversible reports whether a backward transform is defined.
func (m *Migration) Reversible() bool { return m.backward != nil }

func (m *Migration) String() string {
	return m.label(Up)
}

// label names the migration as traversed in direction d,
// e.g. "users v3->v2" for a downward step.
func (m *Migration) label(d Direction) string {
	if m.name == "" {
		if m.description != "" {
			return m.description
		}
		return "migration"
	}
	if d == Down {
		return fmt.Sprintf("%s v%d->v%d", m.name, m.to, m.from)
	}
	return fmt.Sprintf("%s v%d->v%d", m.name, m.from, m.to)
}

// inverse returns the migration seen from its target: forward and backward
// are exchanged and so are the schemas and versions.
func (m *Migration) inverse() (*Migration, error) {
	if m.backward == nil {
		return nil, ErrNoBackward
	}
	inv := *m
	inv.forward, inv.backward = m.backward, m.forward
	inv.source, inv.target = m.target, m.source
	inv.from, inv.to = m.to, m.from
	return &inv, nil
}

// view returns m oriented for traversal in direction dir.
func (m *Migration) view(dir Direction) (*Migration, error) {
	if dir == Up {
		return m, nil
	}
	inv, err := m.inverse()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, m.label(Down))
	}
	return inv, nil
}
