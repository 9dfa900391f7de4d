package registry

import (
	"time"

	"github.com/rbaliyan/evolve/schema"
	"github.com/rbaliyan/evolve/version"
)

// Metadata is the mutable, descriptive part of a record.
type Metadata struct {
	Tags      []string          `json:"tags,omitempty" bson:"tags,omitempty" msgpack:"tags,omitempty"`
	Author    string            `json:"author,omitempty" bson:"author,omitempty" msgpack:"author,omitempty"`
	Changelog string            `json:"changelog,omitempty" bson:"changelog,omitempty" msgpack:"changelog,omitempty"`
	SemVer    *version.Version  `json:"semver,omitempty" bson:"semver,omitempty" msgpack:"semver,omitempty"`
	Extra     map[string]string `json:"extra,omitempty" bson:"extra,omitempty" msgpack:"extra,omitempty"`
}

// Clone creates a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	clone := m
	if m.Tags != nil {
		clone.Tags = append([]string(nil), m.Tags...)
	}
	if m.SemVer != nil {
		v := *m.SemVer
		clone.SemVer = &v
	}
	if m.Extra != nil {
		clone.Extra = make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			clone.Extra[k] = v
		}
	}
	return clone
}

// Record is one registered version of a named schema.
//
// Version, Schema, Hash and CreatedAt never change after registration.
// Description and Metadata change only through Registry.UpdateMetadata,
// which also bumps UpdatedAt.
type Record struct {
	Name        string
	Version     int
	Schema      schema.Schema
	Hash        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Metadata    Metadata
}

// Clone creates a copy of the record. The schema handle is shared.
func (r *Record) Clone() *Record {
	clone := *r
	clone.Metadata = r.Metadata.Clone()
	return &clone
}

// Evolution is a point-in-time snapshot of every version of one schema.
type Evolution struct {
	Name    string
	Records []*Record // ascending by version
	Current int
}

// Versions returns the registered version numbers in ascending order.
func (e *Evolution) Versions() []int {
	vs := make([]int, len(e.Records))
	for i, r := range e.Records {
		vs[i] = r.Version
	}
	return vs
}

// RecordOption configures a record at registration time.
type RecordOption func(*Record)

// WithDescription sets the record description.
func WithDescription(desc string) RecordOption {
	return func(r *Record) {
		r.Description = desc
	}
}

// WithTags sets the record tags.
func WithTags(tags ...string) RecordOption {
	return func(r *Record) {
		r.Metadata.Tags = append([]string(nil), tags...)
	}
}

// WithAuthor sets the record author.
func WithAuthor(author string) RecordOption {
	return func(r *Record) {
		r.Metadata.Author = author
	}
}

// WithChangelog sets the changelog entry for the version.
func WithChangelog(text string) RecordOption {
	return func(r *Record) {
		r.Metadata.Changelog = text
	}
}

// WithSemVer labels the version with a semantic version.
func WithSemVer(v version.Version) RecordOption {
	return func(r *Record) {
		r.Metadata.SemVer = &v
	}
}

// WithExtra adds a free-form metadata entry.
func WithExtra(key, value string) RecordOption {
	return func(r *Record) {
		if r.Metadata.Extra == nil {
			r.Metadata.Extra = make(map[string]string)
		}
		r.Metadata.Extra[key] = value
	}
}
