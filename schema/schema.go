// Package schema defines the schema capability consumed by the version
// registry, the compatibility analyzer and the migration executor.
//
// The engine never inspects values itself. It delegates to a Schema, which
// parses a value and returns either the normalized value or an error. Schemas
// that describe objects additionally implement Shaper so their fields can be
// compared structurally.
//
// The Object builder is the bundled implementation:
//
//	user := schema.NewObject().
//	    Required("id", schema.String()).
//	    Required("name", schema.String()).
//	    Optional("email", schema.String())
//
//	out, err := user.Parse(ctx, map[string]any{"id": "u1", "name": "Ada"})
//
// Schemas can also be loaded from YAML or JSON documents with FromDocument.
package schema

import (
	"context"
	"fmt"
	"strings"
)

// Schema validates and normalizes values.
// Implementations must be safe for concurrent use.
type Schema interface {
	// Parse validates v and returns the normalized value.
	// Returns an error wrapping ErrInvalidValue when v does not conform.
	Parse(ctx context.Context, v any) (any, error)

	// Canonical returns a stable textual representation. Two schemas with
	// the same canonical form are treated as identical.
	Canonical() string
}

// Field is one named member of an object shape.
type Field struct {
	Schema   Schema
	Optional bool
}

// Shape maps field names to their definitions.
type Shape map[string]Field

// Shaper is implemented by object-like schemas that expose their fields.
type Shaper interface {
	Shape() (Shape, error)
}

// Issue describes one problem found while parsing a value.
type Issue struct {
	Path    []string `json:"path,omitempty"`
	Message string   `json:"message"`
}

func (i Issue) String() string {
	if len(i.Path) == 0 {
		return i.Message
	}
	return strings.Join(i.Path, ".") + ": " + i.Message
}

// ValidationError collects every issue found during a parse.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidValue, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match ErrInvalidValue.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidValue
}

func invalid(path []string, format string, args ...any) *ValidationError {
	return &ValidationError{Issues: []Issue{{Path: path, Message: fmt.Sprintf(format, args...)}}}
}

// Equal reports whether a and b have the same canonical form.
func Equal(a, b Schema) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Canonical() == b.Canonical()
}
