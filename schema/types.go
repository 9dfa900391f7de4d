package schema

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Kind names a primitive type.
type Kind string

// Supported kinds.
const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindAny     Kind = "any"
)

// Primitive is a scalar schema.
type Primitive struct {
	kind Kind
}

// String matches Go strings.
func String() Primitive { return Primitive{kind: KindString} }

// Number matches any Go numeric value.
func Number() Primitive { return Primitive{kind: KindNumber} }

// Integer matches integers and floats with no fractional part.
func Integer() Primitive { return Primitive{kind: KindInteger} }

// Boolean matches Go bools.
func Boolean() Primitive { return Primitive{kind: KindBoolean} }

// Any matches every value, including nil.
func Any() Primitive { return Primitive{kind: KindAny} }

// Kind returns the primitive kind.
func (p Primitive) Kind() Kind { return p.kind }

// Canonical implements Schema.
func (p Primitive) Canonical() string { return string(p.kind) }

// Parse implements Schema.
func (p Primitive) Parse(_ context.Context, v any) (any, error) {
	return p.parse(nil, v)
}

func (p Primitive) parse(path []string, v any) (any, error) {
	switch p.kind {
	case KindAny:
		return v, nil
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindNumber:
		if isNumber(v) {
			return v, nil
		}
	case KindInteger:
		if isInteger(v) {
			return v, nil
		}
	}
	return nil, invalid(path, "expected %s, got %s", p.kind, describe(v))
}

// Enum matches one of a fixed set of strings.
type Enum struct {
	values []string
}

// OneOf creates an enum schema.
func OneOf(values ...string) Enum {
	return Enum{values: append([]string(nil), values...)}
}

// Values returns the allowed values.
func (e Enum) Values() []string {
	return append([]string(nil), e.values...)
}

// Canonical implements Schema.
func (e Enum) Canonical() string {
	quoted := make([]string, len(e.values))
	for i, v := range e.values {
		quoted[i] = strconv.Quote(v)
	}
	return "enum[" + strings.Join(quoted, ",") + "]"
}

// Parse implements Schema.
func (e Enum) Parse(_ context.Context, v any) (any, error) {
	return e.parse(nil, v)
}

func (e Enum) parse(path []string, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, invalid(path, "expected one of %v, got %s", e.values, describe(v))
	}
	for _, allowed := range e.values {
		if s == allowed {
			return s, nil
		}
	}
	return nil, invalid(path, "expected one of %v, got %q", e.values, s)
}

// Array matches slices whose elements all satisfy an element schema.
type Array struct {
	elem Schema
}

// ArrayOf creates an array schema.
func ArrayOf(elem Schema) Array {
	return Array{elem: elem}
}

// Elem returns the element schema.
func (a Array) Elem() Schema { return a.elem }

// Canonical implements Schema.
func (a Array) Canonical() string {
	if a.elem == nil {
		return "array<any>"
	}
	return "array<" + a.elem.Canonical() + ">"
}

// Parse implements Schema.
func (a Array) Parse(ctx context.Context, v any) (any, error) {
	return a.parse(ctx, nil, v)
}

func (a Array) parse(ctx context.Context, path []string, v any) (any, error) {
	if v == nil {
		return nil, invalid(path, "expected array, got null")
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, invalid(path, "expected array, got %s", describe(v))
	}

	out := make([]any, rv.Len())
	verr := &ValidationError{}
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i).Interface()
		if a.elem == nil {
			out[i] = item
			continue
		}
		parsed, err := parseAt(ctx, a.elem, append(clonePath(path), strconv.Itoa(i)), item)
		if err != nil {
			if !collect(verr, err) {
				return nil, err
			}
			continue
		}
		out[i] = parsed
	}
	if len(verr.Issues) > 0 {
		return nil, verr
	}
	return out, nil
}

// parseAt parses v with s, keeping path information for bundled schemas.
func parseAt(ctx context.Context, s Schema, path []string, v any) (any, error) {
	switch t := s.(type) {
	case Primitive:
		return t.parse(path, v)
	case Enum:
		return t.parse(path, v)
	case Array:
		return t.parse(ctx, path, v)
	case *Object:
		return t.parse(ctx, path, v)
	}
	out, err := s.Parse(ctx, v)
	if err != nil {
		return nil, prefix(path, err)
	}
	return out, nil
}

// collect merges err into verr when it is a validation error.
func collect(verr *ValidationError, err error) bool {
	if ve, ok := err.(*ValidationError); ok {
		verr.Issues = append(verr.Issues, ve.Issues...)
		return true
	}
	return false
}

func prefix(path []string, err error) error {
	ve, ok := err.(*ValidationError)
	if !ok {
		return &ValidationError{Issues: []Issue{{Path: path, Message: err.Error()}}}
	}
	out := &ValidationError{Issues: make([]Issue, len(ve.Issues))}
	for i, issue := range ve.Issues {
		out.Issues[i] = Issue{Path: append(clonePath(path), issue.Path...), Message: issue.Message}
	}
	return out
}

func clonePath(path []string) []string {
	return append(make([]string, 0, len(path)+1), path...)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

func isInteger(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return float64(n) == math.Trunc(float64(n))
	case float64:
		return n == math.Trunc(n) && !math.IsInf(n, 0)
	}
	return false
}

func describe(v any) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	}
	if isNumber(v) {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

var (
	_ Schema = Primitive{}
	_ Schema = Enum{}
	_ Schema = Array{}
)
