package schema

import (
	"context"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Object validates map-shaped values field by field.
//
// Object checks that required fields are present and that every declared
// field present in the value satisfies its schema. Undeclared fields are
// passed through unchanged unless the object is strict.
//
// Object uses a fluent builder pattern for configuration. Build the object
// fully before sharing it; a built Object is safe for concurrent Parse calls.
//
// Example:
//
//	order := schema.NewObject().
//	    Required("order_id", schema.String()).
//	    Required("total", schema.Number()).
//	    Optional("items", schema.ArrayOf(schema.String()))
type Object struct {
	fields map[string]Field
	strict bool
}

// NewObject creates an empty object schema.
func NewObject() *Object {
	return &Object{fields: make(map[string]Field)}
}

// Required adds a field that must be present.
// Returns the object for method chaining.
func (o *Object) Required(name string, s Schema) *Object {
	o.fields[name] = Field{Schema: s}
	return o
}

// Optional adds a field that may be missing or null.
// Returns the object for method chaining.
func (o *Object) Optional(name string, s Schema) *Object {
	o.fields[name] = Field{Schema: s, Optional: true}
	return o
}

// Strict makes Parse reject undeclared fields.
// Returns the object for method chaining.
func (o *Object) Strict() *Object {
	o.strict = true
	return o
}

// IsStrict reports whether undeclared fields are rejected.
func (o *Object) IsStrict() bool {
	return o.strict
}

// Shape returns a copy of the field definitions.
func (o *Object) Shape() (Shape, error) {
	shape := make(Shape, len(o.fields))
	for name, f := range o.fields {
		shape[name] = f
	}
	return shape, nil
}

// Canonical returns the fields in sorted order, e.g.
// "object{email?:string,id:string}". Strict objects are prefixed with "strict ".
func (o *Object) Canonical() string {
	names := o.names()
	var b strings.Builder
	if o.strict {
		b.WriteString("strict ")
	}
	b.WriteString("object{")
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		f := o.fields[name]
		b.WriteString(strconv.Quote(name))
		if f.Optional {
			b.WriteByte('?')
		}
		b.WriteByte(':')
		if f.Schema == nil {
			b.WriteString(string(KindAny))
		} else {
			b.WriteString(f.Schema.Canonical())
		}
	}
	b.WriteByte('}')
	return b.String()
}

// Parse validates v and returns a new map holding the parsed fields.
//
// Accepted inputs:
//   - map[string]any
//   - map[string]string
//   - []byte or json.RawMessage holding a JSON object
//
// All issues are collected into a single *ValidationError.
func (o *Object) Parse(ctx context.Context, v any) (any, error) {
	return o.parse(ctx, nil, v)
}

func (o *Object) parse(ctx context.Context, path []string, v any) (any, error) {
	m, err := toMap(path, v)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(m))
	verr := &ValidationError{}

	for _, name := range o.names() {
		f := o.fields[name]
		value, ok := m[name]
		if !ok || value == nil {
			if !f.Optional {
				verr.Issues = append(verr.Issues, Issue{
					Path:    append(clonePath(path), name),
					Message: "missing required field",
				})
			} else if ok {
				out[name] = nil
			}
			continue
		}
		if f.Schema == nil {
			out[name] = value
			continue
		}
		parsed, err := parseAt(ctx, f.Schema, append(clonePath(path), name), value)
		if err != nil {
			if !collect(verr, err) {
				return nil, err
			}
			continue
		}
		out[name] = parsed
	}

	for name, value := range m {
		if _, declared := o.fields[name]; declared {
			continue
		}
		if o.strict {
			verr.Issues = append(verr.Issues, Issue{
				Path:    append(clonePath(path), name),
				Message: "unknown field",
			})
			continue
		}
		out[name] = value
	}

	if len(verr.Issues) > 0 {
		sort.SliceStable(verr.Issues, func(i, j int) bool {
			return strings.Join(verr.Issues[i].Path, ".") < strings.Join(verr.Issues[j].Path, ".")
		})
		return nil, verr
	}
	return out, nil
}

func (o *Object) names() []string {
	names := make([]string, 0, len(o.fields))
	for name := range o.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func toMap(path []string, v any) (map[string]any, error) {
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return m, nil
	case []byte:
		return decodeObject(path, t)
	case json.RawMessage:
		return decodeObject(path, t)
	}
	return nil, invalid(path, "expected object, got %s", describe(v))
}

func decodeObject(path []string, data []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, invalid(path, "malformed JSON object: %v", err)
	}
	if m == nil {
		return nil, invalid(path, "expected object, got null")
	}
	return m, nil
}

var (
	_ Schema = (*Object)(nil)
	_ Shaper = (*Object)(nil)
)
