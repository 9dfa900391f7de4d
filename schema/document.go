package schema

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// document is the serialized form of a schema: a small JSON Schema subset.
//
//	type: object
//	properties:
//	  id:    {type: string}
//	  tags:  {type: array, items: {type: string}}
//	  state: {enum: [active, disabled]}
//	required: [id]
//	additionalProperties: false
type document struct {
	Type                 string               `yaml:"type,omitempty"`
	Properties           map[string]*document `yaml:"properties,omitempty"`
	Required             []string             `yaml:"required,omitempty"`
	Items                *document            `yaml:"items,omitempty"`
	Enum                 []string             `yaml:"enum,omitempty"`
	AdditionalProperties *bool                `yaml:"additionalProperties,omitempty"`
}

// FromDocument parses a YAML or JSON schema document.
//
// Supported types are object, string, number, integer, boolean and array;
// an enum list or an empty type produces an enum or an any schema.
//
// Example:
//
//	s, err := schema.FromDocument([]byte(`
//	type: object
//	properties:
//	  id: {type: string}
//	required: [id]
//	`))
func FromDocument(data []byte) (Schema, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc.build("")
}

func (d *document) build(at string) (Schema, error) {
	if d == nil {
		return Any(), nil
	}
	if len(d.Enum) > 0 {
		return OneOf(d.Enum...), nil
	}

	switch d.Type {
	case "", string(KindAny):
		return Any(), nil
	case string(KindString):
		return String(), nil
	case string(KindNumber):
		return Number(), nil
	case string(KindInteger):
		return Integer(), nil
	case string(KindBoolean):
		return Boolean(), nil
	case "array":
		if d.Items == nil {
			return ArrayOf(nil), nil
		}
		elem, err := d.Items.build(at + "[]")
		if err != nil {
			return nil, err
		}
		return ArrayOf(elem), nil
	case "object":
		obj := NewObject()
		required := make(map[string]bool, len(d.Required))
		for _, name := range d.Required {
			if _, ok := d.Properties[name]; !ok {
				return nil, fmt.Errorf("%w: %s: required field %q has no property", ErrInvalidDocument, pathOrRoot(at), name)
			}
			required[name] = true
		}
		for name, prop := range d.Properties {
			fs, err := prop.build(at + "." + name)
			if err != nil {
				return nil, err
			}
			if required[name] {
				obj.Required(name, fs)
			} else {
				obj.Optional(name, fs)
			}
		}
		if d.AdditionalProperties != nil && !*d.AdditionalProperties {
			obj.Strict()
		}
		return obj, nil
	}
	return nil, fmt.Errorf("%w: %s: unknown type %q", ErrInvalidDocument, pathOrRoot(at), d.Type)
}

// Document serializes a schema built from this package as YAML.
// Returns ErrUnsupported for other Schema implementations.
func Document(s Schema) ([]byte, error) {
	doc, err := toDocument(s)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

func toDocument(s Schema) (*document, error) {
	switch t := s.(type) {
	case nil:
		return &document{}, nil
	case Primitive:
		if t.kind == KindAny {
			return &document{}, nil
		}
		return &document{Type: string(t.kind)}, nil
	case Enum:
		return &document{Enum: t.Values()}, nil
	case Array:
		doc := &document{Type: "array"}
		if t.elem != nil {
			items, err := toDocument(t.elem)
			if err != nil {
				return nil, err
			}
			doc.Items = items
		}
		return doc, nil
	case *Object:
		doc := &document{Type: "object", Properties: make(map[string]*document, len(t.fields))}
		for _, name := range t.names() {
			f := t.fields[name]
			prop, err := toDocument(f.Schema)
			if err != nil {
				return nil, err
			}
			doc.Properties[name] = prop
			if !f.Optional {
				doc.Required = append(doc.Required, name)
			}
		}
		sort.Strings(doc.Required)
		if t.strict {
			no := false
			doc.AdditionalProperties = &no
		}
		return doc, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupported, s)
}

func pathOrRoot(at string) string {
	if at == "" {
		return "$"
	}
	return "$" + at
}
