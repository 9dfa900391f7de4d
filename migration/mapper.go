package migration

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// FieldMapper builds transforms for the common object changes between two
// versions: renames, defaulted additions and removals.
//
// Example:
//
//	mapper := migration.NewFieldMapper().
//	    RenameField("customer_name", "customerName").
//	    AddDefault("email", "unknown@example.com").
//	    RemoveField("legacy_id")
//
//	migrations.Register("orders", 2, mapper.Forward(),
//	    migration.WithBackward(mapper.Backward()))
type FieldMapper struct {
	ops []fieldOp
}

type opKind int

const (
	opRename opKind = iota
	opDefault
	opRemove
)

type fieldOp struct {
	kind  opKind
	field string
	to    string
	value any
}

// NewFieldMapper creates an empty mapper.
func NewFieldMapper() *FieldMapper {
	return &FieldMapper{}
}

// RenameField moves the value of from to to. Backward moves it back.
func (f *FieldMapper) RenameField(from, to string) *FieldMapper {
	f.ops = append(f.ops, fieldOp{kind: opRename, field: from, to: to})
	return f
}

// AddDefault sets field to value when it is missing. Backward removes the
// field.
func (f *FieldMapper) AddDefault(field string, value any) *FieldMapper {
	f.ops = append(f.ops, fieldOp{kind: opDefault, field: field, value: value})
	return f
}

// RemoveField deletes field. The removal cannot be undone, so a mapper
// with removals has no backward transform.
func (f *FieldMapper) RemoveField(field string) *FieldMapper {
	f.ops = append(f.ops, fieldOp{kind: opRemove, field: field})
	return f
}

// Reversible reports whether Backward is defined.
func (f *FieldMapper) Reversible() bool {
	for _, op := range f.ops {
		if op.kind == opRemove {
			return false
		}
	}
	return true
}

// Forward returns the transform applying the operations in order.
func (f *FieldMapper) Forward() Transform {
	ops := append([]fieldOp(nil), f.ops...)
	return func(_ context.Context, data any) (any, error) {
		m, err := toObject(data)
		if err != nil {
			return nil, err
		}
		for _, op := range ops {
			switch op.kind {
			case opRename:
				if v, ok := m[op.field]; ok {
					delete(m, op.field)
					m[op.to] = v
				}
			case opDefault:
				if _, ok := m[op.field]; !ok {
					m[op.field] = op.value
				}
			case opRemove:
				delete(m, op.field)
			}
		}
		return m, nil
	}
}

// Backward returns the transform undoing Forward, or nil when the mapper
// removes fields.
func (f *FieldMapper) Backward() Transform {
	if !f.Reversible() {
		return nil
	}
	ops := append([]fieldOp(nil), f.ops...)
	return func(_ context.Context, data any) (any, error) {
		m, err := toObject(data)
		if err != nil {
			return nil, err
		}
		for i := len(ops) - 1; i >= 0; i-- {
			op := ops[i]
			switch op.kind {
			case opRename:
				if v, ok := m[op.to]; ok {
					delete(m, op.to)
					m[op.field] = v
				}
			case opDefault:
				delete(m, op.field)
			}
		}
		return m, nil
	}
}

// toObject returns a shallow copy of data as a map. JSON documents are
// decoded.
func toObject(data any) (map[string]any, error) {
	switch v := data.(type) {
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, val := range v {
			m[k] = val
		}
		return m, nil
	case []byte:
		return decodeObject(v)
	case json.RawMessage:
		return decodeObject(v)
	default:
		return nil, fmt.Errorf("expected object, got %T", data)
	}
}

func decodeObject(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("expected object, got null")
	}
	return m, nil
}
