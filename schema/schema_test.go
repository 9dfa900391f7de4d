package schema

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"syreclabs.com/go/faker"
)

func userSchema() *Object {
	return NewObject().
		Required("id", String()).
		Required("name", String()).
		Optional("email", String()).
		Optional("age", Integer())
}

func TestObject(t *testing.T) {
	ctx := context.Background()

	t.Run("Parse accepts conforming values", func(t *testing.T) {
		name := faker.Name().Name()
		out, err := userSchema().Parse(ctx, map[string]any{"id": "u1", "name": name, "age": 30})
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		want := map[string]any{"id": "u1", "name": name, "age": 30}
		if diff := cmp.Diff(want, out); diff != "" {
			t.Errorf("unexpected output (-want +got):\n%s", diff)
		}
	})

	t.Run("Parse reports missing required fields", func(t *testing.T) {
		_, err := userSchema().Parse(ctx, map[string]any{"id": "u1"})
		if !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("expected ErrInvalidValue, got %v", err)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected *ValidationError, got %T", err)
		}
		if len(verr.Issues) != 1 || verr.Issues[0].String() != "name: missing required field" {
			t.Errorf("unexpected issues: %v", verr.Issues)
		}
	})

	t.Run("Parse reports wrong types", func(t *testing.T) {
		_, err := userSchema().Parse(ctx, map[string]any{"id": 1, "name": "x", "age": 1.5})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected *ValidationError, got %v", err)
		}
		if len(verr.Issues) != 2 {
			t.Fatalf("expected 2 issues, got %v", verr.Issues)
		}
		if verr.Issues[0].Path[0] != "age" || verr.Issues[1].Path[0] != "id" {
			t.Errorf("issues should be sorted by path: %v", verr.Issues)
		}
	})

	t.Run("Optional fields accept null", func(t *testing.T) {
		out, err := userSchema().Parse(ctx, map[string]any{"id": "u1", "name": "n", "email": nil})
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if v, ok := out.(map[string]any)["email"]; !ok || v != nil {
			t.Errorf("expected explicit null email, got %v", v)
		}
	})

	t.Run("Unknown fields pass through unless strict", func(t *testing.T) {
		in := map[string]any{"id": "u1", "name": "n", "extra": true}
		out, err := userSchema().Parse(ctx, in)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if out.(map[string]any)["extra"] != true {
			t.Error("expected extra field to be kept")
		}
		if _, err := userSchema().Strict().Parse(ctx, in); err == nil {
			t.Error("expected strict object to reject unknown field")
		}
	})

	t.Run("Parse decodes JSON bytes", func(t *testing.T) {
		out, err := userSchema().Parse(ctx, []byte(`{"id":"u1","name":"n","age":42}`))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if out.(map[string]any)["age"] != float64(42) {
			t.Errorf("expected age 42, got %v", out.(map[string]any)["age"])
		}
		if _, err := userSchema().Parse(ctx, []byte(`not json`)); err == nil {
			t.Error("expected error for malformed JSON")
		}
	})

	t.Run("Nested objects and arrays report full paths", func(t *testing.T) {
		s := NewObject().
			Required("address", NewObject().Required("city", String())).
			Required("tags", ArrayOf(String()))
		_, err := s.Parse(ctx, map[string]any{
			"address": map[string]any{},
			"tags":    []any{"a", 2},
		})
		if err == nil {
			t.Fatal("expected error")
		}
		msg := err.Error()
		if !strings.Contains(msg, "address.city: missing required field") {
			t.Errorf("missing nested path in %q", msg)
		}
		if !strings.Contains(msg, "tags.1: expected string") {
			t.Errorf("missing array index path in %q", msg)
		}
	})

	t.Run("Non-object input fails", func(t *testing.T) {
		if _, err := userSchema().Parse(ctx, "nope"); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("expected ErrInvalidValue, got %v", err)
		}
	})
}

func TestPrimitives(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		schema Schema
		ok     []any
		bad    []any
	}{
		{"string", String(), []any{"", faker.Lorem().Word()}, []any{1, nil, true}},
		{"number", Number(), []any{1, 2.5, int64(3), uint8(4)}, []any{"1", nil}},
		{"integer", Integer(), []any{1, 2.0, int32(7)}, []any{2.5, "3"}},
		{"boolean", Boolean(), []any{true, false}, []any{"true", 0}},
		{"any", Any(), []any{nil, 1, "x", map[string]any{}}, nil},
		{"enum", OneOf("a", "b"), []any{"a", "b"}, []any{"c", 1}},
		{"array", ArrayOf(Integer()), []any{[]any{1, 2}, []int{3}}, []any{[]any{"x"}, "x", nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range tt.ok {
				if _, err := tt.schema.Parse(ctx, v); err != nil {
					t.Errorf("Parse(%v) failed: %v", v, err)
				}
			}
			for _, v := range tt.bad {
				if _, err := tt.schema.Parse(ctx, v); err == nil {
					t.Errorf("Parse(%v) should fail", v)
				}
			}
		})
	}
}

func TestCanonical(t *testing.T) {
	t.Run("field order does not matter", func(t *testing.T) {
		a := NewObject().Required("a", String()).Optional("b", Number())
		b := NewObject().Optional("b", Number()).Required("a", String())
		if a.Canonical() != b.Canonical() {
			t.Errorf("expected equal canonical forms: %s vs %s", a.Canonical(), b.Canonical())
		}
		if !Equal(a, b) {
			t.Error("expected Equal")
		}
	})

	t.Run("optionality and strictness are significant", func(t *testing.T) {
		a := NewObject().Required("a", String())
		b := NewObject().Optional("a", String())
		c := NewObject().Required("a", String()).Strict()
		if Equal(a, b) || Equal(a, c) {
			t.Error("expected different canonical forms")
		}
	})

	t.Run("expected forms", func(t *testing.T) {
		s := NewObject().Required("id", String()).Optional("tags", ArrayOf(OneOf("x")))
		want := `object{"id":string,"tags"?:array<enum["x"]>}`
		if got := s.Canonical(); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	})
}

func TestHash(t *testing.T) {
	s := userSchema()
	if Hash(s) != Hash(userSchema()) {
		t.Error("expected stable hash for equal schemas")
	}
	now := time.Now()
	if SaltedHash(s, 1, now) == SaltedHash(s, 2, now) {
		t.Error("expected version to salt the hash")
	}
	if SaltedHash(s, 1, now) == SaltedHash(s, 1, now.Add(time.Nanosecond)) {
		t.Error("expected timestamp to salt the hash")
	}
	if SaltedHash(s, 3, now) != SaltedHash(userSchema(), 3, now) {
		t.Error("expected deterministic salted hash")
	}
}

func TestDocument(t *testing.T) {
	t.Run("FromDocument builds objects", func(t *testing.T) {
		s, err := FromDocument([]byte(`
type: object
properties:
  id: {type: string}
  age: {type: integer}
  status: {enum: [active, disabled]}
  tags:
    type: array
    items: {type: string}
required: [id]
additionalProperties: false
`))
		if err != nil {
			t.Fatalf("FromDocument failed: %v", err)
		}
		want := NewObject().
			Required("id", String()).
			Optional("age", Integer()).
			Optional("status", OneOf("active", "disabled")).
			Optional("tags", ArrayOf(String())).
			Strict()
		if s.Canonical() != want.Canonical() {
			t.Errorf("expected %s, got %s", want.Canonical(), s.Canonical())
		}
	})

	t.Run("JSON documents are accepted", func(t *testing.T) {
		s, err := FromDocument([]byte(`{"type":"object","properties":{"a":{"type":"number"}},"required":["a"]}`))
		if err != nil {
			t.Fatalf("FromDocument failed: %v", err)
		}
		if s.Canonical() != NewObject().Required("a", Number()).Canonical() {
			t.Errorf("unexpected schema %s", s.Canonical())
		}
	})

	t.Run("round trip through Document", func(t *testing.T) {
		orig := NewObject().
			Required("id", String()).
			Optional("address", NewObject().Required("city", String()).Strict()).
			Optional("scores", ArrayOf(Number()))
		data, err := Document(orig)
		if err != nil {
			t.Fatalf("Document failed: %v", err)
		}
		back, err := FromDocument(data)
		if err != nil {
			t.Fatalf("FromDocument failed: %v", err)
		}
		if diff := cmp.Diff(orig.Canonical(), back.Canonical()); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("invalid documents fail", func(t *testing.T) {
		cases := []string{
			`type: widget`,
			"type: object\nrequired: [missing]",
			`[not, a, map]`,
		}
		for _, c := range cases {
			if _, err := FromDocument([]byte(c)); !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("FromDocument(%q): expected ErrInvalidDocument, got %v", c, err)
			}
		}
	})

	t.Run("foreign schemas are unsupported", func(t *testing.T) {
		if _, err := Document(custom{}); !errors.Is(err, ErrUnsupported) {
			t.Errorf("expected ErrUnsupported, got %v", err)
		}
	})
}

type custom struct{}

func (custom) Parse(_ context.Context, v any) (any, error) {
	if v == "bad" {
		return nil, errors.New("custom rejection")
	}
	return v, nil
}
func (custom) Canonical() string { return "custom" }

func TestCustomSchemaInsideObject(t *testing.T) {
	s := NewObject().Required("c", custom{})
	_, err := s.Parse(context.Background(), map[string]any{"c": "bad"})
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if !strings.Contains(err.Error(), "c: custom rejection") {
		t.Errorf("unexpected message %q", err.Error())
	}
}
