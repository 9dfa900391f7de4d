package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"syreclabs.com/go/faker"

	"github.com/rbaliyan/evolve/registry"
	"github.com/rbaliyan/evolve/schema"
)

var (
	usersV1 = schema.NewObject().
		Required("id", schema.String()).
		Required("name", schema.String())
	usersV2 = schema.NewObject().
		Required("id", schema.String()).
		Required("firstName", schema.String()).
		Required("lastName", schema.String())
	usersV3 = schema.NewObject().
		Required("id", schema.String()).
		Required("firstName", schema.String()).
		Required("lastName", schema.String()).
		Required("age", schema.Integer())
)

func splitName(_ context.Context, data any) (any, error) {
	in := data.(map[string]any)
	first, last, _ := strings.Cut(in["name"].(string), " ")
	return map[string]any{
		"id":        in["id"],
		"firstName": first,
		"lastName":  last,
	}, nil
}

func joinName(_ context.Context, data any) (any, error) {
	in := data.(map[string]any)
	return map[string]any{
		"id":   in["id"],
		"name": in["firstName"].(string) + " " + in["lastName"].(string),
	}, nil
}

func addAge(_ context.Context, data any) (any, error) {
	out := make(map[string]any)
	for k, v := range data.(map[string]any) {
		out[k] = v
	}
	out["age"] = 30
	return out, nil
}

func dropAge(_ context.Context, data any) (any, error) {
	out := make(map[string]any)
	for k, v := range data.(map[string]any) {
		if k != "age" {
			out[k] = v
		}
	}
	return out, nil
}

func newVersions(t *testing.T) *registry.Registry {
	t.Helper()
	ctx := context.Background()
	reg := registry.New()
	if _, err := reg.Create(ctx, "users", usersV1); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for _, s := range []schema.Schema{usersV2, usersV3} {
		if _, err := reg.AddVersion(ctx, "users", s); err != nil {
			t.Fatalf("AddVersion failed: %v", err)
		}
	}
	return reg
}

// newUsers returns a registry with reversible migrations 1->2->3.
func newUsers(t *testing.T) *Registry {
	t.Helper()
	migrations := NewRegistry(newVersions(t))
	if _, err := migrations.Register("users", 2, splitName,
		WithBackward(joinName),
		WithDescription("split name")); err != nil {
		t.Fatalf("Register v2 failed: %v", err)
	}
	if _, err := migrations.Register("users", 3, addAge,
		WithBackward(dropAge),
		WithDescription("add age")); err != nil {
		t.Fatalf("Register v3 failed: %v", err)
	}
	return migrations
}

func TestDirection(t *testing.T) {
	if Up.String() != "up" || Down.String() != "down" {
		t.Errorf("unexpected names %q %q", Up, Down)
	}
	if Up.Reverse() != Down || Down.Reverse() != Up {
		t.Error("Reverse should swap directions")
	}
}

func TestRegistry(t *testing.T) {
	t.Run("Register validates", func(t *testing.T) {
		migrations := NewRegistry(newVersions(t))

		if _, err := migrations.Register("users", 1, splitName); !errors.Is(err, ErrInvalidMigration) {
			t.Errorf("expected ErrInvalidMigration for v1, got %v", err)
		}
		if _, err := migrations.Register("", 2, splitName); !errors.Is(err, ErrInvalidMigration) {
			t.Errorf("expected ErrInvalidMigration for empty name, got %v", err)
		}
		if _, err := migrations.Register("users", 2, nil); !errors.Is(err, ErrNilTransform) {
			t.Errorf("expected ErrNilTransform, got %v", err)
		}
		_, err := migrations.Register("users", 4, splitName)
		if !errors.Is(err, ErrInvalidMigration) || !errors.Is(err, registry.ErrVersionNotFound) {
			t.Errorf("expected missing target version, got %v", err)
		}
		_, err = migrations.Register("orders", 2, splitName)
		if !errors.Is(err, registry.ErrSchemaNotFound) {
			t.Errorf("expected ErrSchemaNotFound, got %v", err)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		migrations := newUsers(t)
		if _, err := migrations.Register("users", 2, splitName); !errors.Is(err, ErrMigrationExists) {
			t.Errorf("expected ErrMigrationExists, got %v", err)
		}
	})

	t.Run("Register captures schemas", func(t *testing.T) {
		migrations := newUsers(t)
		m, ok := migrations.Get("users", 1, 2)
		if !ok {
			t.Fatal("expected migration")
		}
		if !schema.Equal(m.Source(), usersV1) || !schema.Equal(m.Target(), usersV2) {
			t.Error("expected schemas of v1 and v2")
		}
		if m.Key() != (Key{From: 1, To: 2}) {
			t.Errorf("unexpected key %v", m.Key())
		}
		if m.Description() != "split name" || !m.Reversible() {
			t.Errorf("unexpected migration %v", m)
		}
	})

	t.Run("Get either order", func(t *testing.T) {
		migrations := newUsers(t)
		up, ok := migrations.Get("users", 2, 3)
		if !ok {
			t.Fatal("expected migration 2->3")
		}
		down, ok := migrations.Get("users", 3, 2)
		if !ok || down != up {
			t.Error("expected the same migration for 3->2")
		}
		if _, ok := migrations.Get("users", 1, 3); ok {
			t.Error("non-adjacent pair should not resolve")
		}
	})

	t.Run("List sorted", func(t *testing.T) {
		migrations := newUsers(t)
		var keys []Key
		for _, m := range migrations.List("users") {
			keys = append(keys, m.Key())
		}
		want := []Key{{1, 2}, {2, 3}}
		if diff := cmp.Diff(want, keys); diff != "" {
			t.Errorf("List mismatch (-want +got):\n%s", diff)
		}
		if len(migrations.List("orders")) != 0 {
			t.Error("expected no migrations for unknown name")
		}
	})

	t.Run("Forget and Remove", func(t *testing.T) {
		migrations := newUsers(t)
		if n := migrations.Forget("users", 2); n != 2 {
			t.Errorf("expected 2 forgotten, got %d", n)
		}
		if len(migrations.List("users")) != 0 {
			t.Error("expected no migrations left")
		}

		migrations = newUsers(t)
		migrations.Remove("users")
		if migrations.BuildChain("users", 1, 3) != nil {
			t.Error("expected no chain after Remove")
		}
	})
}

func TestRegistryPerNameLocks(t *testing.T) {
	ctx := context.Background()
	names := []string{"users", "orders", "invoices", "events"}
	versions := registry.New()
	for _, name := range names {
		versions.Create(ctx, name, usersV1)
		versions.AddVersion(ctx, name, usersV2)
	}

	t.Run("concurrent registration across names", func(t *testing.T) {
		migrations := NewRegistry(versions)
		var wg sync.WaitGroup
		for _, name := range names {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				if _, err := migrations.Register(name, 2, splitName); err != nil {
					t.Errorf("Register %s failed: %v", name, err)
				}
				migrations.BuildChain(name, 1, 2)
			}(name)
		}
		wg.Wait()
		for _, name := range names {
			if chain := migrations.BuildChain(name, 1, 2); chain.Len() != 1 {
				t.Errorf("expected one step for %s, got %+v", name, chain)
			}
		}
	})

	t.Run("a locked name does not block others", func(t *testing.T) {
		migrations := NewRegistry(versions)
		migrations.Register("users", 2, splitName)
		migrations.Register("orders", 2, splitName)

		held := migrations.lockSet("users")
		done := make(chan *Chain, 1)
		go func() { done <- migrations.BuildChain("orders", 1, 2) }()
		select {
		case chain := <-done:
			if chain.Len() != 1 {
				t.Errorf("expected one step, got %+v", chain)
			}
		case <-time.After(time.Second):
			t.Error("BuildChain blocked on another name's lock")
		}
		held.mu.Unlock()
	})

	t.Run("register after remove", func(t *testing.T) {
		migrations := NewRegistry(versions)
		migrations.Register("users", 2, splitName)
		if migrations.BuildChain("users", 1, 2) == nil {
			t.Fatal("expected chain")
		}
		migrations.Remove("users")
		if migrations.BuildChain("users", 1, 2) != nil {
			t.Error("expected removed chain to be dropped from the cache")
		}
		if _, err := migrations.Register("users", 2, splitName); err != nil {
			t.Fatalf("Register after Remove failed: %v", err)
		}
		if chain := migrations.BuildChain("users", 1, 2); chain.Len() != 1 {
			t.Errorf("expected one step, got %+v", chain)
		}
	})
}

func TestBuildChain(t *testing.T) {
	t.Run("up", func(t *testing.T) {
		chain := newUsers(t).BuildChain("users", 1, 3)
		if chain == nil {
			t.Fatal("expected chain")
		}
		if chain.Direction != Up || chain.From != 1 || chain.To != 3 {
			t.Errorf("unexpected chain %+v", chain)
		}
		if diff := cmp.Diff([]Key{{1, 2}, {2, 3}}, chain.Keys()); diff != "" {
			t.Errorf("keys mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("down", func(t *testing.T) {
		chain := newUsers(t).BuildChain("users", 3, 1)
		if chain == nil {
			t.Fatal("expected chain")
		}
		if chain.Direction != Down {
			t.Errorf("expected down, got %v", chain.Direction)
		}
		if diff := cmp.Diff([]Key{{2, 3}, {1, 2}}, chain.Keys()); diff != "" {
			t.Errorf("keys mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("same version", func(t *testing.T) {
		chain := newUsers(t).BuildChain("users", 2, 2)
		if chain == nil || !chain.Empty() {
			t.Errorf("expected empty chain, got %+v", chain)
		}
	})

	t.Run("gap", func(t *testing.T) {
		migrations := NewRegistry(newVersions(t))
		if _, err := migrations.Register("users", 3, addAge); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if chain := migrations.BuildChain("users", 1, 3); chain != nil {
			t.Errorf("expected nil chain, got %+v", chain)
		}
	})

	t.Run("Reverse", func(t *testing.T) {
		chain := newUsers(t).BuildChain("users", 1, 3)
		rev := chain.Reverse()
		if rev.From != 3 || rev.To != 1 || rev.Direction != Down {
			t.Errorf("unexpected reverse %+v", rev)
		}
		if diff := cmp.Diff([]Key{{2, 3}, {1, 2}}, rev.Keys()); diff != "" {
			t.Errorf("keys mismatch (-want +got):\n%s", diff)
		}
		if !rev.Reversible() {
			t.Error("expected reversible chain")
		}
	})

	t.Run("cache follows registrations", func(t *testing.T) {
		migrations := NewRegistry(newVersions(t), WithCacheSize(4))
		if migrations.BuildChain("users", 1, 2) != nil {
			t.Fatal("expected no chain yet")
		}
		if _, err := migrations.Register("users", 2, splitName); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		first := migrations.BuildChain("users", 1, 2)
		if first.Len() != 1 {
			t.Fatalf("expected one step, got %d", first.Len())
		}

		// callers cannot corrupt the cached chain
		first.Migrations[0] = nil
		if second := migrations.BuildChain("users", 1, 2); second.Migrations[0] == nil {
			t.Error("cached chain was modified")
		}

		migrations.Forget("users", 2)
		if migrations.BuildChain("users", 1, 2) != nil {
			t.Error("expected stale chain to be dropped")
		}
	})

	t.Run("cache disabled", func(t *testing.T) {
		migrations := NewRegistry(newVersions(t), WithCacheSize(0))
		if _, err := migrations.Register("users", 2, splitName); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if migrations.BuildChain("users", 1, 2).Len() != 1 {
			t.Error("expected chain without cache")
		}
	})
}

func TestNew(t *testing.T) {
	if _, err := New(usersV1, usersV2, nil); !errors.Is(err, ErrNilTransform) {
		t.Errorf("expected ErrNilTransform, got %v", err)
	}
	m, err := New(usersV1, usersV2, splitName, WithDescription("standalone"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if m.Name() != "" || m.From() != 0 || m.To() != 0 {
		t.Errorf("standalone migration should have no versions: %v", m)
	}
	if m.String() != "standalone" {
		t.Errorf("expected description as label, got %q", m.String())
	}
	if m.Reversible() {
		t.Error("expected irreversible migration")
	}
}

func ExampleFieldMapper() {
	mapper := NewFieldMapper().
		RenameField("customer_name", "customerName").
		AddDefault("email", "unknown@example.com")

	out, _ := mapper.Forward()(context.Background(), map[string]any{"customer_name": "Ada"})
	m := out.(map[string]any)
	fmt.Println(m["customerName"], m["email"])
	// Output: Ada unknown@example.com
}

func TestFieldMapper(t *testing.T) {
	ctx := context.Background()
	name := faker.Name().Name()

	t.Run("rename", func(t *testing.T) {
		mapper := NewFieldMapper().RenameField("old_name", "newName")
		in := map[string]any{"old_name": name, "other": "unchanged"}

		out, err := mapper.Forward()(ctx, in)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		want := map[string]any{"newName": name, "other": "unchanged"}
		if diff := cmp.Diff(want, out); diff != "" {
			t.Errorf("Forward mismatch (-want +got):\n%s", diff)
		}
		if _, ok := in["old_name"]; !ok {
			t.Error("input must not be modified")
		}

		back, err := mapper.Backward()(ctx, out)
		if err != nil {
			t.Fatalf("Backward failed: %v", err)
		}
		if diff := cmp.Diff(in, back); diff != "" {
			t.Errorf("Backward mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("default keeps existing", func(t *testing.T) {
		mapper := NewFieldMapper().AddDefault("email", "default@example.com")

		out, _ := mapper.Forward()(ctx, map[string]any{"name": name})
		if out.(map[string]any)["email"] != "default@example.com" {
			t.Errorf("expected default email, got %v", out)
		}
		out, _ = mapper.Forward()(ctx, map[string]any{"email": "a@example.com"})
		if out.(map[string]any)["email"] != "a@example.com" {
			t.Errorf("existing email should be kept, got %v", out)
		}
	})

	t.Run("remove is irreversible", func(t *testing.T) {
		mapper := NewFieldMapper().RemoveField("legacy_id")
		out, _ := mapper.Forward()(ctx, map[string]any{"name": name, "legacy_id": "x"})
		if _, ok := out.(map[string]any)["legacy_id"]; ok {
			t.Error("legacy_id should be removed")
		}
		if mapper.Reversible() || mapper.Backward() != nil {
			t.Error("expected no backward transform")
		}
	})

	t.Run("json input", func(t *testing.T) {
		mapper := NewFieldMapper().RenameField("a", "b")
		out, err := mapper.Forward()(ctx, []byte(`{"a": 1}`))
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		if diff := cmp.Diff(map[string]any{"b": float64(1)}, out); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
		if _, err := mapper.Forward()(ctx, []byte(`not json`)); err == nil {
			t.Error("expected error for invalid JSON")
		}
		if _, err := mapper.Forward()(ctx, 42); err == nil {
			t.Error("expected error for non-object")
		}
	})
}
