package version

import (
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	t.Run("valid versions", func(t *testing.T) {
		tests := []struct {
			in   string
			want Version
		}{
			{"1.2.3", New(1, 2, 3)},
			{"v0.0.1", New(0, 0, 1)},
			{" 10.20.30 ", New(10, 20, 30)},
		}
		for _, tt := range tests {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	})

	t.Run("malformed versions fail", func(t *testing.T) {
		for _, in := range []string{"", "1", "1.2", "1.2.3.4", "a.b.c", "1.-2.3", "01.2.3", "1..3"} {
			if _, err := Parse(in); !errors.Is(err, ErrMalformed) {
				t.Errorf("Parse(%q): expected ErrMalformed, got %v", in, err)
			}
		}
	})

	t.Run("signs and spaces inside components fail", func(t *testing.T) {
		for _, in := range []string{"+1.2.3", "1.-0.0", "1.+2.3", "-0.1.2", "1. 2.3", "1.2.3 4", "1.2.0x1"} {
			if v, err := Parse(in); !errors.Is(err, ErrMalformed) {
				t.Errorf("Parse(%q) = %v, expected ErrMalformed, got %v", in, v, err)
			}
		}
	})

	t.Run("MustParse panics on malformed input", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		MustParse("nope")
	})
}

func TestCompare(t *testing.T) {
	t.Run("component-wise ordering", func(t *testing.T) {
		if New(1, 2, 3).Compare(New(1, 2, 3)) != 0 {
			t.Error("expected equal versions to compare 0")
		}
		if !New(1, 9, 9).Less(New(2, 0, 0)) {
			t.Error("major should dominate")
		}
		if !New(1, 2, 9).Less(New(1, 3, 0)) {
			t.Error("minor should dominate patch")
		}
		if New(1, 2, 4).Less(New(1, 2, 3)) {
			t.Error("1.2.4 should not sort before 1.2.3")
		}
	})

	t.Run("sorts a release list", func(t *testing.T) {
		vs := []Version{New(2, 0, 0), New(1, 10, 0), New(1, 2, 0), New(0, 9, 1)}
		sort.Slice(vs, func(i, j int) bool { return vs[i].Less(vs[j]) })
		want := []Version{New(0, 9, 1), New(1, 2, 0), New(1, 10, 0), New(2, 0, 0)}
		if diff := cmp.Diff(want, vs); diff != "" {
			t.Errorf("unexpected order (-want +got):\n%s", diff)
		}
	})
}

func TestBump(t *testing.T) {
	v := New(1, 2, 3)
	if got := v.BumpMajor(); got != New(2, 0, 0) {
		t.Errorf("BumpMajor = %v", got)
	}
	if got := v.BumpMinor(); got != New(1, 3, 0) {
		t.Errorf("BumpMinor = %v", got)
	}
	if got := v.BumpPatch(); got != New(1, 2, 4) {
		t.Errorf("BumpPatch = %v", got)
	}
}

func TestText(t *testing.T) {
	var v Version
	if err := v.UnmarshalText([]byte("3.1.4")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	b, _ := v.MarshalText()
	if string(b) != "3.1.4" {
		t.Errorf("expected 3.1.4, got %s", b)
	}
	if err := v.UnmarshalText([]byte("x")); err == nil {
		t.Error("expected error for malformed text")
	}
}
