// Package version provides semantic version triples used as human-facing
// labels for schema versions.
//
// Internal version numbers in the registry are plain integers. A Version is
// an optional label attached to a record so callers can map "2.1.0" style
// releases onto the integer history.
//
// Example:
//
//	v, err := version.Parse("1.4.2")
//	if err != nil {
//	    return err
//	}
//	if v.Less(version.MustParse("2.0.0")) {
//	    // still on the 1.x line
//	}
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a version string is not of the form
// MAJOR.MINOR.PATCH with non-negative integer components.
var ErrMalformed = errors.New("malformed version")

// Version is a semantic version triple.
type Version struct {
	Major int `json:"major" bson:"major" msgpack:"major"`
	Minor int `json:"minor" bson:"minor" msgpack:"minor"`
	Patch int `json:"patch" bson:"patch" msgpack:"patch"`
}

// New creates a version from its components.
func New(major, minor, patch int) Version {
	return Version{Major: major, Minor: minor, Patch: patch}
}

// Parse parses a "MAJOR.MINOR.PATCH" string. A leading "v" is accepted.
func Parse(s string) (Version, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "v")
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	var nums [3]int
	for i, p := range parts {
		if !digits(p) || (len(p) > 1 && p[0] == '0') {
			return Version{}, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// digits reports whether p is a non-empty run of ASCII digits.
func digits(p string) bool {
	if p == "" {
		return false
	}
	for i := 0; i < len(p); i++ {
		if p[i] < '0' || p[i] > '9' {
			return false
		}
	}
	return true
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the "MAJOR.MINOR.PATCH" form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsZero reports whether v is 0.0.0.
func (v Version) IsZero() bool {
	return v == Version{}
}

// Compare returns -1, 0 or +1 comparing major, then minor, then patch.
func (v Version) Compare(o Version) int {
	if c := cmpInt(v.Major, o.Major); c != 0 {
		return c
	}
	if c := cmpInt(v.Minor, o.Minor); c != 0 {
		return c
	}
	return cmpInt(v.Patch, o.Patch)
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

// BumpMajor returns the next major version with minor and patch reset.
func (v Version) BumpMajor() Version {
	return Version{Major: v.Major + 1}
}

// BumpMinor returns the next minor version with patch reset.
func (v Version) BumpMinor() Version {
	return Version{Major: v.Major, Minor: v.Minor + 1}
}

// BumpPatch returns the next patch version.
func (v Version) BumpPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
