// Package compat decides whether one schema version can stand in for another.
//
// Check compares two schemas field by field when both expose a shape
// (schema.Shaper) and classifies the change:
//
//   - Full: each side reads the other's data
//   - Backward: the new schema reads data written with the old one
//   - Breaking: the new schema rejects some old data
//
// Result.Compatible means backward compatible. Forward and None exist for
// callers that classify changes themselves; Check never produces them.
//
// By default only field presence and optionality are compared, so a field
// whose definition changes (string to number) does not affect the result.
// A Checker built with WithFieldChecks(true) also compares the definitions of
// fields present in both versions and reports differences as field_changed.
//
// Example:
//
//	res := compat.Check(v1, v2)
//	if !res.Compatible {
//	    for _, issue := range res.Issues {
//	        log.Println(issue)
//	    }
//	}
package compat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rbaliyan/evolve/schema"
)

// Type classifies a schema change.
type Type int

// Compatibility types.
const (
	None Type = iota
	Full
	Backward
	Forward
	Breaking
)

func (t Type) String() string {
	switch t {
	case Full:
		return "full"
	case Backward:
		return "backward"
	case Forward:
		return "forward"
	case Breaking:
		return "breaking"
	}
	return "none"
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Rule names the check that produced a violation.
type Rule string

// Rules.
const (
	RuleRequiredAdded   Rule = "required_field_added"
	RuleRequiredRemoved Rule = "required_field_removed"
	RuleMadeRequired    Rule = "field_made_required"
	RuleFieldChanged    Rule = "field_changed"
	RuleTypeMismatch    Rule = "type_mismatch"
	RuleShapeError      Rule = "shape_error"
)

// Violation is one incompatibility.
type Violation struct {
	Rule       Rule     `json:"rule"`
	Fields     []string `json:"fields,omitempty"`
	Backward   bool     `json:"backward"` // new schema cannot read old data
	Forward    bool     `json:"forward"`  // old schema cannot read new data
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Result is the outcome of a compatibility check.
type Result struct {
	Compatible  bool        `json:"compatible"`
	Type        Type        `json:"type"`
	Issues      []string    `json:"issues"`
	Suggestions []string    `json:"suggestions,omitempty"`
	Violations  []Violation `json:"violations,omitempty"`
}

func fullResult() Result {
	return Result{Compatible: true, Type: Full, Issues: []string{}}
}

func breaking(rule Rule, msg string) Result {
	return Result{
		Type:       Breaking,
		Issues:     []string{msg},
		Violations: []Violation{{Rule: rule, Backward: true, Forward: true, Message: msg}},
	}
}

// Option configures a Checker.
type Option func(*Checker)

// WithFieldChecks enables/disables comparing the definitions of fields kept
// across versions (default: false). Data written under the old definition
// may fail to parse under the new one, so strict registries enable it.
func WithFieldChecks(enabled bool) Option {
	return func(c *Checker) {
		c.fieldChecks = enabled
	}
}

// Checker classifies schema changes. The zero value compares presence and
// optionality only.
type Checker struct {
	fieldChecks bool
}

// NewChecker creates a checker.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultChecker = &Checker{}

// Check compares from (the old version) with to (the new version) using the
// default checker.
func Check(from, to schema.Schema) Result {
	return defaultChecker.Check(from, to)
}

// CheckTransitive runs the default checker's CheckTransitive.
func CheckTransitive(history ...schema.Schema) Result {
	return defaultChecker.CheckTransitive(history...)
}

// Check compares from (the old version) with to (the new version).
//
// Errors or panics raised while extracting shapes never escape: they yield a
// Breaking result carrying the message as its only issue.
func (c *Checker) Check(from, to schema.Schema) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = breaking(RuleShapeError, fmt.Sprint(r))
		}
	}()

	if from == nil || to == nil {
		if from == nil && to == nil {
			return fullResult()
		}
		return breaking(RuleTypeMismatch, "Schema types differ; cannot determine compatibility")
	}
	if from.Canonical() == to.Canonical() {
		return fullResult()
	}

	fromShaper, fromOK := from.(schema.Shaper)
	toShaper, toOK := to.(schema.Shaper)
	if !fromOK || !toOK {
		return breaking(RuleTypeMismatch, "Schema types differ; cannot determine compatibility")
	}

	oldShape, err := fromShaper.Shape()
	if err != nil {
		return breaking(RuleShapeError, err.Error())
	}
	newShape, err := toShaper.Shape()
	if err != nil {
		return breaking(RuleShapeError, err.Error())
	}
	if sameShape(oldShape, newShape) {
		return fullResult()
	}
	return c.compareShapes(oldShape, newShape)
}

func (c *Checker) compareShapes(oldShape, newShape schema.Shape) Result {
	var addedRequired, removedRequired, madeRequired []string

	for name, nf := range newShape {
		of, existed := oldShape[name]
		switch {
		case !existed && !nf.Optional:
			addedRequired = append(addedRequired, name)
		case existed && of.Optional && !nf.Optional:
			madeRequired = append(madeRequired, name)
		}
	}
	for name, of := range oldShape {
		if _, kept := newShape[name]; !kept && !of.Optional {
			removedRequired = append(removedRequired, name)
		}
	}

	var violations []Violation
	if len(addedRequired) > 0 {
		sort.Strings(addedRequired)
		violations = append(violations, Violation{
			Rule:       RuleRequiredAdded,
			Fields:     addedRequired,
			Backward:   true,
			Message:    "New required fields added: " + strings.Join(addedRequired, ", "),
			Suggestion: "Make new fields optional or provide default values",
		})
	}
	if len(removedRequired) > 0 {
		sort.Strings(removedRequired)
		violations = append(violations, Violation{
			Rule:       RuleRequiredRemoved,
			Fields:     removedRequired,
			Forward:    true,
			Message:    "Required fields removed: " + strings.Join(removedRequired, ", "),
			Suggestion: "Keep removed fields as optional until all readers have migrated",
		})
	}
	if len(madeRequired) > 0 {
		sort.Strings(madeRequired)
		violations = append(violations, Violation{
			Rule:       RuleMadeRequired,
			Fields:     madeRequired,
			Backward:   true,
			Message:    "Fields changed from optional to required: " + strings.Join(madeRequired, ", "),
			Suggestion: "Keep fields optional or supply defaults in a migration",
		})
	}
	if c.fieldChecks {
		for _, name := range commonFields(oldShape, newShape) {
			if v, changed := c.compareField(name, oldShape[name].Schema, newShape[name].Schema); changed {
				violations = append(violations, v)
			}
		}
	}

	return classify(violations)
}

func classify(violations []Violation) Result {
	backwardOK, forwardOK := true, true
	res := Result{Issues: []string{}, Violations: violations}
	for _, v := range violations {
		if v.Backward {
			backwardOK = false
		}
		if v.Forward {
			forwardOK = false
		}
		res.Issues = append(res.Issues, v.Message)
		if v.Suggestion != "" && !contains(res.Suggestions, v.Suggestion) {
			res.Suggestions = append(res.Suggestions, v.Suggestion)
		}
	}

	switch {
	case backwardOK && forwardOK:
		res.Type = Full
	case backwardOK:
		res.Type = Backward
	default:
		// Forward-only changes are reported as breaking too.
		res.Type = Breaking
	}
	res.Compatible = backwardOK
	return res
}

// compareField checks a field present in both versions by recursing into its
// definitions.
func (c *Checker) compareField(name string, from, to schema.Schema) (Violation, bool) {
	if schema.Equal(from, to) {
		return Violation{}, false
	}
	sub := c.Check(from, to)
	if sub.Type == Full {
		return Violation{}, false
	}
	v := Violation{
		Rule:       RuleFieldChanged,
		Fields:     []string{name},
		Backward:   !sub.Compatible,
		Message:    fmt.Sprintf("Field %s changed: %s", name, strings.Join(sub.Issues, "; ")),
		Suggestion: "Add a new field instead of changing the definition of an existing one",
	}
	for _, sv := range sub.Violations {
		if sv.Forward {
			v.Forward = true
		}
	}
	return v, true
}

func commonFields(a, b schema.Shape) []string {
	var names []string
	for name := range a {
		if _, ok := b[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// sameShape reports whether two shapes have the same fields with the same
// optionality and the same nested definitions.
func sameShape(a, b schema.Shape) bool {
	if len(a) != len(b) {
		return false
	}
	for name, af := range a {
		bf, ok := b[name]
		if !ok || af.Optional != bf.Optional || !schema.Equal(af.Schema, bf.Schema) {
			return false
		}
	}
	return true
}

// CheckTransitive checks the last schema against every earlier one and
// merges the results: the change is only as compatible as its worst pair.
// Issues are prefixed with the index of the older schema they concern.
func (c *Checker) CheckTransitive(history ...schema.Schema) Result {
	if len(history) < 2 {
		return fullResult()
	}
	latest := history[len(history)-1]
	merged := fullResult()
	for i, older := range history[:len(history)-1] {
		res := c.Check(older, latest)
		if res.Type > merged.Type {
			merged.Type = res.Type
		}
		merged.Compatible = merged.Compatible && res.Compatible
		for _, issue := range res.Issues {
			merged.Issues = append(merged.Issues, fmt.Sprintf("[%d] %s", i, issue))
		}
		merged.Violations = append(merged.Violations, res.Violations...)
		for _, s := range res.Suggestions {
			if !contains(merged.Suggestions, s) {
				merged.Suggestions = append(merged.Suggestions, s)
			}
		}
	}
	return merged
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
