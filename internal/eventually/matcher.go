package eventually

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Mismatch describes why a matcher was not satisfied.
// A nil *Mismatch means the matcher held.
type Mismatch struct {
	// Description states what was actually observed, e.g. "got length 0".
	Description string
}

// Mismatchf builds a Mismatch from a format string.
func Mismatchf(format string, args ...any) *Mismatch {
	return &Mismatch{Description: fmt.Sprintf(format, args...)}
}

// Matcher is a pure predicate over a probed value.
//
// Match returns nil when the value satisfies the matcher, otherwise a
// Mismatch describing what was observed. Describe states what the matcher
// expects. Both sides are mandatory: on budget exhaustion the matcher's
// descriptions are the only diagnostic output a failed verification has.
//
// Matchers must not sleep, retry, or mutate external state.
type Matcher interface {
	Match(actual any) *Mismatch
	Describe() string
}

// MatcherFunc adapts a plain function into a Matcher. It is the extension
// point for one-off predicates that the closed combinator set doesn't cover.
func MatcherFunc(desc string, fn func(actual any) *Mismatch) Matcher {
	return &funcMatcher{desc: desc, fn: fn}
}

type funcMatcher struct {
	desc string
	fn   func(any) *Mismatch
}

func (m *funcMatcher) Match(actual any) *Mismatch { return m.fn(actual) }
func (m *funcMatcher) Describe() string           { return m.desc }

// EqualTo matches values equal to want. Comparison is performed over the
// JSON shape of both sides, so an int 1 matches a float64 1 decoded from a
// response body. There is no implicit tolerance: 1 never matches 1.1.
func EqualTo(want any) Matcher {
	return &equalMatcher{want: want}
}

type equalMatcher struct {
	want any
}

func (m *equalMatcher) Match(actual any) *Mismatch {
	if valuesEqual(m.want, actual) {
		return nil
	}
	return Mismatchf("got %s", formatValue(actual))
}

func (m *equalMatcher) Describe() string {
	return formatValue(m.want)
}

// Not negates a matcher.
func Not(inner Matcher) Matcher {
	return &notMatcher{inner: inner}
}

type notMatcher struct {
	inner Matcher
}

func (m *notMatcher) Match(actual any) *Mismatch {
	if m.inner.Match(actual) == nil {
		return Mismatchf("got %s", formatValue(actual))
	}
	return nil
}

func (m *notMatcher) Describe() string {
	return "not " + m.inner.Describe()
}

// Contains matches strings containing want as a substring, and sequences
// containing an element equal to want.
func Contains(want any) Matcher {
	return &containsMatcher{want: want}
}

type containsMatcher struct {
	want any
}

func (m *containsMatcher) Match(actual any) *Mismatch {
	shaped := jsonShape(actual)

	if s, ok := shaped.(string); ok {
		sub, ok := jsonShape(m.want).(string)
		if !ok {
			return Mismatchf("got string %q, but the wanted element %s is not a string", s, formatValue(m.want))
		}
		if strings.Contains(s, sub) {
			return nil
		}
		return Mismatchf("got %q", s)
	}

	if seq, ok := shaped.([]any); ok {
		for _, elem := range seq {
			if valuesEqual(m.want, elem) {
				return nil
			}
		}
		return Mismatchf("got %s", formatValue(shaped))
	}

	return Mismatchf("got %s, which is neither a string nor a sequence", formatValue(actual))
}

func (m *containsMatcher) Describe() string {
	return "contains " + formatValue(m.want)
}

// HasLen matches sequences, maps, and strings by length. want is either an
// exact int or a Matcher evaluated against the length.
func HasLen(want any) Matcher {
	return &lenMatcher{want: toMatcher(want)}
}

type lenMatcher struct {
	want Matcher
}

func (m *lenMatcher) Match(actual any) *Mismatch {
	n, ok := lengthOf(actual)
	if !ok {
		return Mismatchf("got %s, which has no length", formatValue(actual))
	}
	if mm := m.want.Match(n); mm != nil {
		return Mismatchf("got length %d", n)
	}
	return nil
}

func (m *lenMatcher) Describe() string {
	return "length " + m.want.Describe()
}

// HasField matches a value carrying the named field, with the field value
// satisfying want. path may be a dotted chain for nested records, e.g.
// "lastTaskFailure.state". Structs are addressed through their JSON field
// names. want is either a plain value (EqualTo semantics) or a Matcher.
func HasField(path string, want any) Matcher {
	return &fieldMatcher{path: path, want: toMatcher(want)}
}

type fieldMatcher struct {
	path string
	want Matcher
}

func (m *fieldMatcher) Match(actual any) *Mismatch {
	value, ok := lookupPath(jsonShape(actual), m.path)
	if !ok {
		return Mismatchf("field %q not present in %s", m.path, formatValue(actual))
	}
	if mm := m.want.Match(value); mm != nil {
		return Mismatchf("field %q: %s", m.path, mm.Description)
	}
	return nil
}

func (m *fieldMatcher) Describe() string {
	return fmt.Sprintf("field %q = %s", m.path, m.want.Describe())
}

// HasFields matches a record field by field. All entries must hold; fields
// are evaluated in sorted name order and evaluation short-circuits, so a
// failure reports exactly one field: the first failing one.
func HasFields(fields map[string]any) Matcher {
	return &fieldsMatcher{fields: fields}
}

type fieldsMatcher struct {
	fields map[string]any
}

func (m *fieldsMatcher) Match(actual any) *Mismatch {
	for _, name := range sortedKeys(m.fields) {
		if mm := HasField(name, m.fields[name]).Match(actual); mm != nil {
			return mm
		}
	}
	return nil
}

func (m *fieldsMatcher) Describe() string {
	parts := make([]string, 0, len(m.fields))
	for _, name := range sortedKeys(m.fields) {
		parts = append(parts, fmt.Sprintf("%s = %s", name, toMatcher(m.fields[name]).Describe()))
	}
	return "fields {" + strings.Join(parts, ", ") + "}"
}

// AllOf matches when every inner matcher holds. Evaluation short-circuits
// and only the first failing matcher's mismatch is reported.
func AllOf(matchers ...Matcher) Matcher {
	return &allOfMatcher{matchers: matchers}
}

type allOfMatcher struct {
	matchers []Matcher
}

func (m *allOfMatcher) Match(actual any) *Mismatch {
	for _, inner := range m.matchers {
		if mm := inner.Match(actual); mm != nil {
			return mm
		}
	}
	return nil
}

func (m *allOfMatcher) Describe() string {
	parts := make([]string, len(m.matchers))
	for i, inner := range m.matchers {
		parts[i] = inner.Describe()
	}
	return strings.Join(parts, " and ")
}

// toMatcher wraps plain values in EqualTo; Matchers pass through.
func toMatcher(want any) Matcher {
	if m, ok := want.(Matcher); ok {
		return m
	}
	return EqualTo(want)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// jsonShape normalizes a value into its JSON shape: structs and typed maps
// become map[string]any, slices become []any, and all numbers become
// float64. Values that cannot round-trip through JSON are returned as-is.
func jsonShape(v any) any {
	if v == nil {
		return nil
	}
	switch v.(type) {
	case string, float64, bool, map[string]any, []any:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

// valuesEqual compares two values over their JSON shapes, coercing numeric
// representations (int vs float64) along the way.
func valuesEqual(want, got any) bool {
	return reflect.DeepEqual(jsonShape(want), jsonShape(got))
}

// lengthOf returns the length of a string, sequence, or map.
func lengthOf(v any) (int, bool) {
	switch shaped := jsonShape(v).(type) {
	case string:
		return len(shaped), true
	case []any:
		return len(shaped), true
	case map[string]any:
		return len(shaped), true
	default:
		return 0, false
	}
}

// lookupPath descends a dotted field path through nested JSON objects.
func lookupPath(v any, path string) (any, bool) {
	current := v
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// formatValue renders a value for a failure message. JSON keeps records and
// sequences readable; values that won't marshal fall back to %v.
func formatValue(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(jsonShape(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
