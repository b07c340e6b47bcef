// Provides exact-match query filtering over records.

package table

import "reflect"

// Query is a partial field-to-value mapping. A record matches iff every
// query field exists on the record and compares equal; the empty query
// matches everything.
type Query map[string]any

// Matches reports whether the record satisfies every field of the query.
// A field missing from the record never matches.
func (q Query) Matches(r Record) bool {
	for field, want := range q {
		got, ok := r[field]
		if !ok {
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares two record values.
//
// JSON decoding turns every number into a float64, so numeric comparison
// crosses int/int64/float64 by value. Everything else compares strictly by
// type.
func valuesEqual(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		return ok && fa == fb
	}
	switch va := a.(type) {
	case nil:
		return b == nil
	case string:
		vb, ok := b.(string)
		return ok && va == vb
	case bool:
		vb, ok := b.(bool)
		return ok && va == vb
	}
	// Composite values (nested arrays/objects) compare structurally.
	return reflect.DeepEqual(a, b)
}

// asFloat converts any numeric record value to float64.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
