// Package table implements a table-like data store over a persistent named
// slot: an ordered sequence of records held as one JSON array, with
// insert/select/update/delete semantics and exact-match query filtering.
package table

import "maps"

// idField is the reserved record field assigned at insert time.
const idField = "id"

// Record is one entry in a table: a mapping of field name to value with a
// reserved numeric "id" field. The field set is caller-defined per table.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	return maps.Clone(r)
}

// ID returns the record's identifier, or 0 when unset or non-numeric.
func (r Record) ID() int64 {
	switch v := r[idField].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	}
	return 0
}

// merge returns a copy of r with every field of updates overriding r's.
// Fields absent from updates are preserved.
func (r Record) merge(updates Record) Record {
	out := r.Clone()
	maps.Copy(out, updates)
	return out
}

// normalizeID converts a JSON-decoded float64 id back to int64 when the
// value is integral, so persisted and freshly inserted records carry the
// same id type.
func (r Record) normalizeID() {
	if v, ok := r[idField].(float64); ok && v == float64(int64(v)) {
		r[idField] = int64(v)
	}
}
