// Implements full-table CRUD against a single named slot.

package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/slotdb/slotdb/internal/slot"
)

// Table is an exclusive handle to one named table.
//
// Every operation is a full read-modify-write cycle against the backing
// slot, serialized by an in-process mutex. Obtain handles through
// [Store.Open] so all callers in the process share the same mutex.
//
// Mutating operations return their result from the post-mutation in-memory
// state together with any persist error, so a caller that ignores the error
// gets best-effort durability and a caller that checks it can react.
type Table struct {
	name  string
	slots slot.Store
	log   *slog.Logger

	mu sync.Mutex
}

// Name returns the slot name the table persists under.
func (t *Table) Name() string {
	return t.name
}

// Insert assigns a fresh id to a copy of rec, appends it to the table, and
// persists. The given record is not modified; the returned one carries the
// assigned id. No duplicate-id check is performed.
func (t *Table) Insert(rec Record) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stored := rec.Clone()
	stored[idField] = NewID()
	err := t.persist(append(t.load(), stored))
	return stored, err
}

// Select returns the records matching q, in insertion order, sliced to the
// 1-based page of the given size.
//
// page and limit are not validated: non-positive or out-of-range values
// degrade to an empty result, never an error.
func (t *Table) Select(q Query, page, limit int) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return paginate(filter(t.load(), q), page, limit)
}

// Update shallow-merges updates over every record matching q and persists.
// Fields named in updates override; fields absent from updates are
// preserved. Returns all updated records reflecting the new state.
func (t *Table) Update(q Query, updates Record) ([]Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	recs := t.load()
	var updated []Record
	for i, r := range recs {
		if q.Matches(r) {
			merged := r.merge(updates)
			recs[i] = merged
			updated = append(updated, merged)
		}
	}
	err := t.persist(recs)
	return updated, err
}

// Delete removes every record matching q and persists the remainder.
// Returns the number removed.
func (t *Table) Delete(q Query) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	recs := t.load()
	kept := make([]Record, 0, len(recs))
	for _, r := range recs {
		if !q.Matches(r) {
			kept = append(kept, r)
		}
	}
	err := t.persist(kept)
	return len(recs) - len(kept), err
}

// Clear discards all records, persisting an empty table. The slot itself
// remains.
func (t *Table) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.persist(nil)
}

// Replace overwrites the persisted table with recs wholesale: no merge, no
// diffing. This is the pull-sync primitive.
func (t *Table) Replace(recs []Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.persist(recs)
}

// All returns every record in insertion order.
func (t *Table) All() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load()
}

// Len returns the number of persisted records.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.load())
}

// load reads and decodes the persisted table.
//
// A missing, corrupt, or non-array slot reads as an empty table: the
// condition is logged, never returned. Storage degradation must not break
// local reads.
func (t *Table) load() []Record {
	data, err := t.slots.Get(t.name)
	if err != nil {
		if !errors.Is(err, slot.ErrNotFound) {
			t.log.Warn("Failed to read table, treating as empty", "table", t.name, "err", err)
		}
		return nil
	}
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		t.log.Warn("Table slot is not a JSON array, treating as empty", "table", t.name, "err", err)
		return nil
	}
	for _, r := range recs {
		r.normalizeID()
	}
	return recs
}

// persist encodes and writes the full table. Failures are logged and
// returned.
func (t *Table) persist(recs []Record) error {
	if recs == nil {
		recs = []Record{}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		err = fmt.Errorf("failed to marshal table %s: %w", t.name, err)
	} else if err = t.slots.Set(t.name, data); err != nil {
		err = fmt.Errorf("failed to write table %s: %w", t.name, err)
	}
	if err != nil {
		t.log.Error("Failed to persist table", "table", t.name, "err", err)
		return err
	}
	return nil
}

// filter retains the records matching q, preserving order.
func filter(recs []Record, q Query) []Record {
	if len(q) == 0 {
		return recs
	}
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// paginate slices recs to the 1-based page of the given size, clamped to
// the sequence bounds.
func paginate(recs []Record, page, limit int) []Record {
	start := (page - 1) * limit
	if limit <= 0 || start < 0 || start >= len(recs) {
		return nil
	}
	return recs[start:min(start+limit, len(recs))]
}
