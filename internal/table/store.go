package table

import (
	"log/slog"
	"sync"

	"github.com/slotdb/slotdb/internal/slot"
)

// Store hands out per-name table handles over one slot store.
//
// Handles are shared: Open returns the same *Table for the same name, so
// every caller in the process serializes on the same per-table mutex.
type Store struct {
	slots slot.Store
	log   *slog.Logger

	mu     sync.Mutex
	tables map[string]*Table
}

// NewStore creates a table registry over the given slot store.
// A nil logger falls back to slog.Default().
func NewStore(slots slot.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		slots:  slots,
		log:    logger,
		tables: make(map[string]*Table),
	}
}

// Open returns the shared handle for the named table, creating the handle on
// first use. The table itself comes into existence on its first write; no
// schema or creation step is involved.
func (s *Store) Open(name string) *Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		t = &Table{name: name, slots: s.slots, log: s.log}
		s.tables[name] = t
	}
	return t
}
