package slot

import (
	"sort"
	"sync"
)

// MemStore is an in-memory Store. Useful for tests and for callers that
// want table semantics without persistence.
type MemStore struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{slots: make(map[string][]byte)}
}

// Get implements Store.
func (s *MemStore) Get(name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.slots[name]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Set implements Store.
func (s *MemStore) Set(name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.slots[name] = stored
	return nil
}

// Delete implements Store.
func (s *MemStore) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, name)
	return nil
}

// Names implements Store.
func (s *MemStore) Names() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.slots))
	for name := range s.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
