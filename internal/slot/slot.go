// Package slot provides the persistent named key-value slots that tables
// are stored in.
//
// A slot is one named byte value. The store is deliberately dumb: no
// versioning, no transactions, no per-slot metadata. Whatever durability the
// backing store offers is all the durability there is.
package slot

import "errors"

// ErrNotFound is returned by Get when the named slot has never been written.
var ErrNotFound = errors.New("slot not found")

// Store is a flat namespace of named byte slots.
type Store interface {
	// Get returns the current contents of the named slot, or ErrNotFound.
	Get(name string) ([]byte, error)
	// Set replaces the contents of the named slot, creating it if needed.
	Set(name string, data []byte) error
	// Delete removes the named slot. Deleting a missing slot is not an error.
	Delete(name string) error
	// Names returns the names of all existing slots.
	Names() ([]string, error)
}
