package table

import (
	"sync"
	"time"
)

// ID layout (53 bits, so values stay exact through a float64 JSON round trip):
// - Bits 52-10: milliseconds since Epoch (43 bits = ~278 years)
// - Bits 9-0: per-millisecond counter (1024 inserts per ms)

const (
	// Epoch is 2024-01-01 00:00:00 UTC in milliseconds.
	Epoch int64 = 1704067200000

	counterBits = 10
	counterMask = 1<<counterBits - 1
)

var (
	idMu      sync.Mutex
	idLastMs  int64
	idCounter int64
)

// NewID generates a time-derived record identifier.
//
// IDs are strictly increasing within a process: inserts in the same
// millisecond increment a counter instead of reusing the raw clock reading,
// and counter overflow borrows the next millisecond.
func NewID() int64 {
	idMu.Lock()
	defer idMu.Unlock()

	ms := time.Now().UnixMilli() - Epoch
	if ms < 0 {
		ms = 0
	}
	if ms <= idLastMs {
		// Same millisecond, or the clock has not caught up with a
		// previously borrowed one: increment the counter.
		idCounter++
		if idCounter > counterMask {
			idLastMs++
			idCounter = 0
		}
	} else {
		idLastMs = ms
		idCounter = 0
	}
	return idLastMs<<counterBits | idCounter
}

// IDTime extracts the timestamp from an ID.
func IDTime(id int64) time.Time {
	return time.UnixMilli(id>>counterBits + Epoch)
}
