// Package gate provides a bounded admission gate for physical connection
// operations. Each adapter instance owns its own gate; the cap is never
// shared process-wide.
package gate

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultSlots is the admission cap used when a configuration supplies none.
const DefaultSlots = 5

// Gate caps the number of simultaneous connection operations. Acquire blocks
// until a slot frees; Release returns a slot and never blocks. Acquisitions
// are served in FIFO order. There is no internal timeout: an exhausted gate
// blocks until a slot frees or the caller's context fires.
type Gate struct {
	sem *semaphore.Weighted
}

// New returns a gate with the given number of slots. Non-positive slots fall
// back to DefaultSlots.
func New(slots int) *Gate {
	if slots <= 0 {
		slots = DefaultSlots
	}
	return &Gate{sem: semaphore.NewWeighted(int64(slots))}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release returns a slot. It must be called exactly once per successful
// Acquire, normally in a deferred cleanup path so it runs on error too.
func (g *Gate) Release() {
	g.sem.Release(1)
}
