package testutil

import (
	"fmt"
	"sync"
)

// FixedIDs returns predetermined run IDs in order.
//
// Thread-safety: safe for concurrent use.
type FixedIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDs creates a generator returning ids in order. With no ids it
// returns "run-1", "run-2", ... forever.
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// Generate returns the next ID. It panics once a non-empty list is exhausted
// so a test that runs more often than it planned for fails loudly.
func (g *FixedIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.idx++
	if len(g.ids) == 0 {
		return fmt.Sprintf("run-%d", g.idx)
	}
	if g.idx > len(g.ids) {
		panic(fmt.Sprintf("FixedIDs: exhausted after %d ids", len(g.ids)))
	}
	return g.ids[g.idx-1]
}
