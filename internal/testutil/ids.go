package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator issues identifiers from a counting sequence instead of
// random UUIDs.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario with the same SequenceGenerator produces byte-identical
// rows. The counter is zero-padded to six digits so lexicographic order
// matches issue order, which keeps uuid tie-breaks in read paths stable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int64
}

// NewSequenceGenerator creates a generator producing prefix + six-digit
// counter, starting at 000001.
//
// If prefix is empty it defaults to "soil-test-", which carries the soil
// identifier prefix so generated IDs pass fact.IsSoilID.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "soil-test-"
	}
	return &SequenceGenerator{prefix: prefix}
}

// NewID returns the next identifier in the sequence.
//
// Implements fact.IDGenerator.
func (g *SequenceGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s%06d", g.prefix, g.n)
}

// Reset rewinds the sequence so the next NewID() returns 000001 again.
func (g *SequenceGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
