// Package testutil provides deterministic substitutes for the store's
// injected dependencies.
//
// Production code never imports this package. Tests and the scenario
// harness use it to make timestamps and identifiers reproducible, so the
// same inputs always produce byte-identical rows and golden files.
package testutil

import (
	"sync"
	"time"
)

// FixedClock issues wall-clock nanosecond timestamps from a fixed start,
// advancing by a fixed step on every tick.
//
// Unlike store.WallClock, FixedClock never reads the real time and can be
// reset for test reuse. The same scenario with the same FixedClock produces
// identical realized_at and superseded_at values on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu    sync.Mutex
	start int64
	step  int64
	n     int64
}

// NewFixedClock creates a clock whose first tick returns start and whose
// k-th tick returns start + (k-1)*step.
//
// A zero step makes every tick return the same instant, which is useful for
// exercising the strict-monotonicity handling in callers; most tests want a
// positive step such as time.Second.
func NewFixedClock(start time.Time, step time.Duration) *FixedClock {
	return &FixedClock{start: start.UnixNano(), step: int64(step)}
}

// Next returns the next timestamp in the sequence as unix nanoseconds.
//
// Implements the clock dependency store.Open wires by default.
func (c *FixedClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.start + c.n*c.step
	c.n++
	return v
}

// Ticks returns how many timestamps have been issued so far.
func (c *FixedClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset rewinds the clock to its start.
//
// Used for test reuse. After Reset(), the next call to Next() returns the
// start instant again.
func (c *FixedClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
