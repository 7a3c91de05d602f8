package store

import (
	"sync/atomic"
	"time"
)

// Clock issues realized_at timestamps in unix nanoseconds. Every call
// must return a value strictly greater than the previous call, so the
// (realized_at, uuid) scan order never interleaves two writes of one
// writer. Implementations must be safe for concurrent use.
type Clock interface {
	Next() int64
}

// WallClock anchors realized_at to the system clock. When the wall clock
// repeats a reading or steps backwards, the issued value is bumped one
// nanosecond past the previous one instead, preserving strict
// monotonicity.
//
// Thread-safety: safe for concurrent use (atomic compare-and-swap).
// However, the store's single-writer design means only one goroutine
// typically calls Next().
type WallClock struct {
	last atomic.Int64
}

// NewWallClock creates a clock anchored to the system wall clock.
func NewWallClock() *WallClock {
	return &WallClock{}
}

// Next returns the next realized_at timestamp.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *WallClock) Next() int64 {
	for {
		last := c.last.Load()
		now := time.Now().UnixNano()
		if now <= last {
			now = last + 1
		}
		if c.last.CompareAndSwap(last, now) {
			return now
		}
	}
}

// Current returns the most recently issued timestamp without advancing.
// Zero if the clock has never been read.
func (c *WallClock) Current() int64 {
	return c.last.Load()
}
