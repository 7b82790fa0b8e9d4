package engine

import "sync/atomic"

// LogicalClock is the sequence counter that orders records and measures
// latency. Implemented by Clock (production) and testutil.DeterministicClock.
type LogicalClock interface {
	Next() int64
	Current() int64
}

// Clock is a monotonic logical clock.
//
// Every add and every removal is stamped with a strictly increasing value
// from this clock. It doubles as the arrival counter: a record's Seq is the
// clock value at insertion.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The engine still advances it only under its own lock so that latency
// accounting stays monotonic within an operation.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used by Restore to resume from a persisted snapshot.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
