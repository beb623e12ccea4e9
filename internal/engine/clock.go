package engine

import (
	"sync/atomic"
	"time"
)

// Clock supplies wall time for help bookkeeping (ActiveSince, struggle
// detection). It never participates in ordering; evaluations are ordered
// by Sequence.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Sequence is a monotonic logical counter stamping each evaluation.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations).
// However, the Engine itself is single-threaded, so only one goroutine
// typically calls Next().
type Sequence struct {
	seq atomic.Int64
}

// NewSequence creates a sequence starting at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// NewSequenceAt creates a sequence starting at a specific number.
// Used by replay to continue numbering a journaled session.
func NewSequenceAt(start int64) *Sequence {
	s := &Sequence{}
	s.seq.Store(start)
	return s
}

// Next returns the next sequence number and increments the counter.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}
