package testutil

import (
	"sync"
	"time"
)

// DefaultClockBase is the first instant returned by a DeterministicClock.
var DefaultClockBase = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock is a thread-safe logical clock for tests.
//
// Every Now() call advances the sequence by one and returns Base + seq*Step,
// so recorded transcripts carry identical timestamps across runs.
// It satisfies transcript.Clock and can be reset for test reuse.
type DeterministicClock struct {
	mu   sync.Mutex
	seq  int64
	base time.Time
	step time.Duration
}

// NewDeterministicClock creates a clock at DefaultClockBase ticking one
// second per call. The first call to Next() returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{base: DefaultClockBase, step: time.Second}
}

// NewFrozenClock creates a clock whose Now never moves.
func NewFrozenClock(at time.Time) *DeterministicClock {
	return &DeterministicClock{base: at}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Now advances the clock and returns the corresponding instant.
func (c *DeterministicClock) Now() time.Time {
	seq := c.Next()
	return c.base.Add(time.Duration(seq) * c.step)
}

// Reset resets the clock to 0.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
