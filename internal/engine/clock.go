package engine

import "sync/atomic"

// Clock numbers executed calls. Seqs start at 1 and never repeat within
// one clock, including calls that are rejected.
type Clock struct {
	seq atomic.Int64
}

var _ Sequencer = (*Clock)(nil)

// NewClock returns a clock whose first seq is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock whose first seq is start+1, for an engine
// resuming after start calls.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Advance moves the clock forward to at least seq. It never moves back.
func (c *Clock) Advance(seq int64) {
	for {
		cur := c.seq.Load()
		if seq <= cur || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
