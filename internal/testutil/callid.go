package testutil

import (
	"fmt"
	"sync"
)

// SequentialCallIDs generates call ids "<prefix>-1", "<prefix>-2", ...
//
// Unlike eventlog.FixedGenerator it never runs out, so a scenario of any
// length gets byte-identical ids on every run.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialCallIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialCallIDs creates a generator. An empty prefix means "call".
func NewSequentialCallIDs(prefix string) *SequentialCallIDs {
	if prefix == "" {
		prefix = "call"
	}
	return &SequentialCallIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialCallIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *SequentialCallIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
