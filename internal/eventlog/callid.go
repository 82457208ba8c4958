package eventlog

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type callIDKey struct{}

// WithCallID attaches a correlation id to ctx. Events emitted by a call
// running under ctx carry it.
func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDKey{}, id)
}

// CallIDFrom returns the correlation id attached to ctx, or "".
func CallIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(callIDKey{}).(string)
	return id
}

type seqKey struct{}

// WithSeq attaches the call seq to ctx. An event emitted by the call takes
// it as its log seq.
func WithSeq(ctx context.Context, seq int64) context.Context {
	return context.WithValue(ctx, seqKey{}, seq)
}

// SeqFrom returns the call seq attached to ctx, or 0. A zero seq lets the
// log assign the next one.
func SeqFrom(ctx context.Context) int64 {
	seq, _ := ctx.Value(seqKey{}).(int64)
	return seq
}

// CallIDGenerator produces call correlation ids.
type CallIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 call ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined call ids for testing.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, which catches tests making more
// calls than they declared.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
