package eventlog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/roach88/dmap/internal/ir"
)

// Sink accepts events from successful calls.
type Sink interface {
	Append(ctx context.Context, ev ir.Event) (ir.Event, error)
}

// Log is a sink whose events can be read back in order.
type Log interface {
	Sink
	ReadEvents(ctx context.Context, after int64, limit int) ([]ir.Event, error)
	LastSeq(ctx context.Context) (int64, error)
}

// ErrSeqOrder is returned by Append when an event's seq does not follow the
// log's last seq.
var ErrSeqOrder = errors.New("event seq does not follow the log")

// NextSeq returns the seq ev is stored under in a log whose newest event is
// last. An unset seq takes last+1; a set one must be greater than last.
// Seqs of rejected calls never reach the log, so a log may have gaps.
func NextSeq(ev ir.Event, last int64) (int64, error) {
	if ev.Seq == 0 {
		return last + 1, nil
	}
	if ev.Seq <= last {
		return 0, fmt.Errorf("%w: seq %d, last %d", ErrSeqOrder, ev.Seq, last)
	}
	return ev.Seq, nil
}

// Memory is an in-memory Log.
type Memory struct {
	mu     sync.RWMutex
	events []ir.Event
}

var _ Log = (*Memory)(nil)

// NewMemory returns an empty in-memory log.
func NewMemory() *Memory {
	return &Memory{}
}

// Append stamps ev with its seq (see NextSeq) and ID and stores it.
func (m *Memory) Append(_ context.Context, ev ir.Event) (ir.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq, err := NextSeq(ev, m.last())
	if err != nil {
		return ir.Event{}, fmt.Errorf("append event: %w", err)
	}
	ev.Seq = seq
	if ev.Args == nil {
		ev.Args = ir.Args{}
	}
	id, err := ir.EventID(ev)
	if err != nil {
		return ir.Event{}, fmt.Errorf("append event: %w", err)
	}
	ev.ID = id
	m.events = append(m.events, ev)
	return ev, nil
}

// ReadEvents returns events with seq > after. limit <= 0 means no limit.
func (m *Memory) ReadEvents(_ context.Context, after int64, limit int) ([]ir.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []ir.Event{}
	for _, ev := range m.events {
		if ev.Seq <= after {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// LastSeq returns the seq of the newest event, or 0.
func (m *Memory) LastSeq(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last(), nil
}

func (m *Memory) last() int64 {
	if len(m.events) == 0 {
		return 0
	}
	return m.events[len(m.events)-1].Seq
}

// Events returns a copy of every stored event.
func (m *Memory) Events() []ir.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ir.Event(nil), m.events...)
}

// Payloads returns the stored events without log metadata.
func (m *Memory) Payloads() []ir.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ir.Event, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Payload()
	}
	return out
}

// Discard drops every event. Seq and ID are left unset.
type Discard struct{}

func (Discard) Append(_ context.Context, ev ir.Event) (ir.Event, error) {
	return ev, nil
}

// Logger writes each event to a zerolog logger at info level.
type Logger struct {
	Log zerolog.Logger
}

func (l Logger) Append(_ context.Context, ev ir.Event) (ir.Event, error) {
	l.Log.Info().
		Int64("seq", ev.Seq).
		Str("call_id", ev.CallID).
		Stringer("event", ev).
		Msg("event")
	return ev, nil
}

// Multi appends to a primary sink, then hands the stamped event to each
// follower. A follower error is returned after the primary has accepted the
// event.
type Multi struct {
	Primary   Sink
	Followers []Sink
}

func (m Multi) Append(ctx context.Context, ev ir.Event) (ir.Event, error) {
	stamped, err := m.Primary.Append(ctx, ev)
	if err != nil {
		return ir.Event{}, err
	}
	for _, f := range m.Followers {
		if _, err := f.Append(ctx, stamped); err != nil {
			return stamped, fmt.Errorf("follower sink: %w", err)
		}
	}
	return stamped, nil
}
