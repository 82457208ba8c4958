package eventlog

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dmap/internal/ir"
	"github.com/roach88/dmap/internal/kv"
)

// memoryAtomicLog is an AtomicLog over a kv.Memory: the event is appended
// inside the state Update, so a failed append discards the state change.
type memoryAtomicLog struct {
	*kv.Memory
	events     *Memory
	failAppend error
}

var _ AtomicLog = (*memoryAtomicLog)(nil)

func newMemoryAtomicLog() *memoryAtomicLog {
	return &memoryAtomicLog{Memory: kv.NewMemory(), events: NewMemory()}
}

func (l *memoryAtomicLog) Append(ctx context.Context, ev ir.Event) (ir.Event, error) {
	return l.events.Append(ctx, ev)
}

func (l *memoryAtomicLog) ReadEvents(ctx context.Context, after int64, limit int) ([]ir.Event, error) {
	return l.events.ReadEvents(ctx, after, limit)
}

func (l *memoryAtomicLog) LastSeq(ctx context.Context) (int64, error) {
	return l.events.LastSeq(ctx)
}

func (l *memoryAtomicLog) UpdateAppend(ctx context.Context, fn func(kv.Txn) (ir.Event, error)) (ir.Event, error) {
	var out ir.Event
	err := l.Update(ctx, func(tx kv.Txn) error {
		ev, err := fn(tx)
		if err != nil {
			return err
		}
		if l.failAppend != nil {
			return l.failAppend
		}
		out, err = l.events.Append(ctx, ev)
		return err
	})
	return out, err
}

var testKey = []byte("k")

func put(ev ir.Event) func(kv.Txn) (ir.Event, error) {
	return func(tx kv.Txn) (ir.Event, error) {
		return ev, tx.Put(testKey, []byte("v"))
	}
}

func TestCommitter_AfterCommit(t *testing.T) {
	store := kv.NewMemory()
	events := NewMemory()
	c := NewCommitter(store, events, zerolog.Nop())
	assert.False(t, c.Atomic())

	ctx := WithSeq(WithCallID(t.Context(), "call-4"), 4)
	ev, err := c.Commit(ctx, put(ir.NewMember(1)))
	require.NoError(t, err)
	assert.Equal(t, int64(4), ev.Seq)
	assert.Equal(t, "call-4", ev.CallID)
	assert.NotEmpty(t, ev.ID)

	ok, err := store.Has(t.Context(), testKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCommitter_RejectionWritesNothing(t *testing.T) {
	store := kv.NewMemory()
	events := NewMemory()
	c := NewCommitter(store, events, zerolog.Nop())
	rejected := errors.New("rejected")

	_, err := c.Commit(t.Context(), func(tx kv.Txn) (ir.Event, error) {
		if err := tx.Put(testKey, []byte("v")); err != nil {
			return ir.Event{}, err
		}
		return ir.Event{}, rejected
	})
	assert.Equal(t, rejected, err)

	ok, err := store.Has(t.Context(), testKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, events.Events())
}

func TestCommitter_SinkFailureAfterCommit(t *testing.T) {
	store := kv.NewMemory()
	boom := errors.New("disk full")
	c := NewCommitter(store, failingSink{boom}, zerolog.Nop())

	_, err := c.Commit(t.Context(), put(ir.NewMember(1)))
	require.ErrorIs(t, err, boom)

	ok, err := store.Has(t.Context(), testKey)
	require.NoError(t, err)
	assert.True(t, ok, "state stays committed when the sink is separate")
}

func TestCommitter_Atomic(t *testing.T) {
	log := newMemoryAtomicLog()
	follower := NewMemory()

	c := NewCommitter(log, Multi{Primary: log, Followers: []Sink{follower}}, zerolog.Nop())
	require.True(t, c.Atomic())

	ev, err := c.Commit(WithSeq(t.Context(), 2), put(ir.NewMember(1)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), ev.Seq)
	assert.Len(t, log.events.Events(), 1)
	assert.Equal(t, []ir.Event{ev}, follower.Events())
}

func TestCommitter_AtomicAppendFailureRollsBack(t *testing.T) {
	log := newMemoryAtomicLog()
	boom := errors.New("insert failed")
	log.failAppend = boom

	c := NewCommitter(log, log, zerolog.Nop())
	_, err := c.Commit(t.Context(), put(ir.NewMember(1)))
	require.ErrorIs(t, err, boom)

	ok, err := log.Has(t.Context(), testKey)
	require.NoError(t, err)
	assert.False(t, ok, "state change rolls back with its event")
	assert.Empty(t, log.events.Events())
}

func TestCommitter_AtomicFollowerFailure(t *testing.T) {
	log := newMemoryAtomicLog()
	c := NewCommitter(log, Multi{Primary: log, Followers: []Sink{failingSink{errors.New("down")}}}, zerolog.Nop())

	ev, err := c.Commit(t.Context(), put(ir.NewMember(1)))
	require.NoError(t, err, "the event is durable once the transaction commits")
	assert.Equal(t, int64(1), ev.Seq)
}

func TestCommitter_OtherStoreIsNotAtomic(t *testing.T) {
	log := newMemoryAtomicLog()
	c := NewCommitter(kv.NewMemory(), log, zerolog.Nop())
	assert.False(t, c.Atomic())
}

func TestNextSeq(t *testing.T) {
	seq, err := NextSeq(ir.NewMember(1), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(5), seq)

	ev := ir.NewMember(1)
	ev.Seq = 9
	seq, err = NextSeq(ev, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(9), seq)

	ev.Seq = 4
	_, err = NextSeq(ev, 4)
	assert.ErrorIs(t, err, ErrSeqOrder)
}

func TestMemory_KeepsCallSeqs(t *testing.T) {
	m := NewMemory()
	ctx := t.Context()

	first := ir.NewMember(1)
	first.Seq = 1
	_, err := m.Append(ctx, first)
	require.NoError(t, err)

	third := ir.NewMember(2)
	third.Seq = 3
	_, err = m.Append(ctx, third)
	require.NoError(t, err)

	last, err := m.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)

	_, err = m.Append(ctx, third)
	assert.ErrorIs(t, err, ErrSeqOrder)

	after, err := m.ReadEvents(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, int64(3), after[0].Seq)
}
