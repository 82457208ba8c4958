package eventlog

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dmap/internal/ir"
)

func TestMemory_AppendStampsSeqAndID(t *testing.T) {
	m := NewMemory()
	ctx := t.Context()

	a, err := m.Append(ctx, ir.NewMember(1))
	require.NoError(t, err)
	b, err := m.Append(ctx, ir.MemberJoinsGroup(1, 3, 5))
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.Seq)
	assert.Equal(t, int64(2), b.Seq)
	assert.Equal(t, ir.MustEventID(a), a.ID)
	assert.NotEqual(t, a.ID, b.ID)

	last, err := m.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), last)

	assert.Equal(t, []ir.Event{ir.NewMember(1), ir.MemberJoinsGroup(1, 3, 5)}, m.Payloads())
}

func TestMemory_ReadEvents(t *testing.T) {
	m := NewMemory()
	ctx := t.Context()
	for i := ir.AccountID(1); i <= 5; i++ {
		_, err := m.Append(ctx, ir.NewMember(i))
		require.NoError(t, err)
	}

	all, err := m.ReadEvents(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	page, err := m.ReadEvents(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(3), page[0].Seq)
	assert.Equal(t, int64(4), page[1].Seq)

	none, err := m.ReadEvents(ctx, 5, 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestMemory_EventsIsCopy(t *testing.T) {
	m := NewMemory()
	_, err := m.Append(t.Context(), ir.NewMember(1))
	require.NoError(t, err)

	events := m.Events()
	events[0].Kind = ir.KindRemoveMember
	assert.Equal(t, ir.KindNewMember, m.Events()[0].Kind)
}

type failingSink struct{ err error }

func (f failingSink) Append(context.Context, ir.Event) (ir.Event, error) {
	return ir.Event{}, f.err
}

func TestMulti_FansOutStampedEvent(t *testing.T) {
	primary := NewMemory()
	follower := NewMemory()
	var buf bytes.Buffer

	sink := Multi{
		Primary:   primary,
		Followers: []Sink{Logger{Log: zerolog.New(&buf)}, follower},
	}
	ev, err := sink.Append(t.Context(), ir.RemoveGroup(3))
	require.NoError(t, err)
	assert.Equal(t, int64(1), ev.Seq)
	assert.Len(t, follower.Events(), 1)
	assert.Contains(t, buf.String(), `"event":"RemoveGroup(3)"`)
}

func TestMulti_PrimaryFailure(t *testing.T) {
	boom := errors.New("disk full")
	follower := NewMemory()

	_, err := Multi{Primary: failingSink{boom}, Followers: []Sink{follower}}.Append(t.Context(), ir.NewMember(1))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, follower.Events())
}

func TestMulti_FollowerFailure(t *testing.T) {
	boom := errors.New("unreachable")
	primary := NewMemory()

	ev, err := Multi{Primary: primary, Followers: []Sink{failingSink{boom}}}.Append(t.Context(), ir.NewMember(1))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), ev.Seq)
	assert.Len(t, primary.Events(), 1)
}

func TestDiscard(t *testing.T) {
	ev, err := Discard{}.Append(t.Context(), ir.NewMember(4))
	require.NoError(t, err)
	assert.Equal(t, ir.NewMember(4), ev)
}

func TestCallID_Context(t *testing.T) {
	ctx := t.Context()
	assert.Equal(t, "", CallIDFrom(ctx))

	ctx = WithCallID(ctx, "call-1")
	assert.Equal(t, "call-1", CallIDFrom(ctx))
}

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("call-1", "call-2")
	assert.Equal(t, "call-1", gen.Generate())
	assert.Equal(t, "call-2", gen.Generate())

	assert.PanicsWithValue(t, "FixedGenerator: all ids exhausted", func() {
		gen.Generate()
	})
}
