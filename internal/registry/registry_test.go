package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dmap/internal/eventlog"
	"github.com/roach88/dmap/internal/ir"
	"github.com/roach88/dmap/internal/kv"
	"github.com/roach88/dmap/internal/store"
)

type backend struct {
	name string
	open func(t *testing.T) kv.Store
}

var backends = []backend{
	{"memory", func(t *testing.T) kv.Store { return kv.NewMemory() }},
	{"sqlite", func(t *testing.T) kv.Store {
		s, err := store.Open(filepath.Join(t.TempDir(), "registry.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}},
}

// forEachBackend runs fn once per kv backend with a fresh registry.
func forEachBackend(t *testing.T, fn func(t *testing.T, r *Registry, events *eventlog.Memory)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			events := eventlog.NewMemory()
			fn(t, New(b.open(t), events), events)
		})
	}
}

func assertIntact(t *testing.T, r *Registry) {
	t.Helper()
	violations, err := r.CheckIntegrity(t.Context())
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestConcreteScenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *Registry, events *eventlog.Memory) {
		ctx := t.Context()

		_, err := r.Join(ctx, 1)
		require.NoError(t, err)
		members, err := r.Members(ctx)
		require.NoError(t, err)
		assert.Equal(t, []ir.AccountID{1}, members)

		_, err = r.AssignToGroup(ctx, 1, 3, 5)
		require.NoError(t, err)
		g, ok, err := r.GroupOf(ctx, 1)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, ir.GroupID(3), g)
		s, ok, err := r.ScoreIn(ctx, 3, 1)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, ir.Score(5), s)

		_, err = r.RemoveMember(ctx, 1)
		require.NoError(t, err)

		st, err := r.Snapshot(ctx)
		require.NoError(t, err)
		assert.Empty(t, st.Members)
		assert.Empty(t, st.Groups)
		assert.Empty(t, st.Scores)

		assert.Equal(t, []ir.Event{
			ir.NewMember(1),
			ir.MemberJoinsGroup(1, 3, 5),
			ir.RemoveMember(1),
		}, events.Payloads())
	})
}

func TestJoin_Twice(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *Registry, events *eventlog.Memory) {
		ctx := t.Context()

		_, err := r.Join(ctx, 7)
		require.NoError(t, err)

		_, err = r.Join(ctx, 7)
		require.ErrorIs(t, err, ErrAlreadyMember)
		assert.EqualError(t, err, "join (caller=7): already a member, can't join")

		members, err := r.Members(ctx)
		require.NoError(t, err)
		assert.Equal(t, []ir.AccountID{7}, members)
		assert.Len(t, events.Events(), 1)
	})
}

func TestAssignToGroup_NotAMember(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *Registry, events *eventlog.Memory) {
		ctx := t.Context()

		_, err := r.AssignToGroup(ctx, 9, 3, 5)
		require.ErrorIs(t, err, ErrNotAMember)

		var ce *ir.CallError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, OpAssignToGroup, ce.Op)
		assert.Equal(t, ir.AccountID(9), ce.Caller)

		st, err := r.Snapshot(ctx)
		require.NoError(t, err)
		assert.Empty(t, st.Groups)
		assert.Empty(t, st.Scores)
		assert.Empty(t, events.Events())
	})
}

func TestAssignToGroup_ReassignMovesScore(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *Registry, _ *eventlog.Memory) {
		ctx := t.Context()

		_, err := r.Join(ctx, 1)
		require.NoError(t, err)
		_, err = r.AssignToGroup(ctx, 1, 3, 5)
		require.NoError(t, err)
		_, err = r.AssignToGroup(ctx, 1, 4, 8)
		require.NoError(t, err)

		_, ok, err := r.ScoreIn(ctx, 3, 1)
		require.NoError(t, err)
		assert.False(t, ok, "old group score must be gone")

		s, ok, err := r.ScoreOf(ctx, 1)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, ir.Score(8), s)

		// Same group again overwrites the score.
		_, err = r.AssignToGroup(ctx, 1, 4, 2)
		require.NoError(t, err)
		rows, err := r.GroupScores(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, []ir.ScoreEntry{{Group: 4, Member: 1, Score: 2}}, rows)

		assertIntact(t, r)
	})
}

func TestRemoveMember_NotAMember(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *Registry, events *eventlog.Memory) {
		_, err := r.RemoveMember(t.Context(), 1)
		require.ErrorIs(t, err, ErrNotAMember)
		assert.Contains(t, err.Error(), "not a member, can't remove")
		assert.Empty(t, events.Events())
	})
}

func TestRemoveMember_WithoutGroup(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *Registry, events *eventlog.Memory) {
		ctx := t.Context()

		_, err := r.Join(ctx, 2)
		require.NoError(t, err)
		_, err = r.RemoveMember(ctx, 2)
		require.NoError(t, err)

		ok, err := r.IsMember(ctx, 2)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, ir.RemoveMember(2), events.Payloads()[1])
	})
}

func TestRemoveMember_LeavesOthers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *Registry, _ *eventlog.Memory) {
		ctx := t.Context()

		for _, m := range []ir.AccountID{1, 2} {
			_, err := r.Join(ctx, m)
			require.NoError(t, err)
			_, err = r.AssignToGroup(ctx, m, 3, ir.Score(m*10))
			require.NoError(t, err)
		}
		_, err := r.RemoveMember(ctx, 1)
		require.NoError(t, err)

		_, ok, err := r.GroupOf(ctx, 1)
		require.NoError(t, err)
		assert.False(t, ok)

		rows, err := r.GroupScores(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, []ir.ScoreEntry{{Group: 3, Member: 2, Score: 20}}, rows)
		assertIntact(t, r)
	})
}

func TestRemoveGroupScores_BulkAndScoped(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *Registry, events *eventlog.Memory) {
		ctx := t.Context()

		assign := map[ir.AccountID]ir.GroupID{1: 3, 2: 3, 3: 3, 4: 4, 5: 2}
		for _, m := range []ir.AccountID{1, 2, 3, 4, 5} {
			_, err := r.Join(ctx, m)
			require.NoError(t, err)
			_, err = r.AssignToGroup(ctx, m, assign[m], 1)
			require.NoError(t, err)
		}

		ev, err := r.RemoveGroupScores(ctx, 2, 3)
		require.NoError(t, err)
		assert.Equal(t, ir.RemoveGroup(3), ev.Payload())
		assert.Equal(t, ir.RemoveGroup(3), events.Payloads()[len(events.Payloads())-1])

		rows, err := r.GroupScores(ctx, 3)
		require.NoError(t, err)
		assert.Empty(t, rows)

		for g, want := range map[ir.GroupID]int{2: 1, 4: 1} {
			rows, err := r.GroupScores(ctx, g)
			require.NoError(t, err)
			assert.Len(t, rows, want, "group %d", g)
		}

		// Links survive the clear.
		g, ok, err := r.GroupOf(ctx, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, ir.GroupID(3), g)
		_, ok, err = r.ScoreOf(ctx, 1)
		require.NoError(t, err)
		assert.False(t, ok)

		assertIntact(t, r)
	})
}

func TestRemoveGroupScores_NotInGroup(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *Registry, events *eventlog.Memory) {
		ctx := t.Context()

		// Not a member at all.
		_, err := r.RemoveGroupScores(ctx, 1, 3)
		require.ErrorIs(t, err, ErrNotInGroup)

		// Member without a group.
		_, err = r.Join(ctx, 1)
		require.NoError(t, err)
		_, err = r.RemoveGroupScores(ctx, 1, 3)
		require.ErrorIs(t, err, ErrNotInGroup)

		// Member of another group.
		_, err = r.Join(ctx, 2)
		require.NoError(t, err)
		_, err = r.AssignToGroup(ctx, 2, 3, 9)
		require.NoError(t, err)
		_, err = r.AssignToGroup(ctx, 1, 4, 1)
		require.NoError(t, err)

		before := len(events.Events())
		_, err = r.RemoveGroupScores(ctx, 1, 3)
		require.ErrorIs(t, err, ErrNotInGroup)
		assert.EqualError(t, err, "remove_group_scores (caller=1): member isn't in the group, can't remove it")
		assert.Len(t, events.Events(), before)

		s, ok, err := r.ScoreIn(ctx, 3, 2)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, ir.Score(9), s)
	})
}

func TestRemoveGroupScores_EmptyGroup(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r *Registry, events *eventlog.Memory) {
		ctx := t.Context()

		_, err := r.Join(ctx, 1)
		require.NoError(t, err)
		_, err = r.AssignToGroup(ctx, 1, 3, 5)
		require.NoError(t, err)
		_, err = r.RemoveGroupScores(ctx, 1, 3)
		require.NoError(t, err)

		// The link is kept, so clearing again succeeds and removes nothing.
		_, err = r.RemoveGroupScores(ctx, 1, 3)
		require.NoError(t, err)
		assert.Len(t, events.Events(), 4)
	})
}

func TestEvents_CarryCallID(t *testing.T) {
	events := eventlog.NewMemory()
	r := New(kv.NewMemory(), events)
	ctx := eventlog.WithCallID(t.Context(), "call-7")

	ev, err := r.Join(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "call-7", ev.CallID)
	assert.Equal(t, int64(1), ev.Seq)
	assert.NotEmpty(t, ev.ID)
}

func TestNew_NilSinkDiscards(t *testing.T) {
	r := New(kv.NewMemory(), nil)
	ev, err := r.Join(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, ir.NewMember(1), ev.Payload())
}

func TestQueries_Empty(t *testing.T) {
	r := New(kv.NewMemory(), nil)
	ctx := t.Context()

	members, err := r.Members(ctx)
	require.NoError(t, err)
	assert.NotNil(t, members)
	assert.Empty(t, members)

	_, ok, err := r.ScoreOf(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	rows, err := r.GroupScores(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestClosedStore(t *testing.T) {
	s := kv.NewMemory()
	r := New(s, nil)
	require.NoError(t, s.Close())

	_, err := r.Join(t.Context(), 1)
	require.ErrorIs(t, err, kv.ErrClosed)
	assert.False(t, ir.IsCallError(err))
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreSink_EventInStateTransaction(t *testing.T) {
	s := openStore(t)
	r := New(s, s)
	ctx := t.Context()

	ev, err := r.Join(eventlog.WithSeq(ctx, 4), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), ev.Seq)

	// An event the log refuses takes its state change with it.
	_, err = r.Join(eventlog.WithSeq(ctx, 4), 2)
	require.ErrorIs(t, err, eventlog.ErrSeqOrder)
	assert.False(t, ir.IsCallError(err))

	ok, err := r.IsMember(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	events, err := s.ReadEvents(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ir.NewMember(1), events[0].Payload())
}

func TestStoreSink_FollowerFailureKeepsCall(t *testing.T) {
	s := openStore(t)
	sink := eventlog.Multi{Primary: s, Followers: []eventlog.Sink{failingSink{}}}
	r := New(s, sink)
	ctx := t.Context()

	_, err := r.Join(ctx, 1)
	require.NoError(t, err)
	_, err = r.AssignToGroup(ctx, 1, 3, 5)
	require.NoError(t, err)

	events, err := s.ReadEvents(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assertIntact(t, r)
}

type failingSink struct{}

func (failingSink) Append(context.Context, ir.Event) (ir.Event, error) {
	return ir.Event{}, errors.New("follower down")
}
