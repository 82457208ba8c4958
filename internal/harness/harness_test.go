package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dmap/internal/registry"
)

func u64(v uint64) *uint64 { return &v }
func intp(v int) *int       { return &v }

func TestRun_Concrete(t *testing.T) {
	for _, backend := range []string{BackendMemory, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			scenario := &Scenario{
				Name:        "concrete",
				Description: "join, assign, remove",
				Backend:     backend,
				Flow: []Step{
					{Call: "join", Caller: 1},
					{Call: "assign_to_group", Caller: 1, Args: map[string]uint64{"group": 3, "score": 5}},
					{Call: "remove_member", Caller: 1},
				},
				Assertions: []Assertion{
					{Type: AssertEvents, Events: []string{"NewMember(1)", "MemberJoinsGroup(1, 3, 5)", "RemoveMember(1)"}},
					{Type: AssertIntegrity},
				},
			}

			result, err := Run(t.Context(), scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			require.Len(t, result.Trace, 3)
			assert.Equal(t, "call-1", result.Trace[0].CallID)
			assert.Equal(t, int64(3), result.Trace[2].Seq)
			assert.Empty(t, result.State.Members)
			assert.Empty(t, result.State.Scores)
		})
	}
}

func TestRun_SetupFailureAborts(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_setup",
		Description: "setup joins twice",
		Setup:       []Step{{Call: "join", Caller: 1}, {Call: "join", Caller: 1}},
		Flow:        []Step{{Call: "remove_member", Caller: 1}},
		Assertions:  []Assertion{{Type: AssertIntegrity}},
	}

	_, err := Run(t.Context(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 1 (join)")
	assert.ErrorIs(t, err, registry.ErrAlreadyMember)
}

func TestRun_ExpectMismatchRecorded(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "expectations that do not hold",
		Flow: []Step{
			{Call: "join", Caller: 1, Expect: &Expect{Error: "ALREADY_MEMBER"}},
			{Call: "join", Caller: 1, Expect: &Expect{Event: "NewMember(1)"}},
			{Call: "remove_member", Caller: 2, Expect: &Expect{Error: "NOT_IN_GROUP"}},
			{Call: "join", Caller: 3, Expect: &Expect{Event: "NewMember(4)"}},
		},
		Assertions: []Assertion{{Type: AssertMembers, Members: []uint64{1, 3}}},
	}

	result, err := Run(t.Context(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "expected error ALREADY_MEMBER, got event NewMember(1)")
	assert.Contains(t, result.Errors[1], "unexpected error")
	assert.Contains(t, result.Errors[2], "expected error NOT_IN_GROUP, got NOT_A_MEMBER")
	assert.Contains(t, result.Errors[3], "expected event NewMember(4), got NewMember(3)")

	assert.Equal(t, "ALREADY_MEMBER", result.Trace[1].Outcome)
	assert.Empty(t, result.Trace[1].Event)
}

func TestRun_UnknownBackend(t *testing.T) {
	scenario := &Scenario{
		Name: "x", Description: "x", Backend: "redis",
		Flow:       []Step{{Call: "join", Caller: 1}},
		Assertions: []Assertion{{Type: AssertIntegrity}},
	}
	_, err := Run(t.Context(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown backend "redis"`)
}

func TestRun_CapturesEntries(t *testing.T) {
	scenario := &Scenario{
		Name:        "entries",
		Description: "set two values and take one",
		Flow: []Step{
			{Call: "set_single_entry", Caller: 1, Args: map[string]uint64{"value": 4}},
			{Call: "set_single_entry", Caller: 2, Args: map[string]uint64{"value": 6}},
			{Call: "take_single_entry", Caller: 2},
		},
		Assertions: []Assertion{
			{Type: AssertEntry, Account: u64(1), Value: u64(4)},
			{Type: AssertEntry, Account: u64(2), Absent: true},
			{Type: AssertEventCount, Kind: "EntryTaken", Count: intp(1)},
		},
	}

	result, err := Run(t.Context(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, map[uint64]uint32{1: 4}, result.Entries)
}
