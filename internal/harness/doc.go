// Package harness runs YAML scenarios against a fresh registry.
//
// Each scenario executes its calls through the engine on an isolated store,
// records a trace of every call and the event it produced, then evaluates
// assertions against the trace and the final state. Call ids and seqs are
// deterministic, so traces can be compared against golden files.
//
// # Scenario Format
//
//	name: concrete_scenario
//	description: "Join, assign, remove"
//	backend: memory            # or sqlite; default memory
//	setup:
//	  - call: join
//	    caller: 2
//	flow:
//	  - call: assign_to_group
//	    caller: 1
//	    args: { group: 3, score: 5 }
//	    expect:
//	      event: "MemberJoinsGroup(1, 3, 5)"
//	  - call: join
//	    caller: 1
//	    expect:
//	      error: ALREADY_MEMBER
//	assertions:
//	  - type: events
//	    events: ["NewMember(1)", "MemberJoinsGroup(1, 3, 5)"]
//	  - type: group_of
//	    member: 1
//	    group: 3
//
// Setup calls must succeed; a failing setup call aborts the scenario.
// A flow step without expect must succeed; with expect.error it must fail
// with that error code and emit nothing.
//
// # Assertion Types
//
//   - events: the exact list of events emitted by flow and setup, in order
//   - event_count: number of events of a kind
//   - members: the exact member set
//   - group_of: a member's group, or absent: true
//   - score: the score row (group, member), or absent: true
//   - group_scores: number of score rows in a group
//   - entry: an account's stored value, or absent: true
//   - integrity: the cross-store integrity check finds nothing
package harness
