package harness

import (
	"maps"
	"slices"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/dmap/internal/ir"
)

// TraceSnapshot is the golden-file form of a scenario run.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	Result       *Result
}

// toCanonicalMap converts the snapshot to a map for ir.MarshalCanonical,
// which only handles primitives, maps and slices.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, te := range s.Trace {
		m := map[string]any{
			"seq":     te.Seq,
			"call_id": te.CallID,
			"phase":   te.Phase,
			"call":    te.Call,
			"outcome": te.Outcome,
		}
		if te.Event != "" {
			m["event"] = te.Event
			m["event_seq"] = te.EventSeq
		}
		trace[i] = m
	}

	members := make([]any, len(s.Result.State.Members))
	for i, m := range s.Result.State.Members {
		members[i] = uint64(m)
	}
	scores := make([]any, len(s.Result.State.Scores))
	for i, row := range s.Result.State.Scores {
		scores[i] = map[string]any{
			"group":  uint32(row.Group),
			"member": uint64(row.Member),
			"score":  uint32(row.Score),
		}
	}
	groups := make([]any, 0, len(s.Result.State.Groups))
	for _, m := range s.Result.State.Members {
		if g, ok := s.Result.State.Groups[m]; ok {
			groups = append(groups, map[string]any{"member": uint64(m), "group": uint32(g)})
		}
	}

	accounts := slices.Sorted(maps.Keys(s.Result.Entries))
	entries := make([]any, len(accounts))
	for i, a := range accounts {
		entries[i] = map[string]any{"account": a, "value": s.Result.Entries[a]}
	}

	return map[string]any{
		"entries":       entries,
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"state": map[string]any{
			"members": members,
			"groups":  groups,
			"scores":  scores,
		},
	}
}

// MarshalTrace renders a result as canonical JSON.
func MarshalTrace(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: name, Trace: result.Trace, Result: result}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace and final state
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
	return nil
}
