package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/dmap/internal/entries"
	"github.com/roach88/dmap/internal/ir"
	"github.com/roach88/dmap/internal/registry"
)

// AssertionContext gives assertions access to the final state.
type AssertionContext struct {
	Ctx      context.Context
	Registry *registry.Registry
	Entries  *entries.Entries
}

// AssertionError is returned when an assertion fails.
// It includes the emitted events to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Events   []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nEvents:\n")
	for i, ev := range e.Events {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, ev)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. An empty result means all assertions passed.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Events: result.Events()}
	}

	switch a.Type {
	case AssertEvents:
		got := result.Events()
		want := a.Events
		if want == nil {
			want = []string{}
		}
		if !slices.Equal(got, want) {
			return fail(fmt.Sprintf("%v", want), fmt.Sprintf("%v", got))
		}

	case AssertEventCount:
		n := 0
		for _, ev := range result.Events() {
			if strings.HasPrefix(ev, a.Kind+"(") {
				n++
			}
		}
		if n != *a.Count {
			return fail(fmt.Sprintf("%d %s events", *a.Count, a.Kind), fmt.Sprintf("%d", n))
		}

	case AssertMembers:
		got, err := actx.Registry.Members(actx.Ctx)
		if err != nil {
			return err
		}
		want := make([]ir.AccountID, len(a.Members))
		for i, m := range a.Members {
			want[i] = ir.AccountID(m)
		}
		slices.Sort(want)
		if !slices.Equal(got, want) {
			return fail(fmt.Sprintf("members %v", want), fmt.Sprintf("members %v", got))
		}

	case AssertGroupOf:
		g, ok, err := actx.Registry.GroupOf(actx.Ctx, ir.AccountID(*a.Member))
		if err != nil {
			return err
		}
		if err := checkRow(fail, ok, uint64(g), a.Group, a.Absent, fmt.Sprintf("group of member %d", *a.Member)); err != nil {
			return err
		}

	case AssertScore:
		s, ok, err := actx.Registry.ScoreIn(actx.Ctx, ir.GroupID(*a.Group), ir.AccountID(*a.Member))
		if err != nil {
			return err
		}
		if err := checkRow(fail, ok, uint64(s), a.Score, a.Absent, fmt.Sprintf("score (%d, %d)", *a.Group, *a.Member)); err != nil {
			return err
		}

	case AssertGroupScores:
		rows, err := actx.Registry.GroupScores(actx.Ctx, ir.GroupID(*a.Group))
		if err != nil {
			return err
		}
		if len(rows) != *a.Count {
			return fail(fmt.Sprintf("%d score rows in group %d", *a.Count, *a.Group), fmt.Sprintf("%d", len(rows)))
		}

	case AssertEntry:
		v, ok, err := actx.Entries.Value(actx.Ctx, ir.AccountID(*a.Account))
		if err != nil {
			return err
		}
		if err := checkRow(fail, ok, uint64(v), a.Value, a.Absent, fmt.Sprintf("entry of account %d", *a.Account)); err != nil {
			return err
		}

	case AssertIntegrity:
		violations, err := actx.Registry.CheckIntegrity(actx.Ctx)
		if err != nil {
			return err
		}
		if len(violations) > 0 {
			return fail("no integrity violations", fmt.Sprintf("%v", violations))
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func checkRow(fail func(string, string) error, ok bool, got uint64, want *uint64, absent bool, what string) error {
	switch {
	case absent && ok:
		return fail(what+" absent", fmt.Sprintf("%d", got))
	case absent:
		return nil
	case !ok:
		return fail(fmt.Sprintf("%s = %d", what, *want), "absent")
	case got != *want:
		return fail(fmt.Sprintf("%s = %d", what, *want), fmt.Sprintf("%d", got))
	}
	return nil
}
