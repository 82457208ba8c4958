package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/dmap/internal/eventlog"
	"github.com/roach88/dmap/internal/ir"
	"github.com/roach88/dmap/internal/kv"
	"github.com/roach88/dmap/internal/registry"
)

// ReplayResult holds the outcome of replaying the event log.
type ReplayResult struct {
	Events        int    `json:"events"`          // events read from the log
	Applied       int    `json:"applied"`         // registry calls re-executed
	Deterministic bool   `json:"deterministic"`   // replay re-emitted the same events
	MatchesLive   bool   `json:"matches_live"`    // replayed state equals the stored state
	Members       int    `json:"members"`         // members in the replayed state
	ScoreRows     int    `json:"score_rows"`      // score rows in the replayed state
	Error         string `json:"error,omitempty"` // first replay failure
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Rebuild state from the event log and compare",
		Long: `Replay the event log into a fresh in-memory registry and verify it.

Every registry event is re-executed as the call that produced it. The
replay must succeed, re-emit the same events, and end in the same state as
the configured store.

Exit codes:
  0 - Replay reproduces the stored state
  1 - Replay failed or diverged
  2 - Command error (database not found, etc.)

Examples:
  dmap replay
  dmap replay --config ./dmap.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts)
		},
	}
}

func runReplay(cmd *cobra.Command, opts *RootOptions) error {
	ctx := cmd.Context()

	a, err := openApp(cmd.Context(), opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	events, err := a.events.ReadEvents(ctx, 0, 0)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}
	live, err := a.registry.Snapshot(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read state", err)
	}

	result := replayEvents(ctx, events, live)
	out := formatter(cmd, opts)

	if opts.Format == "json" {
		if result.ok() {
			return out.Success(result, "")
		}
		if err := out.Error("E_REPLAY", "replay verification failed", result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "replay verification failed")
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Replay Summary: %d event(s), %d call(s) applied\n", result.Events, result.Applied)
	if opts.Verbose {
		fmt.Fprintf(w, "  Members: %d\n", result.Members)
		fmt.Fprintf(w, "  Score rows: %d\n", result.ScoreRows)
	}
	if result.Error != "" {
		fmt.Fprintf(w, "✗ Replay failed: %s\n", result.Error)
		return NewExitError(ExitFailure, "replay failed")
	}
	if !result.Deterministic {
		fmt.Fprintln(w, "✗ Replay emitted different events")
	}
	if !result.MatchesLive {
		fmt.Fprintln(w, "✗ Replayed state differs from stored state")
	}
	if !result.ok() {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	fmt.Fprintln(w, "✓ Replay reproduces stored state")
	return nil
}

func (r ReplayResult) ok() bool {
	return r.Error == "" && r.Deterministic && r.MatchesLive
}

// replayEvents applies events to a fresh in-memory registry and compares
// the re-emitted events and final state.
func replayEvents(ctx context.Context, events []ir.Event, live registry.State) ReplayResult {
	result := ReplayResult{Events: len(events)}

	sink := eventlog.NewMemory()
	reg := registry.New(kv.NewMemory(), sink)

	applied, err := reg.Replay(ctx, events)
	result.Applied = applied
	if err != nil {
		result.Error = err.Error()
		return result
	}

	var want []ir.Event
	for _, ev := range events {
		switch ev.Kind {
		case ir.KindNewMember, ir.KindMemberJoinsGroup, ir.KindRemoveMember, ir.KindRemoveGroup:
			want = append(want, ev)
		}
	}
	got := sink.Events()
	result.Deterministic = slices.EqualFunc(want, got, func(a, b ir.Event) bool {
		return a.SamePayload(b)
	})

	replayed, err := reg.Snapshot(ctx)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Members = len(replayed.Members)
	result.ScoreRows = len(replayed.Scores)
	result.MatchesLive = statesEqual(live, replayed)
	return result
}

func statesEqual(a, b registry.State) bool {
	return slices.Equal(a.Members, b.Members) &&
		maps.Equal(a.Groups, b.Groups) &&
		slices.Equal(a.Scores, b.Scores)
}
