package harness

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/roach88/dmap/internal/engine"
	"github.com/roach88/dmap/internal/entries"
	"github.com/roach88/dmap/internal/eventlog"
	"github.com/roach88/dmap/internal/ir"
	"github.com/roach88/dmap/internal/kv"
	"github.com/roach88/dmap/internal/registry"
	"github.com/roach88/dmap/internal/store"
	"github.com/roach88/dmap/internal/testutil"
)

// Harness executes one scenario against an isolated store.
type Harness struct {
	kv       kv.Store
	registry *registry.Registry
	entries  *entries.Entries
	engine   *engine.Engine
	events   *eventlog.Memory
	log      zerolog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh store with a new clock and sequential
// call ids, so repeated runs produce identical traces.
//
// Execution flow:
//  1. Open a fresh store for the scenario's backend
//  2. Execute setup steps; any failure aborts the run
//  3. Execute flow steps, checking expect clauses
//  4. Capture final state and evaluate assertions
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario.Backend)
	if err != nil {
		return nil, err
	}
	defer h.kv.Close()

	result := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	h.executeFlow(ctx, scenario.Flow, result)

	if err := h.captureState(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to capture state: %w", err)
	}

	actx := &AssertionContext{Ctx: ctx, Registry: h.registry, Entries: h.entries}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(backend string) (*Harness, error) {
	var s kv.Store
	switch backend {
	case "", BackendMemory:
		s = kv.NewMemory()
	case BackendSQLite:
		st, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		s = st
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}

	ids := testutil.NewSequentialCallIDs("call")
	events := eventlog.NewMemory()
	log := zerolog.Nop()

	reg := registry.New(s, events, registry.WithLogger(log))
	ent := entries.New(s, events, log)
	return &Harness{
		kv:       s,
		registry: reg,
		entries:  ent,
		engine:   engine.New(reg, ent, engine.WithClock(engine.NewClock()), engine.WithCallIDs(ids), engine.WithLogger(log)),
		events:   events,
		log:      log,
	}, nil
}

// call builds the engine call for a step.
func (s Step) call() engine.Call {
	return engine.Call{
		Op:      engine.Op(s.Call),
		Caller:  ir.AccountID(s.Caller),
		Group:   ir.GroupID(s.Args["group"]),
		Score:   ir.Score(s.Args["score"]),
		Account: ir.AccountID(s.Args["account"]),
		Value:   uint32(s.Args["value"]),
	}
}

func (h *Harness) exec(ctx context.Context, phase string, step Step, result *Result) (TraceEvent, error) {
	res, err := h.engine.Exec(ctx, step.call())
	te := TraceEvent{
		Seq:     res.Call.Seq,
		CallID:  res.Call.CallID,
		Phase:   phase,
		Call:    res.Call.String(),
		Outcome: OutcomeOK,
	}
	if err != nil {
		te.Outcome = engine.ErrorCode(err)
	} else {
		te.Event = res.Event.String()
		te.EventSeq = res.Event.Seq
	}
	result.Trace = append(result.Trace, te)
	return te, err
}

func (h *Harness) executeSetup(ctx context.Context, setup []Step, result *Result) error {
	for i, step := range setup {
		if _, err := h.exec(ctx, "setup", step, result); err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Call, err)
		}
	}
	return nil
}

// executeFlow runs every flow step. Outcome mismatches are recorded in the
// result; infrastructure errors are recorded too so the trace stays complete.
func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) {
	for i, step := range flow {
		te, err := h.exec(ctx, "flow", step, result)

		want := Expect{}
		if step.Expect != nil {
			want = *step.Expect
		}
		switch {
		case want.Error == "" && err != nil:
			result.AddError(fmt.Sprintf("flow[%d] %s: unexpected error: %v", i, te.Call, err))
		case want.Error != "" && err == nil:
			result.AddError(fmt.Sprintf("flow[%d] %s: expected error %s, got event %s", i, te.Call, want.Error, te.Event))
		case want.Error != "" && te.Outcome != want.Error:
			result.AddError(fmt.Sprintf("flow[%d] %s: expected error %s, got %s (%v)", i, te.Call, want.Error, te.Outcome, err))
		case want.Event != "" && te.Event != want.Event:
			result.AddError(fmt.Sprintf("flow[%d] %s: expected event %s, got %s", i, te.Call, want.Event, te.Event))
		}
	}
}

func (h *Harness) captureState(ctx context.Context, result *Result) error {
	st, err := h.registry.Snapshot(ctx)
	if err != nil {
		return err
	}
	result.State = st
	return h.captureEntries(ctx, result)
}

func (h *Harness) captureEntries(ctx context.Context, result *Result) error {
	accounts := map[ir.AccountID]bool{}
	for _, ev := range h.events.Events() {
		if a, ok := ev.Args[ir.ArgAccount]; ok {
			accounts[ir.AccountID(a)] = true
		}
	}
	for a := range accounts {
		v, ok, err := h.entries.Value(ctx, a)
		if err != nil {
			return err
		}
		if ok {
			result.Entries[uint64(a)] = v
		}
	}
	return nil
}
