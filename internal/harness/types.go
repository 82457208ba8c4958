package harness

import "github.com/roach88/dmap/internal/registry"

// Outcomes recorded in the trace.
const (
	OutcomeOK = "ok"
)

// TraceEvent records one executed call.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	CallID string `json:"call_id"`
	Phase  string `json:"phase"` // "setup" or "flow"
	Call   string `json:"call"`

	// Outcome is "ok" or the error code of a rejected call.
	Outcome string `json:"outcome"`

	// Event is the emitted event in call notation, empty on rejection.
	Event    string `json:"event,omitempty"`
	EventSeq int64  `json:"event_seq,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every call in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation failure messages.
	Errors []string `json:"errors,omitempty"`

	// State is the registry's final state.
	State registry.State `json:"state"`

	// Entries maps accounts to their stored values at the end of the run.
	Entries map[uint64]uint32 `json:"entries"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Entries: map[uint64]uint32{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Events returns the emitted events, in order, in call notation.
func (r *Result) Events() []string {
	events := []string{}
	for _, te := range r.Trace {
		if te.Event != "" {
			events = append(events, te.Event)
		}
	}
	return events
}
