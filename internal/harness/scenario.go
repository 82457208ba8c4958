package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dmap/internal/engine"
)

// Scenario defines one executable test case.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Backend selects the kv store: "memory" (default) or "sqlite".
	Backend string `yaml:"backend,omitempty"`

	// Setup calls establish initial state and must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the main sequence of calls.
	Flow []Step `yaml:"flow"`

	// Assertions validate the trace and the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one call.
type Step struct {
	// Call is the operation name, e.g. "assign_to_group".
	Call string `yaml:"call"`

	// Caller is the authenticated caller id.
	Caller uint64 `yaml:"caller"`

	// Args holds the operation's arguments: group, score, account, value.
	Args map[string]uint64 `yaml:"args,omitempty"`

	// Expect optionally checks the outcome.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the expected outcome of a step.
type Expect struct {
	// Error is the expected error code. Empty means the call must succeed.
	Error string `yaml:"error,omitempty"`

	// Event is the expected event in call notation.
	Event string `yaml:"event,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Events is the expected event list (events).
	Events []string `yaml:"events,omitempty"`

	// Kind and Count are used by event_count; Count also by group_scores.
	Kind  string `yaml:"kind,omitempty"`
	Count *int   `yaml:"count,omitempty"`

	// Members is the expected member list (members).
	Members []uint64 `yaml:"members,omitempty"`

	// Member, Group, Score, Account and Value select and check a row.
	Member  *uint64 `yaml:"member,omitempty"`
	Group   *uint64 `yaml:"group,omitempty"`
	Score   *uint64 `yaml:"score,omitempty"`
	Account *uint64 `yaml:"account,omitempty"`
	Value   *uint64 `yaml:"value,omitempty"`

	// Absent asserts the row does not exist.
	Absent bool `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertEvents      = "events"
	AssertEventCount  = "event_count"
	AssertMembers     = "members"
	AssertGroupOf     = "group_of"
	AssertScore       = "score"
	AssertGroupScores = "group_scores"
	AssertEntry       = "entry"
	AssertIntegrity   = "integrity"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Argument names accepted per operation.
var opArgs = map[engine.Op][]string{
	engine.OpJoin:              nil,
	engine.OpAssignToGroup:     {"group", "score"},
	engine.OpRemoveMember:      nil,
	engine.OpRemoveGroupScores: {"group"},
	engine.OpEntrySet:          {"value"},
	engine.OpEntryGet:          {"account"},
	engine.OpEntryTake:         nil,
	engine.OpEntryIncrease:     {"value"},
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	switch s.Backend {
	case "", BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendMemory, BackendSQLite, s.Backend)
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		if step.Expect != nil && step.Expect.Error != "" && step.Expect.Event != "" {
			return fmt.Errorf("flow[%d].expect: error and event are mutually exclusive", i)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.Call == "" {
		return fmt.Errorf("call is required")
	}
	allowed, ok := opArgs[engine.Op(step.Call)]
	if !ok {
		return fmt.Errorf("unknown call %q", step.Call)
	}
	for name := range step.Args {
		if !slices.Contains(allowed, name) {
			return fmt.Errorf("call %q does not take argument %q", step.Call, name)
		}
	}
	for _, name := range allowed {
		if _, ok := step.Args[name]; !ok {
			return fmt.Errorf("call %q requires argument %q", step.Call, name)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertEvents, AssertMembers, AssertIntegrity:
		return nil
	case AssertEventCount:
		if a.Kind == "" || a.Count == nil {
			return fmt.Errorf("event_count requires kind and count")
		}
	case AssertGroupOf:
		if a.Member == nil || (a.Group == nil) == !a.Absent {
			return fmt.Errorf("group_of requires member and exactly one of group or absent")
		}
	case AssertScore:
		if a.Member == nil || a.Group == nil || (a.Score == nil) == !a.Absent {
			return fmt.Errorf("score requires member, group and exactly one of score or absent")
		}
	case AssertGroupScores:
		if a.Group == nil || a.Count == nil {
			return fmt.Errorf("group_scores requires group and count")
		}
	case AssertEntry:
		if a.Account == nil || (a.Value == nil) == !a.Absent {
			return fmt.Errorf("entry requires account and exactly one of value or absent")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
