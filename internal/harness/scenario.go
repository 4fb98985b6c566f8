package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one yaml conformance case.
type Scenario struct {
	// Name uniquely identifies the scenario; it doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Actor and Role identify the default caller for every step. A
	// step may override both.
	Actor string `yaml:"actor,omitempty"`
	Role  string `yaml:"role,omitempty"`

	// Steps are dispatched to the engine in order, one at a time.
	Steps []Step `yaml:"steps"`

	// Final asserts on the state left behind after every step settled.
	Final Final `yaml:"final"`
}

// Step is one mutation dispatch.
type Step struct {
	// Op is one of add, move, discard, status, assign, renormalize.
	Op string `yaml:"op"`

	// ID names the subject. For add it fixes the new record's id so
	// later steps and assertions can reference it.
	ID string `yaml:"id,omitempty"`

	Title  string `yaml:"title,omitempty"`
	Scope  string `yaml:"scope,omitempty"`
	Parent string `yaml:"parent,omitempty"`

	Status   string `yaml:"status,omitempty"`
	Assignee string `yaml:"assignee,omitempty"`

	// After and Before name the move neighbors: the subject lands
	// after After and before Before. Empty means the respective list
	// end.
	After  string `yaml:"after,omitempty"`
	Before string `yaml:"before,omitempty"`

	// Actor and Role override the scenario's default caller. Setting
	// actor to "none" dispatches unauthenticated.
	Actor string `yaml:"actor,omitempty"`
	Role  string `yaml:"role,omitempty"`

	// ExpectError, when set, requires the step to fail with this code:
	// permission_denied, attribution_missing, not_found, batch_failed.
	// An empty value requires confirmation.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Final collects the end-state assertions.
type Final struct {
	// Lists assert sibling order per (scope, parent).
	Lists []ListExpectation `yaml:"lists,omitempty"`

	// Tasks assert individual field values.
	Tasks []TaskExpectation `yaml:"tasks,omitempty"`
}

// ListExpectation pins the exact id order of one sibling list.
type ListExpectation struct {
	Scope  string   `yaml:"scope"`
	Parent string   `yaml:"parent,omitempty"`
	Order  []string `yaml:"order"`

	// Dense additionally requires finalized positions 1..N.
	Dense bool `yaml:"dense,omitempty"`
}

// TaskExpectation is a subset match on one record.
type TaskExpectation struct {
	ID       string `yaml:"id"`
	Status   string `yaml:"status,omitempty"`
	Assignee string `yaml:"assignee,omitempty"`
	Parent   string `yaml:"parent,omitempty"`

	Discarded bool `yaml:"discarded,omitempty"`
}

var stepOps = map[string]bool{
	"add":         true,
	"move":        true,
	"discard":     true,
	"status":      true,
	"assign":      true,
	"renormalize": true,
}

// LoadScenario reads and validates a scenario yaml file. Unknown keys
// are rejected so a typo fails the scenario, not the assertion it was
// supposed to make.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(&step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	if len(s.Final.Lists) == 0 && len(s.Final.Tasks) == 0 {
		return fmt.Errorf("final must assert at least one list or task")
	}
	for i, l := range s.Final.Lists {
		if l.Scope == "" {
			return fmt.Errorf("final.lists[%d]: scope is required", i)
		}
	}
	for i, ta := range s.Final.Tasks {
		if ta.ID == "" {
			return fmt.Errorf("final.tasks[%d]: id is required", i)
		}
	}
	return nil
}

func validateStep(step *Step) error {
	if !stepOps[step.Op] {
		return fmt.Errorf("unknown op %q", step.Op)
	}

	switch step.Op {
	case "add":
		if step.Title == "" {
			return fmt.Errorf("add: title is required")
		}
		if step.Scope == "" {
			return fmt.Errorf("add: scope is required")
		}
	case "renormalize":
		if step.Scope == "" {
			return fmt.Errorf("renormalize: scope is required")
		}
	case "status":
		if step.ID == "" || step.Status == "" {
			return fmt.Errorf("status: id and status are required")
		}
	default:
		if step.ID == "" {
			return fmt.Errorf("%s: id is required", step.Op)
		}
	}
	return nil
}
