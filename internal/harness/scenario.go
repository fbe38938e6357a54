package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one scenario file.
type Scenario struct {
	// Name uniquely identifies the scenario. It names the golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Theory is the path of the CUE theory, relative to the scenario file
	// until LoadScenario resolves it.
	Theory string `yaml:"theory"`

	Steps []Step `yaml:"steps"`
}

// Step is one action of a scenario. Exactly one of Reduce, Assume and Solve
// is set.
type Step struct {
	Reduce any  `yaml:"reduce,omitempty"`
	Full   bool `yaml:"full,omitempty"`
	Expect any  `yaml:"expect,omitempty"`

	Assume      [][]any `yaml:"assume,omitempty"`
	Equal       [][]any `yaml:"equal,omitempty"`
	Distinct    [][]any `yaml:"distinct,omitempty"`
	ExpectError string  `yaml:"expect_error,omitempty"`

	Solve             *SolveStep     `yaml:"solve,omitempty"`
	ExpectState       string         `yaml:"expect_state,omitempty"`
	ExpectDefinitions map[string]any `yaml:"expect_definitions,omitempty"`
}

// SolveStep describes a batch of equations sharing one indeterminate set.
type SolveStep struct {
	Indeterminates []string `yaml:"indeterminates"`

	// Depth is the number of bound arguments in scope.
	Depth int `yaml:"depth,omitempty"`

	// Assume lists equalities the equations are solved under.
	Assume [][]any `yaml:"assume,omitempty"`

	Equations [][]any `yaml:"equations"`
}

// Step kinds.
const (
	KindReduce = "reduce"
	KindAssume = "assume"
	KindSolve  = "solve"
)

// Kind returns which action the step performs.
func (s *Step) Kind() string {
	switch {
	case s.Reduce != nil:
		return KindReduce
	case s.Assume != nil:
		return KindAssume
	case s.Solve != nil:
		return KindSolve
	default:
		return ""
	}
}

// Expected-error names for assume steps.
const (
	ExpectCycle    = "cycle"
	ExpectMismatch = "mismatch"
	ExpectPending  = "pending"
)

// Expected states for solve steps.
const (
	StateSolved  = "solved"
	StateFailed  = "failed"
	StateStalled = "stalled"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected, and the theory path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if sc.Theory != "" && !filepath.IsAbs(sc.Theory) {
		sc.Theory = filepath.Join(filepath.Dir(path), sc.Theory)
	}
	if _, err := os.Stat(sc.Theory); err != nil {
		return nil, fmt.Errorf("invalid scenario: theory file: %w", err)
	}
	return sc, nil
}

// ParseScenario decodes and validates scenario YAML without touching the
// file system.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

func validateScenario(sc *Scenario) error {
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if sc.Theory == "" {
		return fmt.Errorf("theory is required")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i := range sc.Steps {
		if err := validateStep(&sc.Steps[i]); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(s *Step) error {
	set := 0
	for _, present := range []bool{s.Reduce != nil, s.Assume != nil, s.Solve != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of reduce, assume and solve is required")
	}

	switch s.Kind() {
	case KindReduce:
		if s.Equal != nil || s.Distinct != nil || s.ExpectError != "" || s.ExpectState != "" || s.ExpectDefinitions != nil {
			return fmt.Errorf("reduce only accepts full and expect")
		}
	case KindAssume:
		if s.Expect != nil || s.Full || s.ExpectState != "" || s.ExpectDefinitions != nil {
			return fmt.Errorf("assume only accepts equal, distinct and expect_error")
		}
		if err := validatePairs("assume", s.Assume); err != nil {
			return err
		}
		if err := validatePairs("equal", s.Equal); err != nil {
			return err
		}
		if err := validatePairs("distinct", s.Distinct); err != nil {
			return err
		}
		switch s.ExpectError {
		case "", ExpectCycle, ExpectMismatch, ExpectPending:
		default:
			return fmt.Errorf("unknown expect_error %q", s.ExpectError)
		}
	case KindSolve:
		if s.Expect != nil || s.Full || s.Equal != nil || s.Distinct != nil || s.ExpectError != "" {
			return fmt.Errorf("solve only accepts expect_state and expect_definitions")
		}
		if s.Solve.Depth < 0 {
			return fmt.Errorf("solve.depth must be non-negative")
		}
		if len(s.Solve.Equations) == 0 {
			return fmt.Errorf("solve.equations must be non-empty")
		}
		if err := validatePairs("solve.assume", s.Solve.Assume); err != nil {
			return err
		}
		if err := validatePairs("solve.equations", s.Solve.Equations); err != nil {
			return err
		}
		switch s.ExpectState {
		case "", StateSolved, StateFailed, StateStalled:
		default:
			return fmt.Errorf("unknown expect_state %q", s.ExpectState)
		}
	}
	return nil
}

func validatePairs(field string, pairs [][]any) error {
	for i, p := range pairs {
		if len(p) != 2 {
			return fmt.Errorf("%s[%d]: expected [lhs, rhs], got %d terms", field, i, len(p))
		}
	}
	return nil
}
