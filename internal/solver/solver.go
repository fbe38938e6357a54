package solver

import (
	"log/slog"

	"github.com/roach88/termkernel/internal/term"
)

type equationInfo struct {
	eq     Equation
	status Status
	parent int
	reason string
}

// Solver works through one submitted equation and everything derived from
// it. Equation 0 is the submitted one.
type Solver struct {
	store     *term.Store
	iface     Interface
	equations []equationInfo
}

// New creates a solver for eq, taking ownership of both sides.
func New(iface Interface, eq Equation) *Solver {
	return &Solver{
		store:     eq.Stack.Store(),
		iface:     iface,
		equations: []equationInfo{{eq: eq, parent: -1}},
	}
}

// TryToMakeProgress examines pending equations, resuming after the last one
// that progressed and wrapping around, until a full pass changes nothing.
// It reports whether any equation was handled or failed.
func (s *Solver) TryToMakeProgress() bool {
	progress := false
	start := 0
	for {
		advanced := false
		n := len(s.equations)
		for off := 0; off < n; off++ {
			i := (start + off) % n
			if s.equations[i].status != StatusPending {
				continue
			}
			if s.examine(i) {
				progress = true
				advanced = true
				start = i + 1
				break
			}
		}
		if !advanced {
			return progress
		}
	}
}

// examine reduces both sides of equation i and applies the first strategy
// that reaches a verdict.
func (s *Solver) examine(i int) bool {
	st := s.store
	eq := &s.equations[i].eq
	lhs, rhs := eq.Stack.Reduce(eq.LHS), eq.Stack.Reduce(eq.RHS)
	st.DropAll(eq.LHS, eq.RHS)
	eq.LHS, eq.RHS = lhs, rhs

	for _, strategy := range strategies {
		v := strategy.try(s, i)
		if v.outcome == outcomeNothing {
			continue
		}
		// strategies may append equations and move the slice
		info := &s.equations[i]
		if v.outcome == outcomeHandled {
			info.status = StatusHandled
		} else {
			info.status = StatusFailed
			info.reason = v.reason
		}
		slog.Debug("solver strategy applied",
			"strategy", strategy.name,
			"equation", i,
			"status", info.status,
		)
		return true
	}
	return false
}

// push appends an equation derived from parent.
func (s *Solver) push(eq Equation, parent int) {
	s.equations = append(s.equations, equationInfo{eq: eq, parent: parent})
}

// State reports whether the solver is solved, failed or stalled.
func (s *Solver) State() State {
	state := StateSolved
	for _, info := range s.equations {
		switch info.status {
		case StatusFailed:
			return StateFailed
		case StatusPending:
			state = StateStalled
		}
	}
	return state
}

// Solved reports whether every equation was handled.
func (s *Solver) Solved() bool {
	return s.State() == StateSolved
}

// Failed reports whether any equation failed.
func (s *Solver) Failed() bool {
	return s.State() == StateFailed
}

// Len returns the number of equations, including derived ones.
func (s *Solver) Len() int {
	return len(s.equations)
}

// Close releases both sides of every equation.
func (s *Solver) Close() {
	for i := range s.equations {
		s.store.DropAll(s.equations[i].eq.LHS, s.equations[i].eq.RHS)
	}
	s.equations = nil
}

// EquationReport describes one equation for diagnostics.
type EquationReport struct {
	Index  int    `json:"index"`
	Parent int    `json:"parent"`
	Status string `json:"status"`
	Depth  uint64 `json:"depth"`
	LHS    string `json:"lhs"`
	RHS    string `json:"rhs"`
	Reason string `json:"reason,omitempty"`

	// Path lists the indices from this equation up to the submitted one.
	Path []int `json:"path"`
}

// ErrorInfo is the diagnostic for an unsolved equation: the submitted
// equation plus every failed or stalled equation derived from it.
type ErrorInfo struct {
	Primary       EquationReport   `json:"primary"`
	PrimaryFailed bool             `json:"primary_failed"`
	Failures      []EquationReport `json:"failures"`
	Stalls        []EquationReport `json:"stalls"`
}

// ErrorInfo renders the solver's unresolved equations with names.
func (s *Solver) ErrorInfo(names term.Namer) ErrorInfo {
	info := ErrorInfo{
		Primary:       s.report(0, names),
		PrimaryFailed: s.equations[0].status == StatusFailed,
		Failures:      []EquationReport{},
		Stalls:        []EquationReport{},
	}
	for i := 1; i < len(s.equations); i++ {
		switch s.equations[i].status {
		case StatusFailed:
			info.Failures = append(info.Failures, s.report(i, names))
		case StatusPending:
			info.Stalls = append(info.Stalls, s.report(i, names))
		}
	}
	return info
}

func (s *Solver) report(i int, names term.Namer) EquationReport {
	info := s.equations[i]
	r := EquationReport{
		Index:  i,
		Parent: info.parent,
		Status: info.status.String(),
		Depth:  info.eq.Stack.Depth(),
		LHS:    s.store.Format(info.eq.LHS, names),
		RHS:    s.store.Format(info.eq.RHS, names),
		Reason: info.reason,
	}
	for j := i; j >= 0; j = s.equations[j].parent {
		r.Path = append(r.Path, j)
	}
	return r
}
