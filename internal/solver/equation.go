package solver

import (
	"github.com/roach88/termkernel/internal/term"
)

// Equation asserts LHS and RHS equal under Stack. A Solver owns both sides.
type Equation struct {
	LHS   term.Expr
	RHS   term.Expr
	Stack Stack
}

// Status is the lifecycle of one equation: pending, then handled or failed.
type Status int

const (
	StatusPending Status = iota
	StatusHandled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusHandled:
		return "handled"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// State summarizes a solver.
type State int

const (
	// StateSolved means every equation was handled.
	StateSolved State = iota
	// StateFailed means some equation failed.
	StateFailed
	// StateStalled means some equation is still pending.
	StateStalled
)

func (s State) String() string {
	switch s {
	case StateSolved:
		return "solved"
	case StateFailed:
		return "failed"
	case StateStalled:
		return "stalled"
	}
	return "unknown"
}

// Definition gives an indeterminate the rule
//
//	Head $0 ... $(Arity-1) = Replacement
//
// Replacement is owned.
type Definition struct {
	Head        term.Expr
	Arity       int
	Replacement term.Expr
}

// Interface is the solver's view of the indeterminates it may define and of
// the rules it reduces with.
type Interface interface {
	// IsIndeterminate reports whether e is a declaration that may still be
	// defined.
	IsIndeterminate(e term.Expr) bool

	// DependsOn reports whether defining indeterminate could change e.
	DependsOn(e, indeterminate term.Expr) bool

	// IsLambdaLike reports whether e would rewrite given more arguments.
	IsLambdaLike(e term.Expr) bool

	// IsHeadClosed reports whether no definition can change e's head.
	IsHeadClosed(e term.Expr) bool

	// NewIndeterminate returns an owned fresh indeterminate.
	NewIndeterminate() term.Expr

	// MakeDefinition defines an indeterminate, which stops being one.
	MakeDefinition(def Definition) error
}
