// Package rule holds compiled rewrite rules and the per-declaration
// repository the evaluator consults.
package rule

import (
	"github.com/roach88/termkernel/internal/term"
)

// StepKind discriminates pattern steps.
type StepKind uint8

const (
	// StepPullArgument pushes the next actual argument onto the pattern stack.
	StepPullArgument StepKind = iota

	// StepPatternMatch head-normalizes a stack entry, checks its head and
	// argument count, and pushes its arguments.
	StepPatternMatch

	// StepDataCheck head-normalizes a stack entry and checks that it is a data
	// node of the expected type.
	StepDataCheck
)

func (k StepKind) String() string {
	switch k {
	case StepPullArgument:
		return "pull"
	case StepPatternMatch:
		return "match"
	case StepDataCheck:
		return "data"
	default:
		return "unknown"
	}
}

// PatternStep is one instruction of a compiled pattern.
type PatternStep struct {
	Kind StepKind

	// Substitution is the stack index inspected by a PatternMatch.
	Substitution int

	// ExpectedHead is owned by the rule.
	ExpectedHead term.Expr

	// ArgsCaptured is the exact argument count a PatternMatch requires.
	ArgsCaptured int

	// CaptureIndex is the stack index inspected by a DataCheck.
	CaptureIndex int

	ExpectedType term.DataTypeID
}

// PullArgument returns a step consuming the next actual argument.
func PullArgument() PatternStep {
	return PatternStep{Kind: StepPullArgument}
}

// PatternMatch returns a step requiring stack entry substitution to reduce to
// expectedHead applied to exactly argsCaptured arguments. expectedHead is
// consumed.
func PatternMatch(substitution int, expectedHead term.Expr, argsCaptured int) PatternStep {
	return PatternStep{
		Kind:         StepPatternMatch,
		Substitution: substitution,
		ExpectedHead: expectedHead,
		ArgsCaptured: argsCaptured,
	}
}

// DataCheck returns a step requiring stack entry captureIndex to reduce to a
// data node of type expected.
func DataCheck(captureIndex int, expected term.DataTypeID) PatternStep {
	return PatternStep{Kind: StepDataCheck, CaptureIndex: captureIndex, ExpectedType: expected}
}

// Pattern is the left-hand side of a rule. Head is the declaration the rule
// belongs to.
type Pattern struct {
	Head  term.Expr
	Steps []PatternStep
}

// LambdaPattern returns the pattern head $0 ... $(n-1) with no inspection.
func LambdaPattern(head term.Expr, n int) Pattern {
	steps := make([]PatternStep, n)
	for i := range steps {
		steps[i] = PullArgument()
	}
	return Pattern{Head: head, Steps: steps}
}

// Arity returns the number of actual arguments the pattern consumes.
func (p Pattern) Arity() int {
	n := 0
	for _, step := range p.Steps {
		if step.Kind == StepPullArgument {
			n++
		}
	}
	return n
}

// StackSize returns the size of the pattern stack after a successful match.
func (p Pattern) StackSize() int {
	n := 0
	for _, step := range p.Steps {
		switch step.Kind {
		case StepPullArgument:
			n++
		case StepPatternMatch:
			n += step.ArgsCaptured
		}
	}
	return n
}

// InspectedPrefix returns the number of leading arguments the pattern needs to
// see before it can decide whether it matches. Arguments past the prefix are
// only pulled, never inspected.
func (p Pattern) InspectedPrefix() int {
	// origin[i] is the actual argument stack entry i was derived from.
	var origin []int
	pulled := 0
	prefix := 0
	inspect := func(i int) {
		if i < len(origin) && origin[i]+1 > prefix {
			prefix = origin[i] + 1
		}
	}
	for _, step := range p.Steps {
		switch step.Kind {
		case StepPullArgument:
			origin = append(origin, pulled)
			pulled++
		case StepPatternMatch:
			inspect(step.Substitution)
			src := 0
			if step.Substitution < len(origin) {
				src = origin[step.Substitution]
			}
			for j := 0; j < step.ArgsCaptured; j++ {
				origin = append(origin, src)
			}
		case StepDataCheck:
			inspect(step.CaptureIndex)
		}
	}
	return prefix
}

// BuiltinFunc computes a replacement from the final pattern stack. It receives
// weak handles and returns an owned result.
type BuiltinFunc func(s *term.Store, captures []term.Expr) term.Expr

// Replacement is the right-hand side of a rule: either a template over
// Argument(i), where i indexes the pattern stack, or a builtin function.
type Replacement struct {
	Template term.Expr
	Func     BuiltinFunc
}

// Template returns a replacement substituting the pattern stack into the
// owned template.
func Template(template term.Expr) Replacement {
	return Replacement{Template: template}
}

// Builtin returns a replacement computed by fn.
func Builtin(fn BuiltinFunc) Replacement {
	return Replacement{Func: fn}
}

// Rule rewrites a declaration applied to matching arguments.
type Rule struct {
	Pattern     Pattern
	Replacement Replacement
}

// Apply builds the replacement for a successful match. captures are weak.
func (r Rule) Apply(s *term.Store, captures []term.Expr) term.Expr {
	if r.Replacement.Func != nil {
		return r.Replacement.Func(s, captures)
	}
	return s.Substitute(r.Replacement.Template, captures)
}

// release drops every handle the rule owns except the pattern head.
func (r Rule) release(s *term.Store) {
	for _, step := range r.Pattern.Steps {
		if step.Kind == StepPatternMatch {
			s.Drop(step.ExpectedHead)
		}
	}
	if r.Replacement.Func == nil {
		s.Drop(r.Replacement.Template)
	}
}
