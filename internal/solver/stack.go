package solver

import (
	"github.com/roach88/termkernel/internal/conglomerate"
	"github.com/roach88/termkernel/internal/eval"
	"github.com/roach88/termkernel/internal/term"
)

// Frames owns the conglomerate contexts behind every Stack derived from it.
type Frames struct {
	store    *term.Store
	ev       *eval.Evaluator
	root     *conglomerate.Context
	contexts []*conglomerate.Context
}

// NewFrames creates the owner of the stacks that reduce with ev.
func NewFrames(ev *eval.Evaluator) *Frames {
	root := conglomerate.New(ev)
	return &Frames{
		store:    ev.Store(),
		ev:       ev,
		root:     root,
		contexts: []*conglomerate.Context{root},
	}
}

// Empty returns the stack with no bound variables and no assumptions.
func (f *Frames) Empty() Stack {
	return Stack{frames: f, ctx: f.root}
}

// Close releases every context. Stacks from f must not be used afterwards.
func (f *Frames) Close() {
	for _, c := range f.contexts {
		c.Close()
	}
	f.contexts = nil
}

// Stack is the bound-variable context of an equation: how many arguments are
// in scope and which equalities between terms may be assumed. Stacks are
// values; extending one leaves the original unchanged.
type Stack struct {
	frames *Frames
	ctx    *conglomerate.Context
	depth  uint64
}

// Depth returns the number of bound arguments in scope.
func (s Stack) Depth() uint64 {
	return s.depth
}

// Store returns the term store.
func (s Stack) Store() *term.Store {
	return s.frames.store
}

// Extend returns a stack with one more bound argument, $depth.
func (s Stack) Extend() Stack {
	s.depth++
	return s
}

// ExtendByAssumption returns a stack in which the owned terms lhs and rhs are
// equal. The receiver is unaffected. An inconsistent assumption returns the
// canonicalization error.
func (s Stack) ExtendByAssumption(lhs, rhs term.Expr) (Stack, error) {
	ctx := s.ctx.Clone()
	s.frames.contexts = append(s.frames.contexts, ctx)
	if err := ctx.AssumeEqual(lhs, rhs); err != nil {
		return s, err
	}
	s.ctx = ctx
	return s, nil
}

// Reduce returns the owned full normal form of the weak handle x under the
// stack's assumptions.
func (s Stack) Reduce(x term.Expr) term.Expr {
	return s.ctx.Reduce(x)
}

// Eliminate consumes x and returns it with every assumption marker expanded.
func (s Stack) Eliminate(x term.Expr) term.Expr {
	return s.ctx.EliminateConglomerates(x)
}

// HasAssumptions reports whether any equality is assumed.
func (s Stack) HasAssumptions() bool {
	return s.ctx != s.frames.root
}
