// Package eval head-normalizes terms by applying the rules of a
// rule.Repository.
package eval

import (
	"log/slog"

	"github.com/roach88/termkernel/internal/rule"
	"github.com/roach88/termkernel/internal/term"
)

// DefaultMaxSteps bounds rewrite steps per Reduce call. Zero means unbounded:
// a rule set that loops makes Reduce loop too.
const DefaultMaxSteps = 0

// Evaluator reduces terms to head-normal form.
//
// Results are memoized per evaluator. The cache is keyed weakly by input
// term: erasing the input evicts the entry, and any change to the rule
// repository clears the whole cache.
type Evaluator struct {
	store    *term.Store
	rules    *rule.Repository
	memo     map[term.Expr]term.Expr
	version  uint64
	sub      term.Subscription
	useMemo  bool
	maxSteps int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMemo enables or disables the reduction cache. Default: enabled.
func WithMemo(enabled bool) Option {
	return func(e *Evaluator) {
		e.useMemo = enabled
	}
}

// WithMaxSteps bounds the number of rule applications per Reduce call.
// A truncated reduction is logged and returned as-is without being cached.
//
// Default: 0 (DefaultMaxSteps, unbounded)
func WithMaxSteps(n int) Option {
	return func(e *Evaluator) {
		e.maxSteps = n
	}
}

// New creates an evaluator over s using rules.
func New(s *term.Store, rules *rule.Repository, opts ...Option) *Evaluator {
	e := &Evaluator{
		store:    s,
		rules:    rules,
		memo:     make(map[term.Expr]term.Expr),
		version:  rules.Version(),
		useMemo:  true,
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.sub = s.OnErase(e.erase)
	return e
}

// Store returns the store the evaluator works on.
func (e *Evaluator) Store() *term.Store {
	return e.store
}

// Rules returns the repository the evaluator consults.
func (e *Evaluator) Rules() *rule.Repository {
	return e.rules
}

// Reduce returns an owned head-normal form of the weak handle x.
func (e *Evaluator) Reduce(x term.Expr) term.Expr {
	e.sync()
	if v, ok := e.memo[x]; ok {
		return e.store.Copy(v)
	}

	cur := e.store.Copy(x)
	for steps := 1; ; steps++ {
		next, ok := e.Step(cur, e.Reduce)
		if !ok {
			break
		}
		e.store.Drop(cur)
		cur = next
		if e.maxSteps > 0 && steps >= e.maxSteps {
			slog.Warn("reduction step limit reached", "steps", steps, "term", x)
			return cur
		}
	}

	if e.useMemo && cur != x {
		e.memo[x] = e.store.Copy(cur)
	}
	return cur
}

// IsLambdaLike reports whether x is a declaration applied to fewer arguments
// than one of its rules consumes, where that rule does not inspect any of
// the missing arguments.
func (e *Evaluator) IsLambdaLike(x term.Expr) bool {
	head, args := e.store.Unfold(x)
	if e.store.Kind(head) != term.KindDeclaration {
		return false
	}
	n := len(args)
	for _, r := range e.rules.Rules(head) {
		if r.Pattern.Arity() > n && r.Pattern.InspectedPrefix() <= n {
			return true
		}
	}
	return false
}

// Close releases the cache and detaches from the store.
func (e *Evaluator) Close() {
	e.sub.Unsubscribe()
	e.clear()
}

// Step applies the first matching rule at the head of the weak handle cur and
// returns an owned result, or false if no rule matches. Entries inspected by
// PatternMatch and DataCheck steps are normalized with reduce, which must
// return owned head-normal forms; callers that reduce modulo extra equations
// pass their own.
func (e *Evaluator) Step(cur term.Expr, reduce func(term.Expr) term.Expr) (term.Expr, bool) {
	s := e.store
	head, args := s.Unfold(cur)
	if s.Kind(head) != term.KindDeclaration {
		return 0, false
	}
	for _, r := range e.rules.Rules(head) {
		arity := r.Pattern.Arity()
		if arity > len(args) {
			continue
		}
		if result, ok := e.tryRule(r, args, reduce); ok {
			return s.ApplyArgs(result, args[arity:]), true
		}
	}
	return 0, false
}

func (e *Evaluator) tryRule(r rule.Rule, args []term.Expr, reduce func(term.Expr) term.Expr) (term.Expr, bool) {
	s := e.store
	stack := make([]term.Expr, 0, r.Pattern.StackSize())
	var held []term.Expr
	defer func() { s.DropAll(held...) }()

	pulled := 0
	for _, step := range r.Pattern.Steps {
		switch step.Kind {
		case rule.StepPullArgument:
			stack = append(stack, args[pulled])
			pulled++

		case rule.StepPatternMatch:
			reduced := reduce(stack[step.Substitution])
			held = append(held, reduced)
			head, sub := s.Unfold(reduced)
			if head != step.ExpectedHead || len(sub) != step.ArgsCaptured {
				return 0, false
			}
			stack = append(stack, sub...)

		case rule.StepDataCheck:
			reduced := reduce(stack[step.CaptureIndex])
			held = append(held, reduced)
			if s.Kind(reduced) != term.KindData {
				return 0, false
			}
			if id, _ := s.DataValue(reduced); id != step.ExpectedType {
				return 0, false
			}
			stack[step.CaptureIndex] = reduced
		}
	}
	return r.Apply(s, stack), true
}

func (e *Evaluator) sync() {
	if v := e.rules.Version(); v != e.version {
		e.clear()
		e.version = v
	}
}

func (e *Evaluator) clear() {
	for k, v := range e.memo {
		delete(e.memo, k)
		e.store.Drop(v)
	}
}

func (e *Evaluator) erase(x term.Expr) {
	if v, ok := e.memo[x]; ok {
		delete(e.memo, x)
		e.store.Drop(v)
	}
}
