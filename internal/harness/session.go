package harness

import (
	"fmt"
	"log/slog"

	"github.com/roach88/termkernel/internal/compiler"
	"github.com/roach88/termkernel/internal/data"
	"github.com/roach88/termkernel/internal/eval"
	"github.com/roach88/termkernel/internal/ir"
	"github.com/roach88/termkernel/internal/rule"
	"github.com/roach88/termkernel/internal/term"
)

// Session is a theory compiled into its own store together with the
// evaluator that reduces under it. Steps of one scenario share a session, so
// definitions made by a solve step are visible to later steps.
type Session struct {
	store    *term.Store
	builtins *data.Builtins
	rules    *rule.Repository
	ev       *eval.Evaluator
	theory   *compiler.Theory
}

// NewSession compiles spec into a fresh store.
func NewSession(spec *compiler.TheorySpec, opts ...eval.Option) (*Session, error) {
	s := term.NewStore()
	sess := &Session{
		store:    s,
		builtins: data.RegisterBuiltins(s),
		rules:    rule.NewRepository(s),
	}
	sess.ev = eval.New(s, sess.rules, opts...)
	th, err := compiler.Build(s, sess.rules, sess.builtins, spec)
	if err != nil {
		sess.Close()
		return nil, err
	}
	sess.theory = th
	return sess, nil
}

// Store returns the session's term store.
func (s *Session) Store() *term.Store {
	return s.store
}

// Evaluator returns the session's evaluator.
func (s *Session) Evaluator() *eval.Evaluator {
	return s.ev
}

// Theory returns the compiled theory.
func (s *Session) Theory() *compiler.Theory {
	return s.theory
}

// Term parses v in the scenario term syntax and builds the owned term.
func (s *Session) Term(v any) (term.Expr, compiler.Node, error) {
	n, err := compiler.ParseNode(v)
	if err != nil {
		return 0, compiler.Node{}, fmt.Errorf("parse term: %w", err)
	}
	e, err := s.theory.Term(n)
	if err != nil {
		return 0, n, err
	}
	return e, n, nil
}

// Value renders the weak handle e with the theory's names.
func (s *Session) Value(e term.Expr) ir.Value {
	return ir.FromTerm(s.store, e, s.theory.Namer())
}

// Format renders the weak handle e as text with the theory's names.
func (s *Session) Format(e term.Expr) string {
	return s.theory.Format(e)
}

// Close releases everything the session allocated. A store that still holds
// nodes afterwards indicates a leaked handle and is logged.
func (s *Session) Close() {
	if s.ev != nil {
		s.ev.Close()
	}
	s.rules.Close()
	if s.theory != nil {
		s.theory.Close()
	}
	s.builtins.Release()
	s.store.ClearOrphans()
	if !s.store.Empty() {
		slog.Warn("session store not empty after close", "live", s.store.Live())
	}
}
