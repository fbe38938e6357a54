package solver

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/termkernel/internal/eval"
	"github.com/roach88/termkernel/internal/rule"
	"github.com/roach88/termkernel/internal/term"
)

// ErrNotIndeterminate is returned when defining a term that is not an
// undefined indeterminate of the set.
var ErrNotIndeterminate = errors.New("not an undefined indeterminate")

// Indeterminates implements Interface over an evaluator's rule repository
// and a set of declarations it may define.
type Indeterminates struct {
	store *term.Store
	ev    *eval.Evaluator
	set   map[term.Expr]struct{}
}

// NewIndeterminates creates an empty set defining rules through ev.
func NewIndeterminates(ev *eval.Evaluator) *Indeterminates {
	return &Indeterminates{
		store: ev.Store(),
		ev:    ev,
		set:   make(map[term.Expr]struct{}),
	}
}

// Add consumes the owned declaration decl and makes it definable.
func (x *Indeterminates) Add(decl term.Expr) error {
	if x.store.Kind(decl) != term.KindDeclaration {
		x.store.Drop(decl)
		return fmt.Errorf("add indeterminate: %w", rule.ErrNotDeclaration)
	}
	if _, ok := x.set[decl]; ok {
		x.store.Drop(decl)
		return nil
	}
	if err := x.ev.Rules().RegisterDeclaration(decl); err != nil && !errors.Is(err, rule.ErrAlreadyRegistered) {
		x.store.Drop(decl)
		return err
	}
	x.set[decl] = struct{}{}
	return nil
}

// Len returns the number of undefined indeterminates.
func (x *Indeterminates) Len() int {
	return len(x.set)
}

// IsIndeterminate implements Interface.
func (x *Indeterminates) IsIndeterminate(e term.Expr) bool {
	_, ok := x.set[e]
	return ok
}

// DependsOn implements Interface. Only the indeterminate itself depends on
// its definition.
func (x *Indeterminates) DependsOn(e, indeterminate term.Expr) bool {
	return e == indeterminate
}

// IsLambdaLike implements Interface.
func (x *Indeterminates) IsLambdaLike(e term.Expr) bool {
	return x.ev.IsLambdaLike(e)
}

// IsHeadClosed implements Interface. Axioms, data and bound arguments never
// rewrite.
func (x *Indeterminates) IsHeadClosed(e term.Expr) bool {
	switch x.store.Kind(x.store.Head(e)) {
	case term.KindAxiom, term.KindData, term.KindArgument:
		return true
	}
	return false
}

// NewIndeterminate implements Interface.
func (x *Indeterminates) NewIndeterminate() term.Expr {
	decl := x.store.Declaration()
	if err := x.Add(x.store.Copy(decl)); err != nil {
		panic(err)
	}
	return decl
}

// MakeDefinition implements Interface.
func (x *Indeterminates) MakeDefinition(def Definition) error {
	if _, ok := x.set[def.Head]; !ok {
		x.store.Drop(def.Replacement)
		return fmt.Errorf("define %d: %w", def.Head, ErrNotIndeterminate)
	}
	err := x.ev.Rules().AddRule(rule.Rule{
		Pattern:     rule.LambdaPattern(x.store.Copy(def.Head), def.Arity),
		Replacement: rule.Template(def.Replacement),
	})
	if err != nil {
		return fmt.Errorf("define %d: %w", def.Head, err)
	}
	delete(x.set, def.Head)
	x.store.Drop(def.Head)
	slog.Debug("indeterminate defined", "head", def.Head, "arity", def.Arity)
	return nil
}

// Close releases the undefined indeterminates.
func (x *Indeterminates) Close() {
	for decl := range x.set {
		delete(x.set, decl)
		x.store.Drop(decl)
	}
}
