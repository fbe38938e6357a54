package solver

import (
	"fmt"

	"github.com/roach88/termkernel/internal/term"
)

type outcome int

const (
	outcomeNothing outcome = iota
	outcomeHandled
	outcomeFailed
)

type verdict struct {
	outcome outcome
	reason  string
}

var (
	nothing = verdict{outcome: outcomeNothing}
	handled = verdict{outcome: outcomeHandled}
)

func failed(format string, args ...any) verdict {
	return verdict{outcome: outcomeFailed, reason: fmt.Sprintf(format, args...)}
}

type strategy struct {
	name string
	try  func(s *Solver, i int) verdict
}

// strategies in priority order.
var strategies = []strategy{
	{"extract_rule", (*Solver).extractRule},
	{"deepen", (*Solver).deepen},
	{"explode_symmetric", (*Solver).explodeSymmetric},
	{"explode_asymmetric", (*Solver).explodeAsymmetric},
	{"judge_equal", (*Solver).judgeEqual},
}

// definitionForm is an indeterminate applied to distinct bound arguments.
// positions maps each argument node to its position in the application.
type definitionForm struct {
	head      term.Expr
	args      []term.Expr
	positions map[term.Expr]int
}

func (s *Solver) definitionForm(x term.Expr, st Stack) (definitionForm, bool) {
	store := s.store
	head, args := store.Unfold(x)
	if !s.iface.IsIndeterminate(head) {
		return definitionForm{}, false
	}
	positions := make(map[term.Expr]int, len(args))
	for i, a := range args {
		if store.Kind(a) != term.KindArgument || store.ArgumentIndex(a) >= st.Depth() {
			return definitionForm{}, false
		}
		if _, dup := positions[a]; dup {
			return definitionForm{}, false
		}
		positions[a] = i
	}
	return definitionForm{head: head, args: args, positions: positions}, true
}

// replacement rewrites the weak term x over the arguments of form, returning
// an owned term in which argument k stands for the k-th position. It fails
// if x mentions other arguments, unresolved assumption markers or anything
// that depends on the indeterminate being defined.
func (s *Solver) replacement(form definitionForm, x term.Expr, st Stack) (term.Expr, bool) {
	store := s.store
	elim := st.Eliminate(store.Copy(x))
	defer store.Drop(elim)

	bad := store.Contains(elim, func(e term.Expr) bool {
		switch store.Kind(e) {
		case term.KindDeclaration:
			return s.iface.DependsOn(e, form.head)
		case term.KindConglomerate:
			return true
		case term.KindArgument:
			_, ok := form.positions[e]
			return !ok
		case term.KindData:
			t, v := store.DataValue(e)
			for _, sub := range store.DataTypeImpl(t).Subexpressions(v) {
				if store.ContainsKind(sub, term.KindArgument) {
					return true
				}
			}
		}
		return false
	})
	if bad {
		return 0, false
	}

	return store.Rewrite(elim, func(e term.Expr) (term.Expr, bool) {
		p, ok := form.positions[e]
		if !ok {
			return 0, false
		}
		return store.Argument(uint64(p)), true
	}), true
}

func (s *Solver) extractRule(i int) verdict {
	eq := s.equations[i].eq
	for _, side := range [2][2]term.Expr{{eq.LHS, eq.RHS}, {eq.RHS, eq.LHS}} {
		form, ok := s.definitionForm(side[0], eq.Stack)
		if !ok {
			continue
		}
		repl, ok := s.replacement(form, side[1], eq.Stack)
		if !ok {
			continue
		}
		err := s.iface.MakeDefinition(Definition{
			Head:        form.head,
			Arity:       len(form.args),
			Replacement: repl,
		})
		if err != nil {
			return failed("defining indeterminate: %v", err)
		}
		return handled
	}
	return nothing
}

func (s *Solver) deepen(i int) verdict {
	store := s.store
	eq := s.equations[i].eq
	if !s.iface.IsLambdaLike(eq.LHS) && !s.iface.IsLambdaLike(eq.RHS) {
		return nothing
	}
	arg := store.Argument(eq.Stack.Depth())
	s.push(Equation{
		LHS:   store.Apply(store.Copy(eq.LHS), store.Copy(arg)),
		RHS:   store.Apply(store.Copy(eq.RHS), arg),
		Stack: eq.Stack.Extend(),
	}, i)
	return handled
}

func (s *Solver) explodeSymmetric(i int) verdict {
	store := s.store
	eq := s.equations[i].eq
	if !s.iface.IsHeadClosed(eq.LHS) || !s.iface.IsHeadClosed(eq.RHS) {
		return nothing
	}
	lhead, largs := store.Unfold(eq.LHS)
	rhead, rargs := store.Unfold(eq.RHS)
	if lhead != rhead {
		return failed("head mismatch: %s vs %s", store.Format(lhead, nil), store.Format(rhead, nil))
	}
	if len(largs) != len(rargs) {
		return failed("arity mismatch: %d vs %d arguments", len(largs), len(rargs))
	}
	for k := range largs {
		s.push(Equation{
			LHS:   store.Copy(largs[k]),
			RHS:   store.Copy(rargs[k]),
			Stack: eq.Stack,
		}, i)
	}
	return handled
}

func (s *Solver) explodeAsymmetric(i int) verdict {
	store := s.store
	eq := s.equations[i].eq
	for _, side := range [2][2]term.Expr{{eq.LHS, eq.RHS}, {eq.RHS, eq.LHS}} {
		closed := side[1]
		if !s.iface.IsHeadClosed(closed) {
			continue
		}
		form, ok := s.definitionForm(side[0], eq.Stack)
		if !ok {
			continue
		}
		dependent := store.Contains(closed, func(e term.Expr) bool {
			return store.Kind(e) == term.KindDeclaration && s.iface.DependsOn(e, form.head)
		})
		if dependent {
			continue
		}

		head, args := store.Unfold(closed)
		var def term.Expr
		if store.Kind(head) == term.KindArgument {
			p, ok := form.positions[head]
			if !ok {
				continue
			}
			def = store.Argument(uint64(p))
		} else {
			def = store.Copy(head)
		}

		fresh := make([]term.Expr, len(args))
		for k := range args {
			fresh[k] = s.iface.NewIndeterminate()
			sub := store.Copy(fresh[k])
			for p := range form.args {
				sub = store.Apply(sub, store.Argument(uint64(p)))
			}
			def = store.Apply(def, sub)
		}
		err := s.iface.MakeDefinition(Definition{
			Head:        form.head,
			Arity:       len(form.args),
			Replacement: def,
		})
		if err != nil {
			store.DropAll(fresh...)
			return failed("defining indeterminate: %v", err)
		}

		for k, a := range args {
			s.push(Equation{
				LHS:   store.ApplyArgs(fresh[k], form.args),
				RHS:   store.Copy(a),
				Stack: eq.Stack,
			}, i)
		}
		return handled
	}
	return nothing
}

func (s *Solver) judgeEqual(i int) verdict {
	eq := s.equations[i].eq
	if eq.LHS == eq.RHS {
		return handled
	}
	return nothing
}
