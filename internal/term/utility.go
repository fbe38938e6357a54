package term

import (
	"fmt"
	"strings"
)

// Unfold splits e into its head and argument spine. The result handles are
// weak and remain valid while e is alive.
func (s *Store) Unfold(e Expr) (head Expr, args []Expr) {
	for s.Kind(e) == KindApply {
		lhs, rhs := s.ApplyParts(e)
		args = append(args, rhs)
		e = lhs
	}
	for i, j := 0, len(args)-1; i < j; i, j = i+1, j-1 {
		args[i], args[j] = args[j], args[i]
	}
	return e, args
}

// Head returns the weak head of e's application spine.
func (s *Store) Head(e Expr) Expr {
	for s.Kind(e) == KindApply {
		e, _ = s.ApplyParts(e)
	}
	return e
}

// ApplyArgs applies the owned head to copies of the weak args, left to right.
func (s *Store) ApplyArgs(head Expr, args []Expr) Expr {
	for _, arg := range args {
		head = s.Apply(head, s.Copy(arg))
	}
	return head
}

// Rewrite maps fn over e bottom-up and returns an owned result. fn sees each
// distinct subterm at most once; it returns an owned replacement and true, or
// false to descend into the node unchanged.
func (s *Store) Rewrite(e Expr, fn func(Expr) (Expr, bool)) Expr {
	memo := make(map[Expr]Expr)
	defer func() {
		for _, v := range memo {
			s.Drop(v)
		}
	}()

	var walk func(Expr) Expr
	walk = func(e Expr) Expr {
		if v, ok := memo[e]; ok {
			return s.Copy(v)
		}
		var result Expr
		if replaced, ok := fn(e); ok {
			result = replaced
		} else if s.Kind(e) == KindApply {
			lhs, rhs := s.ApplyParts(e)
			result = s.Apply(walk(lhs), walk(rhs))
		} else {
			result = s.Copy(e)
		}
		memo[e] = s.Copy(result)
		return result
	}
	return walk(e)
}

// Substitute replaces Argument(i) in template with a copy of args[i].
// Arguments past the end of args are left in place.
func (s *Store) Substitute(template Expr, args []Expr) Expr {
	return s.Rewrite(template, func(e Expr) (Expr, bool) {
		if s.Kind(e) != KindArgument {
			return 0, false
		}
		i := s.ArgumentIndex(e)
		if i >= uint64(len(args)) {
			return 0, false
		}
		return s.Copy(args[i]), true
	})
}

// Contains reports whether pred holds for any subterm of e, including the
// subexpressions of data payloads.
func (s *Store) Contains(e Expr, pred func(Expr) bool) bool {
	seen := make(map[Expr]struct{})
	stack := []Expr{e}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}
		if pred(cur) {
			return true
		}
		switch s.Kind(cur) {
		case KindApply:
			lhs, rhs := s.ApplyParts(cur)
			stack = append(stack, lhs, rhs)
		case KindData:
			t, v := s.DataValue(cur)
			stack = append(stack, s.DataTypeImpl(t).Subexpressions(v)...)
		}
	}
	return false
}

// ContainsKind reports whether e has a subterm of kind k.
func (s *Store) ContainsKind(e Expr, k Kind) bool {
	return s.Contains(e, func(sub Expr) bool { return s.Kind(sub) == k })
}

// Namer supplies display names for axioms and declarations.
type Namer func(Expr) (string, bool)

// Format renders e for diagnostics. Names come from names when it knows the
// node; otherwise axioms print as axiom#N and declarations as decl#N.
func (s *Store) Format(e Expr, names Namer) string {
	var b strings.Builder
	s.format(&b, e, names, false)
	return b.String()
}

func (s *Store) format(b *strings.Builder, e Expr, names Namer, nested bool) {
	if names != nil {
		if name, ok := names(e); ok {
			b.WriteString(name)
			return
		}
	}
	switch s.Kind(e) {
	case KindApply:
		head, args := s.Unfold(e)
		if nested {
			b.WriteByte('(')
		}
		s.format(b, head, names, true)
		for _, arg := range args {
			b.WriteByte(' ')
			s.format(b, arg, names, true)
		}
		if nested {
			b.WriteByte(')')
		}
	case KindAxiom:
		fmt.Fprintf(b, "axiom#%d", e)
	case KindDeclaration:
		fmt.Fprintf(b, "decl#%d", e)
	case KindArgument:
		fmt.Fprintf(b, "$%d", s.ArgumentIndex(e))
	case KindConglomerate:
		fmt.Fprintf(b, "C%d", s.ConglomerateIndex(e))
	case KindData:
		t, v := s.DataValue(e)
		b.WriteString(s.DataTypeImpl(t).DebugPrint(v))
	}
}
