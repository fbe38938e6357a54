package ir

import (
	"fmt"

	"github.com/roach88/termkernel/internal/term"
)

// FromTerm renders the weak handle e as a Value:
//
//   - an application becomes an array [head, arg1, ..., argN]
//   - a node known to names becomes its name
//   - other axioms and declarations become "axiom#N" and "decl#N"
//   - Argument(i) becomes "$i" and Conglomerate(i) becomes "Ci"
//   - data becomes {"data": <type name>, "value": <pretty printed payload>}
func FromTerm(s *term.Store, e term.Expr, names term.Namer) Value {
	if names != nil {
		if name, ok := names(e); ok {
			return String(name)
		}
	}
	switch s.Kind(e) {
	case term.KindApply:
		head, args := s.Unfold(e)
		out := make(Array, 0, len(args)+1)
		out = append(out, FromTerm(s, head, names))
		for _, a := range args {
			out = append(out, FromTerm(s, a, names))
		}
		return out
	case term.KindAxiom:
		return String(fmt.Sprintf("axiom#%d", e))
	case term.KindDeclaration:
		return String(fmt.Sprintf("decl#%d", e))
	case term.KindArgument:
		return String(fmt.Sprintf("$%d", s.ArgumentIndex(e)))
	case term.KindConglomerate:
		return String(fmt.Sprintf("C%d", s.ConglomerateIndex(e)))
	default:
		id, v := s.DataValue(e)
		impl := s.DataTypeImpl(id)
		return Object{
			"data":  String(impl.Name()),
			"value": String(impl.PrettyPrint(v)),
		}
	}
}
