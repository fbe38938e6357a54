package data

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/termkernel/internal/term"
)

type u64Type struct {
	typeExpr term.Expr
}

func (u64Type) Name() string { return "u64" }
func (u64Type) Destroy(*term.Store, any) {}
func (u64Type) DebugPrint(v any) string { return strconv.FormatUint(v.(uint64), 10) + "u64" }
func (u64Type) PrettyPrint(v any) string { return strconv.FormatUint(v.(uint64), 10) }
func (u64Type) Subexpressions(any) []term.Expr { return nil }
func (u64Type) Key(v any) any { return v }
func (u64Type) Size(any) int { return 8 }

func (t u64Type) TypeOf(s *term.Store, _ any) term.Expr {
	return s.Copy(t.typeExpr)
}

type stringType struct {
	typeExpr term.Expr
}

func (stringType) Name() string { return "string" }
func (stringType) Destroy(*term.Store, any) {}
func (stringType) DebugPrint(v any) string { return strconv.Quote(v.(string)) }
func (stringType) PrettyPrint(v any) string { return v.(string) }
func (stringType) Subexpressions(any) []term.Expr { return nil }
func (stringType) Key(v any) any { return v }


func (t stringType) TypeOf(s *term.Store, _ any) term.Expr {
	return s.Copy(t.typeExpr)
}

type vectorType struct {
	typeExpr term.Expr
}

func (vectorType) Name() string { return "vector" }

func (vectorType) Destroy(s *term.Store, v any) {
	for _, e := range v.([]term.Expr) {
		s.Drop(e)
	}
}

func (vectorType) DebugPrint(v any) string {
	return "[" + strconv.Itoa(len(v.([]term.Expr))) + " elements]"
}

func (vectorType) PrettyPrint(v any) string {
	return vectorType{}.DebugPrint(v)
}

func (vectorType) Subexpressions(v any) []term.Expr {
	return v.([]term.Expr)
}

func (t vectorType) TypeOf(s *term.Store, _ any) term.Expr {
	return s.Copy(t.typeExpr)
}

// normalizeString puts text in NFC so equal strings intern to one node.
func normalizeString(s string) string {
	return norm.NFC.String(s)
}

// FormatVector renders the elements of a vector node with format.
func (b *Builtins) FormatVector(e term.Expr, format func(term.Expr) string) (string, bool) {
	elems, ok := b.Vector.ReadData(e)
	if !ok {
		return "", false
	}
	parts := make([]string, len(elems))
	for i, elem := range elems {
		parts[i] = format(elem)
	}
	return "[" + strings.Join(parts, ", ") + "]", true
}
