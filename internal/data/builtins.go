package data

import (
	"fmt"

	"github.com/roach88/termkernel/internal/rule"
	"github.com/roach88/termkernel/internal/term"
)

// Builtins is the set of data types every theory can use.
type Builtins struct {
	U64    Typed[uint64]
	String Typed[string]
	Vector Typed[[]term.Expr]
}

// RegisterBuiltins registers the builtin data types in s.
func RegisterBuiltins(s *term.Store) *Builtins {
	return &Builtins{
		U64: register[uint64](s, func(t term.Expr) term.DataType {
			return u64Type{typeExpr: t}
		}, nil, nil),
		String: register[string](s, func(t term.Expr) term.DataType {
			return stringType{typeExpr: t}
		}, normalizeString, nil),
		Vector: register[[]term.Expr](s, func(t term.Expr) term.DataType {
			return vectorType{typeExpr: t}
		}, cloneExprs, cloneExprs),
	}
}

// Release gives up the registrations. Types stay alive until the last data
// node using them is collected.
func (b *Builtins) Release() {
	b.U64.release()
	b.String.release()
	b.Vector.release()
}

// Op names a builtin operation that can be bound to a declaration.
type Op string

const (
	OpAdd    Op = "add"
	OpMul    Op = "mul"
	OpSub    Op = "sub"
	OpConcat Op = "concat"
	OpLen    Op = "len"
)

// Ops lists every builtin operation.
var Ops = []Op{OpAdd, OpMul, OpSub, OpConcat, OpLen}

// Rule returns the rule implementing op on decl. The rule takes a new
// reference to decl.
func (b *Builtins) Rule(s *term.Store, op Op, decl term.Expr) (rule.Rule, error) {
	switch op {
	case OpAdd:
		return binaryU64(s, b, decl, func(x, y uint64) uint64 { return x + y }), nil
	case OpMul:
		return binaryU64(s, b, decl, func(x, y uint64) uint64 { return x * y }), nil
	case OpSub:
		// Truncated subtraction keeps the result in u64.
		return binaryU64(s, b, decl, func(x, y uint64) uint64 {
			if y > x {
				return 0
			}
			return x - y
		}), nil
	case OpConcat:
		return rule.Rule{
			Pattern: rule.Pattern{
				Head: s.Copy(decl),
				Steps: []rule.PatternStep{
					rule.PullArgument(),
					rule.PullArgument(),
					rule.DataCheck(0, b.String.ID()),
					rule.DataCheck(1, b.String.ID()),
				},
			},
			Replacement: rule.Builtin(func(s *term.Store, captures []term.Expr) term.Expr {
				x, _ := b.String.ReadData(captures[0])
				y, _ := b.String.ReadData(captures[1])
				return b.String.MakeExpression(x + y)
			}),
		}, nil
	case OpLen:
		return rule.Rule{
			Pattern: rule.Pattern{
				Head: s.Copy(decl),
				Steps: []rule.PatternStep{
					rule.PullArgument(),
					rule.DataCheck(0, b.Vector.ID()),
				},
			},
			Replacement: rule.Builtin(func(s *term.Store, captures []term.Expr) term.Expr {
				elems, _ := b.Vector.ReadData(captures[0])
				return b.U64.MakeExpression(uint64(len(elems)))
			}),
		}, nil
	default:
		return rule.Rule{}, fmt.Errorf("unknown builtin %q", op)
	}
}

func binaryU64(s *term.Store, b *Builtins, decl term.Expr, fn func(x, y uint64) uint64) rule.Rule {
	return rule.Rule{
		Pattern: rule.Pattern{
			Head: s.Copy(decl),
			Steps: []rule.PatternStep{
				rule.PullArgument(),
				rule.PullArgument(),
				rule.DataCheck(0, b.U64.ID()),
				rule.DataCheck(1, b.U64.ID()),
			},
		},
		Replacement: rule.Builtin(func(s *term.Store, captures []term.Expr) term.Expr {
			x, _ := b.U64.ReadData(captures[0])
			y, _ := b.U64.ReadData(captures[1])
			return b.U64.MakeExpression(fn(x, y))
		}),
	}
}
