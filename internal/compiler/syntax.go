package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/termkernel/internal/ir"
)

// NodeKind discriminates surface syntax nodes.
type NodeKind uint8

const (
	NodeName NodeKind = iota
	NodeArgument
	NodeU64
	NodeString
	NodeApply
	NodeDataCheck
)

// Node is the surface syntax shared by theory files and scenarios.
//
// Atoms are written as plain values:
//
//	zero          a name (or, in a rule pattern, a variable)
//	"$2"          Argument(2)
//	7             a u64 datum
//	'"hi"'        a string datum (a quoted string inside the value)
//	[f, x, y]     f applied to x then y
//	{u64: "n"}    a pattern that only matches u64 data, binding n
type Node struct {
	Kind  NodeKind
	Name  string
	Type  string
	Index uint64
	U64   uint64
	Str   string
	Items []Node
	Pos   token.Pos
}

// Name returns a name node.
func Name(name string) Node { return Node{Kind: NodeName, Name: name} }

// Apply returns head applied to args.
func Apply(head Node, args ...Node) Node {
	return Node{Kind: NodeApply, Items: append([]Node{head}, args...)}
}

// ParseNode reads a node from decoded YAML or JSON data.
func ParseNode(v any) (Node, error) {
	switch val := v.(type) {
	case string:
		return parseAtom(val, token.NoPos)
	case int:
		if val < 0 {
			return Node{}, fmt.Errorf("negative literal %d", val)
		}
		return Node{Kind: NodeU64, U64: uint64(val)}, nil
	case int64:
		if val < 0 {
			return Node{}, fmt.Errorf("negative literal %d", val)
		}
		return Node{Kind: NodeU64, U64: uint64(val)}, nil
	case uint64:
		return Node{Kind: NodeU64, U64: val}, nil
	case []any:
		if len(val) == 0 {
			return Node{}, fmt.Errorf("empty application")
		}
		n := Node{Kind: NodeApply}
		for i, item := range val {
			sub, err := ParseNode(item)
			if err != nil {
				return Node{}, fmt.Errorf("[%d]: %w", i, err)
			}
			n.Items = append(n.Items, sub)
		}
		if len(n.Items) == 1 {
			return n.Items[0], nil
		}
		return n, nil
	case map[string]any:
		if len(val) != 1 {
			return Node{}, fmt.Errorf("data check needs exactly one field, got %d", len(val))
		}
		for typ, name := range val {
			s, ok := name.(string)
			if !ok {
				return Node{}, fmt.Errorf("data check %s: variable must be a string", typ)
			}
			return dataCheck(typ, s, token.NoPos)
		}
	}
	return Node{}, fmt.Errorf("unsupported term syntax %T", v)
}

func parseAtom(s string, pos token.Pos) (Node, error) {
	switch {
	case s == "":
		return Node{}, fmt.Errorf("empty name")
	case strings.HasPrefix(s, "$"):
		i, err := strconv.ParseUint(s[1:], 10, 64)
		if err != nil {
			return Node{}, fmt.Errorf("bad argument %q", s)
		}
		return Node{Kind: NodeArgument, Index: i, Pos: pos}, nil
	case strings.HasPrefix(s, `"`):
		str, err := strconv.Unquote(s)
		if err != nil {
			return Node{}, fmt.Errorf("bad string literal %s", s)
		}
		return Node{Kind: NodeString, Str: str, Pos: pos}, nil
	default:
		return Node{Kind: NodeName, Name: s, Pos: pos}, nil
	}
}

func dataCheck(typ, name string, pos token.Pos) (Node, error) {
	switch typ {
	case "u64", "string":
		return Node{Kind: NodeDataCheck, Type: typ, Name: name, Pos: pos}, nil
	default:
		return Node{}, fmt.Errorf("unknown data type %q", typ)
	}
}

// nodeFromCUE reads a node from a CUE value, keeping source positions.
func nodeFromCUE(v cue.Value, field string) (Node, error) {
	fail := func(err error) (Node, error) {
		return Node{}, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return Node{}, formatCUEError(err)
		}
		n, err := parseAtom(s, v.Pos())
		if err != nil {
			return fail(err)
		}
		return n, nil
	case cue.IntKind:
		u, err := v.Uint64()
		if err != nil {
			return fail(fmt.Errorf("literal must be a u64: %w", err))
		}
		return Node{Kind: NodeU64, U64: u, Pos: v.Pos()}, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return Node{}, formatCUEError(err)
		}
		n := Node{Kind: NodeApply, Pos: v.Pos()}
		for i := 0; iter.Next(); i++ {
			sub, err := nodeFromCUE(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return Node{}, err
			}
			n.Items = append(n.Items, sub)
		}
		switch len(n.Items) {
		case 0:
			return fail(fmt.Errorf("empty application"))
		case 1:
			return n.Items[0], nil
		}
		return n, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return Node{}, formatCUEError(err)
		}
		var fields []Node
		for iter.Next() {
			name, err := iter.Value().String()
			if err != nil {
				return fail(fmt.Errorf("data check %s: variable must be a string", iter.Label()))
			}
			n, err := dataCheck(iter.Label(), name, v.Pos())
			if err != nil {
				return fail(err)
			}
			fields = append(fields, n)
		}
		if len(fields) != 1 {
			return fail(fmt.Errorf("data check needs exactly one field, got %d", len(fields)))
		}
		return fields[0], nil
	case cue.FloatKind, cue.NumberKind:
		return fail(fmt.Errorf("float literals are not supported"))
	default:
		return fail(fmt.Errorf("unsupported term syntax: %v", v.Kind()))
	}
}

// String renders n back to the list syntax used in diagnostics.
func (n Node) String() string {
	switch n.Kind {
	case NodeName:
		return n.Name
	case NodeArgument:
		return fmt.Sprintf("$%d", n.Index)
	case NodeU64:
		return strconv.FormatUint(n.U64, 10)
	case NodeString:
		return strconv.Quote(n.Str)
	case NodeDataCheck:
		return fmt.Sprintf("{%s: %s}", n.Type, n.Name)
	default:
		parts := make([]string, len(n.Items))
		for i, item := range n.Items {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
}

// Value renders n in the same shape ir.FromTerm gives the compiled term.
func (n Node) Value() ir.Value {
	switch n.Kind {
	case NodeName:
		return ir.String(n.Name)
	case NodeArgument:
		return ir.String(fmt.Sprintf("$%d", n.Index))
	case NodeU64:
		return ir.Object{"data": ir.String("u64"), "value": ir.String(strconv.FormatUint(n.U64, 10))}
	case NodeString:
		return ir.Object{"data": ir.String("string"), "value": ir.String(n.Str)}
	case NodeDataCheck:
		return ir.Object{"check": ir.String(n.Type), "bind": ir.String(n.Name)}
	default:
		out := make(ir.Array, len(n.Items))
		for i, item := range n.Items {
			out[i] = item.Value()
		}
		return out
	}
}

// names calls fn for every name node in n.
func (n Node) names(fn func(Node)) {
	switch n.Kind {
	case NodeName:
		fn(n)
	case NodeApply:
		for _, item := range n.Items {
			item.names(fn)
		}
	}
}
