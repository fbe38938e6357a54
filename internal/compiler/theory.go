package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/termkernel/internal/data"
	"github.com/roach88/termkernel/internal/ir"
)

// TheorySpec is a parsed theory file before any term is allocated.
type TheorySpec struct {
	Name         string
	Axioms       []string
	Declarations []string
	Builtins     []BuiltinSpec
	Rules        []RuleSpec
}

// BuiltinSpec binds a declaration name to a builtin operation.
type BuiltinSpec struct {
	Name string
	Op   data.Op
}

// RuleSpec is one rewrite rule: Head applied to Args rewrites to Result.
type RuleSpec struct {
	Head   string
	Args   []Node
	Result Node
	Pos    token.Pos
}

// Value returns the canonical document form of the theory. Two specs with
// equal values compile to equivalent theories.
func (t *TheorySpec) Value() ir.Value {
	builtins := ir.Object{}
	for _, b := range t.Builtins {
		builtins[b.Name] = ir.String(string(b.Op))
	}
	rules := make(ir.Array, len(t.Rules))
	for i, r := range t.Rules {
		args := make(ir.Array, len(r.Args))
		for j, a := range r.Args {
			args[j] = a.Value()
		}
		rules[i] = ir.Object{
			"head":   ir.String(r.Head),
			"args":   args,
			"result": r.Result.Value(),
		}
	}
	return ir.Object{
		"name":         ir.String(t.Name),
		"axioms":       ir.Strings(t.Axioms),
		"declarations": ir.Strings(t.Declarations),
		"builtins":     builtins,
		"rules":        rules,
	}
}

// Hash returns the content hash of the theory document.
func (t *TheorySpec) Hash() (string, error) {
	return ir.TheoryHash(t.Value())
}

// CompileTheory parses a CUE value into a TheorySpec.
//
// The value should be the theory struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`theory: { axioms: ["zero"] }`)
//	spec, err := CompileTheory(v.LookupPath(cue.ParsePath("theory")))
func CompileTheory(v cue.Value) (*TheorySpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{Field: "theory", Message: "theory is required"}
	}

	spec := &TheorySpec{}
	if name := v.LookupPath(cue.ParsePath("name")); name.Exists() {
		s, err := name.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Name = s
	} else if sels := v.Path().Selectors(); len(sels) > 0 {
		spec.Name = sels[len(sels)-1].String()
	}

	var err error
	if spec.Axioms, err = parseNames(v, "axioms"); err != nil {
		return nil, err
	}
	if spec.Declarations, err = parseNames(v, "declarations"); err != nil {
		return nil, err
	}
	if spec.Builtins, err = parseBuiltins(v); err != nil {
		return nil, err
	}
	if spec.Rules, err = parseRules(v); err != nil {
		return nil, err
	}
	return spec, nil
}

// LoadTheory loads the theory at path, which may be a single .cue file or a
// directory holding one CUE package. The theory lives under the top-level
// field "theory".
func LoadTheory(path string) (*TheorySpec, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load theory: %w", err)
	}

	cfg := &load.Config{Dir: path}
	args := []string{"."}
	if !info.IsDir() {
		cfg.Dir = filepath.Dir(path)
		args = []string{"./" + filepath.Base(path)}
	}

	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, fmt.Errorf("load theory %s: no CUE instances", path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	spec, err := CompileTheory(value.LookupPath(cue.ParsePath("theory")))
	if err != nil {
		return nil, err
	}
	if spec.Name == "" || spec.Name == "theory" {
		spec.Name = trimExt(filepath.Base(path))
	}
	return spec, nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

func parseNames(v cue.Value, field string) ([]string, error) {
	val := v.LookupPath(cue.ParsePath(field))
	if !val.Exists() {
		return nil, nil
	}
	iter, err := val.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var names []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   field,
				Message: "names must be strings",
				Pos:     iter.Value().Pos(),
			}
		}
		names = append(names, s)
	}
	return names, nil
}

// parseBuiltins accepts either a list of operation names, each bound to a
// declaration of the same name, or a struct mapping declaration names to
// operations.
func parseBuiltins(v cue.Value) ([]BuiltinSpec, error) {
	val := v.LookupPath(cue.ParsePath("builtins"))
	if !val.Exists() {
		return nil, nil
	}

	var out []BuiltinSpec
	if val.Kind() == cue.StructKind {
		iter, err := val.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			op, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			out = append(out, BuiltinSpec{Name: iter.Label(), Op: data.Op(op)})
		}
		return out, nil
	}

	names, err := parseNames(v, "builtins")
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		out = append(out, BuiltinSpec{Name: name, Op: data.Op(name)})
	}
	return out, nil
}

func parseRules(v cue.Value) ([]RuleSpec, error) {
	val := v.LookupPath(cue.ParsePath("rules"))
	if !val.Exists() {
		return nil, nil
	}
	iter, err := val.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules []RuleSpec
	for i := 0; iter.Next(); i++ {
		rv := iter.Value()
		field := fmt.Sprintf("rules[%d]", i)
		r := RuleSpec{Pos: rv.Pos()}

		head := rv.LookupPath(cue.ParsePath("head"))
		if !head.Exists() {
			return nil, &CompileError{Field: field + ".head", Message: "rule head is required", Pos: rv.Pos()}
		}
		if r.Head, err = head.String(); err != nil {
			return nil, formatCUEError(err)
		}

		if args := rv.LookupPath(cue.ParsePath("args")); args.Exists() {
			argIter, err := args.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for j := 0; argIter.Next(); j++ {
				n, err := nodeFromCUE(argIter.Value(), fmt.Sprintf("%s.args[%d]", field, j))
				if err != nil {
					return nil, err
				}
				r.Args = append(r.Args, n)
			}
		}

		result := rv.LookupPath(cue.ParsePath("result"))
		if !result.Exists() {
			return nil, &CompileError{Field: field + ".result", Message: "rule result is required", Pos: rv.Pos()}
		}
		if r.Result, err = nodeFromCUE(result, field+".result"); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}
