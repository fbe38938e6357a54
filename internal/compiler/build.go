package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/termkernel/internal/data"
	"github.com/roach88/termkernel/internal/rule"
	"github.com/roach88/termkernel/internal/term"
)

// ErrUnknownName is returned when a term names something the theory does
// not bind.
var ErrUnknownName = errors.New("unknown name")

// Theory is a TheorySpec compiled into a store: every name owns one node and
// every rule lives in the repository.
type Theory struct {
	Spec *TheorySpec

	store    *term.Store
	rules    *rule.Repository
	builtins *data.Builtins
	names    map[string]term.Expr
	byExpr   map[term.Expr]string
}

// Build validates spec and allocates its names and rules in s and rules.
// The returned theory owns the name handles; Close releases them.
func Build(s *term.Store, rules *rule.Repository, b *data.Builtins, spec *TheorySpec) (*Theory, error) {
	if errs := Validate(spec); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	t := &Theory{
		Spec:     spec,
		store:    s,
		rules:    rules,
		builtins: b,
		names:    make(map[string]term.Expr),
		byExpr:   make(map[term.Expr]string),
	}
	for _, name := range spec.Axioms {
		t.bind(name, s.Axiom())
	}
	for _, name := range spec.Declarations {
		decl := s.Declaration()
		t.bind(name, decl)
		if err := rules.RegisterDeclaration(decl); err != nil {
			t.Close()
			return nil, fmt.Errorf("declare %s: %w", name, err)
		}
	}
	for _, bs := range spec.Builtins {
		decl := s.Declaration()
		t.bind(bs.Name, decl)
		r, err := b.Rule(s, bs.Op, decl)
		if err == nil {
			err = rules.AddRule(r)
		}
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("builtin %s: %w", bs.Name, err)
		}
	}
	for i, rs := range spec.Rules {
		r, err := t.compileRule(rs)
		if err == nil {
			err = rules.AddRule(r)
		}
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
	}

	slog.Debug("theory built",
		"theory", spec.Name,
		"axioms", len(spec.Axioms),
		"declarations", len(spec.Declarations)+len(spec.Builtins),
		"rules", len(spec.Rules),
	)
	return t, nil
}

func (t *Theory) bind(name string, e term.Expr) {
	t.names[name] = e
	t.byExpr[e] = name
}

// Bind names the owned node e so later terms can refer to it. It fails if the
// name is taken.
func (t *Theory) Bind(name string, e term.Expr) error {
	if _, ok := t.names[name]; ok {
		t.store.Drop(e)
		return fmt.Errorf("bind %q: %w", name, ErrDuplicateBinding)
	}
	t.bind(name, e)
	return nil
}

// ErrDuplicateBinding is returned by Bind for a name already in use.
var ErrDuplicateBinding = errors.New("name already bound")

// Lookup returns a weak handle to the node bound to name.
func (t *Theory) Lookup(name string) (term.Expr, bool) {
	e, ok := t.names[name]
	return e, ok
}

// Names returns every bound name in sorted order.
func (t *Theory) Names() []string {
	out := make([]string, 0, len(t.names))
	for name := range t.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Namer renders bound nodes by name.
func (t *Theory) Namer() term.Namer {
	return func(e term.Expr) (string, bool) {
		name, ok := t.byExpr[e]
		return name, ok
	}
}

// Format renders the weak handle e with the theory's names.
func (t *Theory) Format(e term.Expr) string {
	return t.store.Format(e, t.Namer())
}

// Term builds the owned term n denotes.
func (t *Theory) Term(n Node) (term.Expr, error) {
	s := t.store
	switch n.Kind {
	case NodeName:
		e, ok := t.names[n.Name]
		if !ok {
			return 0, fmt.Errorf("%q: %w", n.Name, ErrUnknownName)
		}
		return s.Copy(e), nil
	case NodeArgument:
		return s.Argument(n.Index), nil
	case NodeU64:
		return t.builtins.U64.MakeExpression(n.U64), nil
	case NodeString:
		return t.builtins.String.MakeExpression(n.Str), nil
	case NodeApply:
		acc, err := t.Term(n.Items[0])
		if err != nil {
			return 0, err
		}
		for _, item := range n.Items[1:] {
			arg, err := t.Term(item)
			if err != nil {
				s.Drop(acc)
				return 0, err
			}
			acc = s.Apply(acc, arg)
		}
		return acc, nil
	default:
		return 0, fmt.Errorf("%s is only allowed in rule patterns", n)
	}
}

// Close drops every name handle. Rules stay in the repository until their
// declarations are collected.
func (t *Theory) Close() {
	for name, e := range t.names {
		delete(t.names, name)
		delete(t.byExpr, e)
		t.store.Drop(e)
	}
}

// patternCompiler lowers rule argument patterns to pattern steps. Stack slots
// 0..arity-1 hold the actual arguments; each PatternMatch appends its
// captures after the current end of the stack.
type patternCompiler struct {
	t     *Theory
	steps []rule.PatternStep
	size  int
	vars  map[string]int
}

func (t *Theory) compileRule(rs RuleSpec) (rule.Rule, error) {
	s := t.store
	head, ok := t.names[rs.Head]
	if !ok || s.Kind(head) != term.KindDeclaration {
		return rule.Rule{}, &CompileError{Field: "head", Message: fmt.Sprintf("%q is not a declaration", rs.Head), Pos: rs.Pos}
	}

	pc := &patternCompiler{t: t, vars: make(map[string]int)}
	for range rs.Args {
		pc.steps = append(pc.steps, rule.PullArgument())
		pc.size++
	}
	for i, arg := range rs.Args {
		if err := pc.match(i, arg); err != nil {
			pc.release()
			return rule.Rule{}, err
		}
	}

	tmpl, err := pc.template(rs.Result)
	if err != nil {
		pc.release()
		return rule.Rule{}, err
	}
	return rule.Rule{
		Pattern:     rule.Pattern{Head: s.Copy(head), Steps: pc.steps},
		Replacement: rule.Template(tmpl),
	}, nil
}

func (pc *patternCompiler) match(slot int, n Node) error {
	s := pc.t.store
	switch n.Kind {
	case NodeName:
		if e, ok := pc.t.names[n.Name]; ok {
			if s.Kind(e) != term.KindAxiom {
				return &CompileError{Field: "pattern", Message: fmt.Sprintf("cannot match on %q", n.Name), Pos: n.Pos}
			}
			pc.steps = append(pc.steps, rule.PatternMatch(slot, s.Copy(e), 0))
			return nil
		}
		return pc.bindVar(n, slot)

	case NodeU64, NodeString:
		lit, err := pc.t.Term(n)
		if err != nil {
			return err
		}
		pc.steps = append(pc.steps, rule.PatternMatch(slot, lit, 0))
		return nil

	case NodeDataCheck:
		id := pc.t.builtins.U64.ID()
		if n.Type == "string" {
			id = pc.t.builtins.String.ID()
		}
		pc.steps = append(pc.steps, rule.DataCheck(slot, id))
		return pc.bindVar(n, slot)

	case NodeApply:
		head := n.Items[0]
		e, ok := pc.t.names[head.Name]
		if head.Kind != NodeName || !ok || s.Kind(e) != term.KindAxiom {
			return &CompileError{Field: "pattern", Message: fmt.Sprintf("sub-pattern head %s is not an axiom", head), Pos: n.Pos}
		}
		subs := n.Items[1:]
		pc.steps = append(pc.steps, rule.PatternMatch(slot, s.Copy(e), len(subs)))
		base := pc.size
		pc.size += len(subs)
		for i, sub := range subs {
			if err := pc.match(base+i, sub); err != nil {
				return err
			}
		}
		return nil

	default:
		return &CompileError{Field: "pattern", Message: fmt.Sprintf("%s is not allowed in a pattern", n), Pos: n.Pos}
	}
}

func (pc *patternCompiler) bindVar(n Node, slot int) error {
	if n.Name == "_" {
		return nil
	}
	if _, ok := pc.vars[n.Name]; ok {
		return &CompileError{Field: "pattern", Message: fmt.Sprintf("variable %q bound twice", n.Name), Pos: n.Pos}
	}
	pc.vars[n.Name] = slot
	return nil
}

// template builds the owned replacement template, mapping pattern variables
// to Argument(slot).
func (pc *patternCompiler) template(n Node) (term.Expr, error) {
	s := pc.t.store
	switch n.Kind {
	case NodeName:
		if slot, ok := pc.vars[n.Name]; ok {
			return s.Argument(uint64(slot)), nil
		}
		return pc.t.Term(n)
	case NodeU64, NodeString:
		return pc.t.Term(n)
	case NodeApply:
		acc, err := pc.template(n.Items[0])
		if err != nil {
			return 0, err
		}
		for _, item := range n.Items[1:] {
			arg, err := pc.template(item)
			if err != nil {
				s.Drop(acc)
				return 0, err
			}
			acc = s.Apply(acc, arg)
		}
		return acc, nil
	default:
		return 0, &CompileError{Field: "result", Message: fmt.Sprintf("%s is not allowed in a result", n), Pos: n.Pos}
	}
}

func (pc *patternCompiler) release() {
	for _, step := range pc.steps {
		if step.Kind == rule.StepPatternMatch {
			pc.t.store.Drop(step.ExpectedHead)
		}
	}
}
