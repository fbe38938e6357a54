package harness

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/termkernel/internal/compiler"
	"github.com/roach88/termkernel/internal/conglomerate"
	"github.com/roach88/termkernel/internal/ir"
	"github.com/roach88/termkernel/internal/solver"
	"github.com/roach88/termkernel/internal/term"
)

type pair [2]compiler.Node

// failures collects step failure messages.
type failures []string

func (f *failures) add(format string, args ...any) {
	*f = append(*f, fmt.Sprintf(format, args...))
}

func (f failures) apply(res *StepResult) {
	if len(f) == 0 {
		res.Status = StatusOK
		return
	}
	res.Status = StatusFail
	res.Detail = strings.Join(f, "; ")
}

func failed(input ir.Value, err error) StepResult {
	return StepResult{Status: StatusFail, Input: input, Detail: err.Error()}
}

func parsePairs(field string, raw [][]any) ([]pair, error) {
	out := make([]pair, len(raw))
	for i, p := range raw {
		for j := range 2 {
			n, err := compiler.ParseNode(p[j])
			if err != nil {
				return nil, fmt.Errorf("%s[%d][%d]: %w", field, i, j, err)
			}
			out[i][j] = n
		}
	}
	return out, nil
}

func pairsValue(pairs []pair) ir.Array {
	out := make(ir.Array, len(pairs))
	for i, p := range pairs {
		out[i] = ir.Array{p[0].Value(), p[1].Value()}
	}
	return out
}

// pair builds both sides of p as owned terms.
func (s *Session) pair(p pair) (term.Expr, term.Expr, error) {
	lhs, err := s.theory.Term(p[0])
	if err != nil {
		return 0, 0, err
	}
	rhs, err := s.theory.Term(p[1])
	if err != nil {
		s.store.Drop(lhs)
		return 0, 0, err
	}
	return lhs, rhs, nil
}

// Normalize returns the owned head normal form of the weak handle x, or its
// full normal form when full is set.
func (s *Session) Normalize(x term.Expr, full bool) term.Expr {
	if !full {
		return s.ev.Reduce(x)
	}
	c := conglomerate.New(s.ev)
	defer c.Close()
	return c.Reduce(x)
}

func reduceStep(sess *Session, step *Step) StepResult {
	st := sess.Store()
	n, err := compiler.ParseNode(step.Reduce)
	if err != nil {
		return failed(nil, fmt.Errorf("reduce: %w", err))
	}
	x, err := sess.theory.Term(n)
	if err != nil {
		return failed(n.Value(), err)
	}
	got := sess.Normalize(x, step.Full)
	st.Drop(x)
	defer st.Drop(got)

	res := StepResult{Input: n.Value(), Output: sess.Value(got)}
	var fails failures
	if step.Expect != nil {
		want, _, err := sess.Term(step.Expect)
		if err != nil {
			fails.add("expect: %v", err)
		} else {
			if got != want {
				fails.add("expected %s, got %s", sess.Format(want), sess.Format(got))
			}
			st.Drop(want)
		}
	}
	fails.apply(&res)
	return res
}

// assumeErrorMatches reports whether err is the kind of failure named by
// want.
func assumeErrorMatches(want string, err error) bool {
	switch want {
	case ExpectCycle:
		return conglomerate.IsCycleError(err)
	case ExpectMismatch:
		return conglomerate.IsMismatchError(err)
	case ExpectPending:
		return conglomerate.IsPendingError(err)
	}
	return false
}

func assumeStep(sess *Session, step *Step) StepResult {
	st := sess.Store()
	assume, err := parsePairs("assume", step.Assume)
	if err != nil {
		return failed(nil, err)
	}
	equal, err := parsePairs("equal", step.Equal)
	if err != nil {
		return failed(nil, err)
	}
	distinct, err := parsePairs("distinct", step.Distinct)
	if err != nil {
		return failed(nil, err)
	}

	input := ir.Object{"assume": pairsValue(assume)}
	if len(equal) > 0 {
		input["equal"] = pairsValue(equal)
	}
	if len(distinct) > 0 {
		input["distinct"] = pairsValue(distinct)
	}
	res := StepResult{Input: input}

	c := conglomerate.New(sess.ev)
	defer c.Close()

	var assumeErr error
	for _, p := range assume {
		lhs, rhs, err := sess.pair(p)
		if err != nil {
			return failed(input, err)
		}
		if assumeErr = c.AssumeEqual(lhs, rhs); assumeErr != nil {
			break
		}
	}

	var fails failures
	switch {
	case step.ExpectError != "":
		switch {
		case assumeErr == nil:
			fails.add("expected %s error, assumptions are consistent", step.ExpectError)
		case !assumeErrorMatches(step.ExpectError, assumeErr):
			fails.add("expected %s error, got: %v", step.ExpectError, assumeErr)
		default:
			res.Output = ir.Object{"error": ir.String(step.ExpectError)}
		}
		fails.apply(&res)
		return res
	case assumeErr != nil:
		fails.add("assume: %v", assumeErr)
		fails.apply(&res)
		return res
	}

	check := func(p pair, wantEqual bool) {
		lhs, rhs, err := sess.pair(p)
		if err != nil {
			fails.add("%v", err)
			return
		}
		a, b := c.Reduce(lhs), c.Reduce(rhs)
		switch {
		case wantEqual && a != b:
			fails.add("expected %s = %s, got %s and %s", p[0], p[1], sess.Format(a), sess.Format(b))
		case !wantEqual && a == b:
			fails.add("expected %s != %s, both are %s", p[0], p[1], sess.Format(a))
		}
		st.DropAll(lhs, rhs, a, b)
	}
	for _, p := range equal {
		check(p, true)
	}
	for _, p := range distinct {
		check(p, false)
	}

	res.Output = ir.Object{"classes": describeLines(c.Describe(sess.theory.Namer()))}
	fails.apply(&res)
	return res
}

func describeLines(desc string) ir.Array {
	desc = strings.TrimSuffix(desc, "\n")
	if desc == "" {
		return ir.Array{}
	}
	return ir.Strings(strings.Split(desc, "\n"))
}

func (h *Harness) solveStep(ctx context.Context, sess *Session, step *Step) (StepResult, error) {
	st := sess.Store()
	th := sess.theory
	sv := step.Solve

	equations, err := parsePairs("solve.equations", sv.Equations)
	if err != nil {
		return failed(nil, err), nil
	}
	assume, err := parsePairs("solve.assume", sv.Assume)
	if err != nil {
		return failed(nil, err), nil
	}
	input := ir.Object{
		"indeterminates": ir.Strings(sv.Indeterminates),
		"depth":          ir.Int(sv.Depth),
		"equations":      pairsValue(equations),
	}
	if len(assume) > 0 {
		input["assume"] = pairsValue(assume)
	}

	m := solver.NewManager(sess.ev,
		solver.WithNamer(th.Namer()),
		solver.WithMaxRounds(h.maxRounds),
	)
	closed := false
	closeManager := func() {
		if !closed {
			m.Close()
			closed = true
		}
	}
	defer closeManager()

	decls := make([]term.Expr, 0, len(sv.Indeterminates))
	for _, name := range sv.Indeterminates {
		decl := st.Declaration()
		if err := th.Bind(name, st.Copy(decl)); err != nil {
			st.Drop(decl)
			st.DropAll(decls...)
			return failed(input, err), nil
		}
		decls = append(decls, decl)
	}
	cid, err := m.CreateContext(decls...)
	if err != nil {
		return failed(input, err), nil
	}

	stack := m.EmptyStack()
	for range sv.Depth {
		stack = stack.Extend()
	}
	for _, p := range assume {
		lhs, rhs, err := sess.pair(p)
		if err != nil {
			return failed(input, err), nil
		}
		next, err := stack.ExtendByAssumption(lhs, rhs)
		if err != nil {
			return failed(input, fmt.Errorf("assume: %w", err)), nil
		}
		stack = next
	}

	futures := make([]*solver.Future, 0, len(equations))
	for _, p := range equations {
		lhs, rhs, err := sess.pair(p)
		if err != nil {
			return failed(input, err), nil
		}
		futures = append(futures, m.Solve(cid, solver.Equation{LHS: lhs, RHS: rhs, Stack: stack}))
	}

	runErr := m.Run(ctx)
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	closeManager()

	res := StepResult{Input: input}
	var fails failures
	if runErr != nil {
		fails.add("solve: %v", runErr)
	}

	state := StateSolved
	for _, f := range futures {
		err := f.Err()
		switch {
		case solver.IsFailed(err):
			state = StateFailed
		case solver.IsStalled(err) && state == StateSolved:
			state = StateStalled
		}
		if err != nil {
			if info, ok := m.ErrorInfo(f.ID()); ok {
				res.Diagnostics = append(res.Diagnostics, info)
			}
		}
	}

	defs := ir.Object{}
	got := make(map[string]term.Expr)
	defer func() {
		for _, e := range got {
			st.Drop(e)
		}
	}()
	for _, name := range sv.Indeterminates {
		decl, _ := th.Lookup(name)
		if e, ok := sess.definition(decl); ok {
			got[name] = e
			defs[name] = sess.Value(e)
		}
	}
	res.Output = ir.Object{"state": ir.String(state), "definitions": defs}

	want := step.ExpectState
	if want == "" {
		want = StateSolved
	}
	if state != want {
		fails.add("expected state %s, got %s", want, state)
	}
	for _, name := range slices.Sorted(maps.Keys(step.ExpectDefinitions)) {
		e, ok := got[name]
		if !ok {
			fails.add("%s is undefined", name)
			continue
		}
		w, _, err := sess.Term(step.ExpectDefinitions[name])
		if err != nil {
			fails.add("expect_definitions.%s: %v", name, err)
			continue
		}
		if w != e {
			fails.add("expected %s := %s, got %s", name, sess.Format(w), sess.Format(e))
		}
		st.Drop(w)
	}
	fails.apply(&res)
	return res, nil
}

// definition returns the owned full normal form of decl applied to its
// pattern's arguments, or false if decl has no rule.
func (s *Session) definition(decl term.Expr) (term.Expr, bool) {
	rules := s.rules.Rules(decl)
	if len(rules) == 0 {
		return 0, false
	}
	x := s.store.Copy(decl)
	for i := range rules[0].Pattern.Arity() {
		x = s.store.Apply(x, s.store.Argument(uint64(i)))
	}
	e := s.Normalize(x, true)
	s.store.Drop(x)
	return e, true
}
