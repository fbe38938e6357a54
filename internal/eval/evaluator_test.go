package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/termkernel/internal/rule"
	"github.com/roach88/termkernel/internal/term"
)

// natFixture holds zero, succ and doubler with
//
//	doubler zero = zero
//	doubler (succ x) = succ (succ (doubler x))
type natFixture struct {
	s       *term.Store
	rules   *rule.Repository
	ev      *Evaluator
	zero    term.Expr
	succ    term.Expr
	doubler term.Expr
}

func newNatFixture(t *testing.T, opts ...Option) *natFixture {
	t.Helper()
	s := term.NewStore()
	rules := rule.NewRepository(s)
	f := &natFixture{
		s:       s,
		rules:   rules,
		zero:    s.Axiom(),
		succ:    s.Axiom(),
		doubler: s.Declaration(),
	}

	require.NoError(t, rules.AddRule(rule.Rule{
		Pattern: rule.Pattern{
			Head:  s.Copy(f.doubler),
			Steps: []rule.PatternStep{rule.PullArgument(), rule.PatternMatch(0, s.Copy(f.zero), 0)},
		},
		Replacement: rule.Template(s.Copy(f.zero)),
	}))
	require.NoError(t, rules.AddRule(rule.Rule{
		Pattern: rule.Pattern{
			Head:  s.Copy(f.doubler),
			Steps: []rule.PatternStep{rule.PullArgument(), rule.PatternMatch(0, s.Copy(f.succ), 1)},
		},
		Replacement: rule.Template(f.app(f.succ, f.app(f.succ, f.app(f.doubler, s.Argument(1))))),
	}))

	f.ev = New(s, rules, opts...)
	return f
}

// app applies a copy of the weak head to the owned arguments.
func (f *natFixture) app(head term.Expr, args ...term.Expr) term.Expr {
	out := f.s.Copy(head)
	for _, a := range args {
		out = f.s.Apply(out, a)
	}
	return out
}

func (f *natFixture) close(t *testing.T) {
	t.Helper()
	f.ev.Close()
	f.rules.Close()
	f.s.DropAll(f.zero, f.succ, f.doubler)
	f.s.ClearOrphans()
	assert.True(t, f.s.Empty(), "store must be empty after teardown")
}

// =============================================================================
// Reduce
// =============================================================================

func TestReduce_DoublerZero(t *testing.T) {
	f := newNatFixture(t)
	defer f.close(t)

	x := f.app(f.doubler, f.s.Copy(f.zero))
	got := f.ev.Reduce(x)
	assert.Equal(t, f.zero, got)
	f.s.DropAll(x, got)
}

func TestReduce_DoublerSucc_HeadNormalOnly(t *testing.T) {
	f := newNatFixture(t)
	defer f.close(t)

	x := f.app(f.doubler, f.app(f.succ, f.app(f.succ, f.s.Copy(f.zero))))
	got := f.ev.Reduce(x)
	want := f.app(f.succ, f.app(f.succ, f.app(f.doubler, f.app(f.succ, f.s.Copy(f.zero)))))
	assert.Equal(t, want, got, "reduction stops at head-normal form")
	f.s.DropAll(x, got, want)
}

func TestReduce_NonDeclarationHeadUnchanged(t *testing.T) {
	f := newNatFixture(t)
	defer f.close(t)

	x := f.app(f.succ, f.app(f.doubler, f.s.Copy(f.zero)))
	got := f.ev.Reduce(x)
	assert.Equal(t, x, got)
	f.s.DropAll(x, got)
}

func TestReduce_NoMatchingRule(t *testing.T) {
	f := newNatFixture(t)
	defer f.close(t)

	other := f.s.Axiom()
	x := f.app(f.doubler, f.s.Copy(other))
	got := f.ev.Reduce(x)
	assert.Equal(t, x, got)
	f.s.DropAll(x, got, other)
}

func TestReduce_Idempotent(t *testing.T) {
	f := newNatFixture(t)
	defer f.close(t)

	inputs := []term.Expr{
		f.app(f.doubler, f.s.Copy(f.zero)),
		f.app(f.doubler, f.app(f.succ, f.s.Copy(f.zero))),
		f.app(f.doubler, f.s.Argument(0)),
		f.s.Copy(f.succ),
	}
	for _, x := range inputs {
		once := f.ev.Reduce(x)
		twice := f.ev.Reduce(once)
		assert.Equal(t, once, twice)
		f.s.DropAll(x, once, twice)
	}
}

func TestReduce_ReappliesUnconsumedArguments(t *testing.T) {
	s := term.NewStore()
	rules := rule.NewRepository(s)
	fDecl := s.Declaration()
	gDecl := s.Declaration()
	a := s.Axiom()

	// f = g, g x = x
	require.NoError(t, rules.AddRule(rule.Rule{Pattern: rule.LambdaPattern(s.Copy(fDecl), 0), Replacement: rule.Template(s.Copy(gDecl))}))
	require.NoError(t, rules.AddRule(rule.Rule{Pattern: rule.LambdaPattern(s.Copy(gDecl), 1), Replacement: rule.Template(s.Argument(0))}))
	ev := New(s, rules)

	x := s.Apply(s.Copy(fDecl), s.Copy(a))
	got := ev.Reduce(x)
	assert.Equal(t, a, got)

	s.DropAll(x, got, fDecl, gDecl, a)
	ev.Close()
	rules.Close()
	s.ClearOrphans()
	assert.True(t, s.Empty())
}

func TestReduce_FirstMatchingRuleWins(t *testing.T) {
	s := term.NewStore()
	rules := rule.NewRepository(s)
	fDecl := s.Declaration()
	a := s.Axiom()
	b := s.Axiom()

	require.NoError(t, rules.AddRule(rule.Rule{Pattern: rule.LambdaPattern(s.Copy(fDecl), 1), Replacement: rule.Template(s.Copy(a))}))
	require.NoError(t, rules.AddRule(rule.Rule{Pattern: rule.LambdaPattern(s.Copy(fDecl), 1), Replacement: rule.Template(s.Copy(b))}))
	ev := New(s, rules)

	x := s.Apply(s.Copy(fDecl), s.Argument(0))
	got := ev.Reduce(x)
	assert.Equal(t, a, got)

	s.DropAll(x, got, fDecl, a, b)
	ev.Close()
	rules.Close()
	s.ClearOrphans()
	assert.True(t, s.Empty())
}

func TestReduce_PatternMatchOnSpecificAxiom(t *testing.T) {
	s := term.NewStore()
	rules := rule.NewRepository(s)
	fDecl := s.Declaration()
	axA := s.Axiom()
	axB := s.Axiom()
	result := s.Axiom()

	// f A x = result x
	require.NoError(t, rules.AddRule(rule.Rule{
		Pattern: rule.Pattern{
			Head:  s.Copy(fDecl),
			Steps: []rule.PatternStep{rule.PullArgument(), rule.PullArgument(), rule.PatternMatch(0, s.Copy(axA), 0)},
		},
		Replacement: rule.Template(s.Apply(s.Copy(result), s.Argument(1))),
	}))
	ev := New(s, rules)

	x := s.Apply(s.Apply(s.Copy(fDecl), s.Copy(axA)), s.Argument(5))
	got := ev.Reduce(x)
	want := s.Apply(s.Copy(result), s.Argument(5))
	assert.Equal(t, want, got)

	y := s.Apply(s.Apply(s.Copy(fDecl), s.Copy(axB)), s.Argument(5))
	gotY := ev.Reduce(y)
	assert.Equal(t, y, gotY, "unrelated axiom must not rewrite")

	s.DropAll(x, got, want, y, gotY, fDecl, axA, axB, result)
	ev.Close()
	rules.Close()
	s.ClearOrphans()
	assert.True(t, s.Empty())
}

// =============================================================================
// Cache behaviour
// =============================================================================

func TestReduce_CacheInvalidatedByNewRule(t *testing.T) {
	s := term.NewStore()
	rules := rule.NewRepository(s)
	v := s.Declaration()
	a := s.Axiom()
	ev := New(s, rules)

	x := s.Apply(s.Copy(v), s.Argument(0))
	before := ev.Reduce(x)
	assert.Equal(t, x, before)

	require.NoError(t, rules.AddRule(rule.Rule{Pattern: rule.LambdaPattern(s.Copy(v), 1), Replacement: rule.Template(s.Copy(a))}))
	after := ev.Reduce(x)
	assert.Equal(t, a, after)

	s.DropAll(x, before, after, v, a)
	ev.Close()
	rules.Close()
	s.ClearOrphans()
	assert.True(t, s.Empty())
}

func TestReduce_CacheEvictedOnErase(t *testing.T) {
	f := newNatFixture(t)
	defer f.close(t)

	x := f.app(f.doubler, f.s.Copy(f.zero))
	got := f.ev.Reduce(x)
	require.Len(t, f.ev.memo, 1)

	f.s.DropAll(x, got)
	f.s.ClearOrphans()
	assert.Empty(t, f.ev.memo, "erasing the key evicts the entry")
}

func TestReduce_WithoutMemo(t *testing.T) {
	f := newNatFixture(t, WithMemo(false))
	defer f.close(t)

	x := f.app(f.doubler, f.s.Copy(f.zero))
	got := f.ev.Reduce(x)
	assert.Equal(t, f.zero, got)
	assert.Empty(t, f.ev.memo)
	f.s.DropAll(x, got)
}

func TestReduce_MaxSteps(t *testing.T) {
	s := term.NewStore()
	rules := rule.NewRepository(s)
	loop := s.Declaration()

	// loop = loop
	require.NoError(t, rules.AddRule(rule.Rule{Pattern: rule.LambdaPattern(s.Copy(loop), 0), Replacement: rule.Template(s.Copy(loop))}))
	ev := New(s, rules, WithMaxSteps(10))

	got := ev.Reduce(loop)
	assert.Equal(t, loop, got)
	assert.Empty(t, ev.memo, "truncated reductions are not cached")

	s.DropAll(got, loop)
	ev.Close()
	rules.Close()
	s.ClearOrphans()
	assert.True(t, s.Empty())
}

// =============================================================================
// IsLambdaLike
// =============================================================================

func TestIsLambdaLike(t *testing.T) {
	s := term.NewStore()
	rules := rule.NewRepository(s)
	add := s.Declaration()
	id := s.Declaration()
	zero := s.Axiom()
	succ := s.Axiom()

	// add zero y = y ; add (succ x) y = succ (add x y)
	require.NoError(t, rules.AddRule(rule.Rule{
		Pattern: rule.Pattern{
			Head:  s.Copy(add),
			Steps: []rule.PatternStep{rule.PullArgument(), rule.PullArgument(), rule.PatternMatch(0, s.Copy(zero), 0)},
		},
		Replacement: rule.Template(s.Argument(1)),
	}))
	require.NoError(t, rules.AddRule(rule.Rule{
		Pattern: rule.Pattern{
			Head:  s.Copy(add),
			Steps: []rule.PatternStep{rule.PullArgument(), rule.PullArgument(), rule.PatternMatch(0, s.Copy(succ), 1)},
		},
		Replacement: rule.Template(s.Apply(s.Copy(succ), s.Apply(s.Apply(s.Copy(add), s.Argument(2)), s.Argument(1)))),
	}))
	require.NoError(t, rules.AddRule(rule.Rule{Pattern: rule.LambdaPattern(s.Copy(id), 1), Replacement: rule.Template(s.Argument(0))}))
	ev := New(s, rules)

	addZero := s.Apply(s.Copy(add), s.Copy(zero))
	addSuccZero := s.Apply(s.Copy(add), s.Apply(s.Copy(succ), s.Copy(zero)))
	addZeroZero := s.Apply(s.Copy(addZero), s.Copy(zero))

	tests := []struct {
		name string
		expr term.Expr
		want bool
	}{
		{"add alone inspects its first argument", add, false},
		{"zero", zero, false},
		{"succ", succ, false},
		{"add zero", addZero, true},
		{"add (succ zero)", addSuccZero, true},
		{"add zero zero is saturated", addZeroZero, false},
		{"id alone", id, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ev.IsLambdaLike(tt.expr))
		})
	}

	s.DropAll(addZero, addSuccZero, addZeroZero, add, id, zero, succ)
	ev.Close()
	rules.Close()
	s.ClearOrphans()
	assert.True(t, s.Empty())
}
