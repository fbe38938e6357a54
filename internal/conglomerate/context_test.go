package conglomerate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/termkernel/internal/eval"
	"github.com/roach88/termkernel/internal/rule"
	"github.com/roach88/termkernel/internal/term"
)

// fixture holds axioms zero, succ, pair, a1 and a2 and declarations with
//
//	doubler zero = zero
//	doubler (succ x) = succ (succ (doubler x))
//	id x = x
type fixture struct {
	s     *term.Store
	rules *rule.Repository
	ev    *eval.Evaluator
	ctx   *Context

	zero, succ, pair, a1, a2 term.Expr
	doubler, id              term.Expr
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := term.NewStore()
	rules := rule.NewRepository(s)
	f := &fixture{
		s:       s,
		rules:   rules,
		zero:    s.Axiom(),
		succ:    s.Axiom(),
		pair:    s.Axiom(),
		a1:      s.Axiom(),
		a2:      s.Axiom(),
		doubler: s.Declaration(),
		id:      s.Declaration(),
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
	require.NoError(t, rules.AddRule(rule.Rule{
		Pattern:     rule.LambdaPattern(s.Copy(f.id), 1),
		Replacement: rule.Template(s.Argument(0)),
	}))

	f.ev = eval.New(s, rules)
	f.ctx = New(f.ev)
	return f
}

// app applies a copy of the weak head to the owned args.
func (f *fixture) app(head term.Expr, args ...term.Expr) term.Expr {
	return f.spine(f.s.Copy(head), args...)
}

// spine applies the owned head to the owned args.
func (f *fixture) spine(head term.Expr, args ...term.Expr) term.Expr {
	for _, a := range args {
		head = f.s.Apply(head, a)
	}
	return head
}

func (f *fixture) arg(i uint64) term.Expr {
	return f.s.Argument(i)
}

// sameClass asserts that the owned terms x and y reduce to the same term.
func (f *fixture) sameClass(t *testing.T, ctx *Context, x, y term.Expr) {
	t.Helper()
	rx, ry := ctx.Reduce(x), ctx.Reduce(y)
	assert.Equal(t, rx, ry, "%s vs %s", f.s.Format(rx, nil), f.s.Format(ry, nil))
	f.s.DropAll(x, y, rx, ry)
}

func (f *fixture) close(t *testing.T) {
	t.Helper()
	f.ctx.Close()
	f.ev.Close()
	f.rules.Close()
	f.s.DropAll(f.zero, f.succ, f.pair, f.a1, f.a2, f.doubler, f.id)
	f.s.ClearOrphans()
	assert.True(t, f.s.Empty(), "store must be empty after teardown")
}

// =============================================================================
// Open classes
// =============================================================================

func TestAssumeEqual_TwoArguments(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	require.NoError(t, f.ctx.AssumeEqual(f.arg(0), f.arg(1)))
	f.sameClass(t, f.ctx, f.arg(0), f.arg(1))

	x := f.arg(0)
	r := f.ctx.Reduce(x)
	assert.Equal(t, term.KindConglomerate, f.s.Kind(r))
	assert.Equal(t, uint64(0), f.s.ConglomerateIndex(r))
	f.s.DropAll(x, r)
}

func TestAssumeEqual_Chain(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	require.NoError(t, f.ctx.AssumeEqual(f.arg(0), f.arg(1)))
	require.NoError(t, f.ctx.AssumeEqual(f.arg(1), f.arg(2)))

	f.sameClass(t, f.ctx, f.arg(0), f.arg(2))
	assert.Equal(t, 1, f.ctx.ClassCount())
}

func TestAssumeEqual_UnrelatedTermsUntouched(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	require.NoError(t, f.ctx.AssumeEqual(f.arg(0), f.arg(1)))

	x := f.arg(2)
	r := f.ctx.Reduce(x)
	assert.Equal(t, x, r)
	f.s.DropAll(x, r)
}

// =============================================================================
// Axiomatic classes
// =============================================================================

func TestAssumeEqual_AxiomaticExpansion(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	require.NoError(t, f.ctx.AssumeEqual(f.arg(0), f.app(f.pair, f.arg(1), f.arg(2))))
	f.sameClass(t, f.ctx, f.arg(0), f.app(f.pair, f.arg(1), f.arg(2)))
	assert.Equal(t, 3, f.ctx.ClassCount(), "one class plus one per argument")
}

func TestAssumeEqual_AxiomaticBothSides(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	require.NoError(t, f.ctx.AssumeEqual(
		f.app(f.pair, f.arg(0), f.arg(1)),
		f.app(f.pair, f.arg(2), f.arg(3)),
	))
	f.sameClass(t, f.ctx, f.arg(0), f.arg(2))
	f.sameClass(t, f.ctx, f.arg(1), f.arg(3))
}

func TestAssumeEqual_RewritesThroughAssumption(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	require.NoError(t, f.ctx.AssumeEqual(f.arg(0), f.s.Copy(f.zero)))

	x := f.app(f.doubler, f.arg(0))
	r := f.ctx.Reduce(x)
	assert.Equal(t, f.zero, r)
	f.s.DropAll(x, r)
}

func TestAssumeEqual_MergeQueuesSubClasses(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	require.NoError(t, f.ctx.AssumeEqual(f.arg(0), f.app(f.succ, f.arg(1))))
	require.NoError(t, f.ctx.AssumeEqual(f.arg(2), f.app(f.succ, f.arg(3))))
	require.NoError(t, f.ctx.AssumeEqual(f.arg(0), f.arg(2)))

	f.sameClass(t, f.ctx, f.arg(1), f.arg(3))
	f.sameClass(t, f.ctx, f.arg(0), f.arg(2))

	// The merged group is represented by its lowest index.
	x := f.arg(3)
	r := f.ctx.Reduce(x)
	require.Equal(t, term.KindConglomerate, f.s.Kind(r))
	assert.Equal(t, uint64(1), f.s.ConglomerateIndex(r))
	f.s.DropAll(x, r)
}

// =============================================================================
// Failures
// =============================================================================

func TestAssumeEqual_DistinctAxiomsMismatch(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	err := f.ctx.AssumeEqual(f.s.Copy(f.a1), f.s.Copy(f.a2))
	require.Error(t, err)
	assert.True(t, IsMismatchError(err))
}

func TestAssumeEqual_ArityMismatch(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	err := f.ctx.AssumeEqual(f.app(f.pair, f.arg(0)), f.app(f.pair, f.arg(1), f.arg(2)))
	require.Error(t, err)
	assert.True(t, IsMismatchError(err))
}

func TestAssumeEqual_MergedMismatch(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	require.NoError(t, f.ctx.AssumeEqual(f.arg(0), f.s.Copy(f.zero)))
	require.NoError(t, f.ctx.AssumeEqual(f.arg(1), f.app(f.succ, f.arg(2))))
	err := f.ctx.AssumeEqual(f.arg(0), f.arg(1))
	require.Error(t, err)
	assert.True(t, IsMismatchError(err))
}

func TestAssumeEqual_AxiomaticSelfReferenceIsCycle(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	err := f.ctx.AssumeEqual(f.arg(0), f.app(f.succ, f.arg(0)))
	require.Error(t, err)
	assert.True(t, IsCycleError(err))
}

func TestAssumeEqual_CycleAcrossAssumptions(t *testing.T) {
	tests := []struct {
		name    string
		assumes func(f *fixture) [][2]term.Expr
	}{
		{
			name: "mutual succ",
			assumes: func(f *fixture) [][2]term.Expr {
				return [][2]term.Expr{
					{f.arg(0), f.app(f.succ, f.arg(1))},
					{f.arg(1), f.app(f.succ, f.arg(0))},
				}
			},
		},
		{
			name: "mutual pair",
			assumes: func(f *fixture) [][2]term.Expr {
				return [][2]term.Expr{
					{f.arg(0), f.app(f.pair, f.arg(1), f.s.Copy(f.a1))},
					{f.arg(1), f.app(f.pair, f.arg(0), f.s.Copy(f.a1))},
				}
			},
		},
		{
			name: "merge of open and axiomatic class",
			assumes: func(f *fixture) [][2]term.Expr {
				return [][2]term.Expr{
					{f.arg(0), f.app(f.succ, f.arg(1))},
					{f.arg(2), f.app(f.succ, f.arg(0))},
					{f.arg(1), f.arg(2)},
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			defer f.close(t)

			pairs := tt.assumes(f)
			last := len(pairs) - 1
			for i, p := range pairs[:last] {
				require.NoError(t, f.ctx.AssumeEqual(p[0], p[1]), "assumption %d", i)
			}
			err := f.ctx.AssumeEqual(pairs[last][0], pairs[last][1])
			require.Error(t, err)
			assert.True(t, IsCycleError(err), "got %v", err)
		})
	}
}

func TestAssumeEqual_SharedSubClassIsNotACycle(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	require.NoError(t, f.ctx.AssumeEqual(f.arg(0), f.app(f.succ, f.arg(1))))
	require.NoError(t, f.ctx.AssumeEqual(f.arg(2), f.app(f.succ, f.arg(1))))
	f.sameClass(t, f.ctx, f.arg(0), f.arg(2))

	x := f.app(f.pair, f.arg(0), f.arg(2))
	r := f.ctx.Reduce(x)
	c1 := f.s.Conglomerate(1)
	want := f.app(f.pair, f.app(f.succ, f.s.Copy(c1)), f.app(f.succ, f.s.Copy(c1)))
	assert.Equal(t, want, r, "%s", f.s.Format(r, nil))
	f.s.DropAll(x, r, c1, want)
}

func TestAssumeEqual_CongruentClassesMerge(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	require.NoError(t, f.ctx.AssumeEqual(f.arg(0), f.app(f.succ, f.arg(1))))
	require.NoError(t, f.ctx.AssumeEqual(f.arg(2), f.app(f.succ, f.arg(3))))
	assert.Equal(t, 4, f.ctx.ClassCount())

	require.NoError(t, f.ctx.AssumeEqual(f.arg(1), f.arg(3)))
	assert.Equal(t, 2, f.ctx.ClassCount(), "succ C1 and succ C3 fold together")

	x := f.arg(2)
	r := f.ctx.Reduce(x)
	head, args := f.s.Unfold(r)
	assert.Equal(t, f.succ, head)
	require.Len(t, args, 1)
	assert.Equal(t, uint64(1), f.s.ConglomerateIndex(args[0]))
	f.s.DropAll(x, r)
}

func TestAssumeEqual_ApplicationCycle(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	err := f.ctx.AssumeEqual(f.spine(f.arg(0), f.arg(1)), f.app(f.succ, f.arg(0)))
	require.Error(t, err)
	assert.True(t, IsCycleError(err))
}

func TestAssumeEqual_ApplicationWithoutCycle(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	require.NoError(t, f.ctx.AssumeEqual(f.spine(f.arg(0), f.arg(1)), f.app(f.succ, f.arg(1))))
	f.sameClass(t, f.ctx, f.spine(f.arg(0), f.arg(1)), f.app(f.succ, f.arg(1)))
}

func TestAssumeEqual_PendingComputation(t *testing.T) {
	tests := []struct {
		name string
		lhs  func(f *fixture) term.Expr
	}{
		{"doubler", func(f *fixture) term.Expr { return f.s.Copy(f.doubler) }},
		{"id", func(f *fixture) term.Expr { return f.s.Copy(f.id) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			defer f.close(t)

			err := f.ctx.AssumeEqual(tt.lhs(f), f.arg(0))
			require.Error(t, err)
			assert.True(t, IsPendingError(err))
		})
	}
}

func TestAssumeEqual_StuckSaturatedComputationAccepted(t *testing.T) {
	tests := []struct {
		name string
		rhs  func(f *fixture) term.Expr
	}{
		{"argument", func(f *fixture) term.Expr { return f.arg(0) }},
		{"zero", func(f *fixture) term.Expr { return f.s.Copy(f.zero) }},
		{"succ", func(f *fixture) term.Expr { return f.app(f.succ, f.arg(1)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			defer f.close(t)

			require.NoError(t, f.ctx.AssumeEqual(f.app(f.doubler, f.arg(0)), tt.rhs(f)))
			f.sameClass(t, f.ctx, f.app(f.doubler, f.arg(0)), tt.rhs(f))
		})
	}
}

func TestAssumeEqual_FailurePoisonsContext(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	first := f.ctx.AssumeEqual(f.s.Copy(f.a1), f.s.Copy(f.a2))
	require.Error(t, first)

	second := f.ctx.AssumeEqual(f.arg(0), f.arg(1))
	assert.Same(t, first, second)
	assert.Equal(t, first, f.ctx.Err())
}

// =============================================================================
// Reduce, elimination and cloning
// =============================================================================

func TestReduce_NormalizesInsideArguments(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	x := f.app(f.pair, f.app(f.doubler, f.s.Copy(f.zero)), f.s.Copy(f.a1))
	want := f.app(f.pair, f.s.Copy(f.zero), f.s.Copy(f.a1))

	got := f.ctx.Reduce(x)
	assert.Equal(t, want, got)

	again := f.ctx.Reduce(got)
	assert.Equal(t, got, again, "reduce is idempotent")
	f.s.DropAll(x, want, got, again)
}

func TestEliminateConglomerates(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	require.NoError(t, f.ctx.AssumeEqual(f.arg(0), f.app(f.succ, f.arg(1))))

	x := f.arg(0)
	reduced := f.ctx.Reduce(x)
	assert.True(t, f.s.ContainsKind(reduced, term.KindConglomerate))

	clean := f.ctx.EliminateConglomerates(f.s.Copy(reduced))
	assert.False(t, f.s.ContainsKind(clean, term.KindConglomerate))

	want := f.app(f.succ, f.arg(1))
	assert.Equal(t, want, clean)

	back := f.ctx.Reduce(clean)
	assert.Equal(t, reduced, back)
	f.s.DropAll(x, reduced, clean, want, back)
}

func TestEliminateConglomerates_AxiomaticChain(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	require.NoError(t, f.ctx.AssumeEqual(f.arg(0), f.app(f.succ, f.arg(1))))
	require.NoError(t, f.ctx.AssumeEqual(f.arg(1), f.s.Copy(f.zero)))

	x := f.arg(0)
	reduced := f.ctx.Reduce(x)
	clean := f.ctx.EliminateConglomerates(reduced)

	want := f.app(f.succ, f.s.Copy(f.zero))
	assert.Equal(t, want, clean)
	f.s.DropAll(x, clean, want)
}

func TestClone_Independent(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	require.NoError(t, f.ctx.AssumeEqual(f.arg(0), f.s.Copy(f.zero)))

	cl := f.ctx.Clone()
	require.NoError(t, cl.AssumeEqual(f.arg(1), f.app(f.succ, f.s.Copy(f.zero))))

	x := f.arg(1)
	inClone := cl.Reduce(x)
	inOrig := f.ctx.Reduce(x)
	want := f.app(f.succ, f.s.Copy(f.zero))
	assert.Equal(t, want, inClone)
	assert.Equal(t, x, inOrig)

	f.sameClass(t, cl, f.arg(0), f.s.Copy(f.zero))
	f.s.DropAll(x, inClone, inOrig, want)
	cl.Close()
}

func TestDescribe(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	require.NoError(t, f.ctx.AssumeEqual(f.arg(0), f.app(f.succ, f.arg(1))))

	out := f.ctx.Describe(nil)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "C0:")
	assert.Contains(t, lines[0], "$0")
	assert.Contains(t, lines[1], "C1:")
	assert.Contains(t, lines[1], "$1")
}
