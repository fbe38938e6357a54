package solver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/termkernel/internal/eval"
	"github.com/roach88/termkernel/internal/rule"
	"github.com/roach88/termkernel/internal/term"
)

type managerFixture struct {
	s     *term.Store
	rules *rule.Repository
	ev    *eval.Evaluator
	m     *Manager
	held  []term.Expr
}

func newManagerFixture(t *testing.T, opts ...ManagerOption) *managerFixture {
	t.Helper()
	s := term.NewStore()
	rules := rule.NewRepository(s)
	ev := eval.New(s, rules)
	return &managerFixture{s: s, rules: rules, ev: ev, m: NewManager(ev, opts...)}
}

func (f *managerFixture) hold(e term.Expr) term.Expr {
	f.held = append(f.held, e)
	return e
}

func (f *managerFixture) stack(depth int) Stack {
	st := f.m.EmptyStack()
	for i := 0; i < depth; i++ {
		st = st.Extend()
	}
	return st
}

func (f *managerFixture) close(t *testing.T) {
	t.Helper()
	f.m.Close()
	f.ev.Close()
	f.rules.Close()
	f.s.DropAll(f.held...)
	f.s.ClearOrphans()
	assert.True(t, f.s.Empty(), "store must be empty after teardown")
}

func TestManager_JointFixpoint(t *testing.T) {
	f := newManagerFixture(t)
	s := f.s
	v1, v2 := f.hold(s.Declaration()), f.hold(s.Declaration())
	ax := f.hold(s.Axiom())

	ctx, err := f.m.CreateContext(s.Copy(v1), s.Copy(v2))
	require.NoError(t, err)

	first := f.m.Solve(ctx, Equation{
		LHS:   s.Apply(s.Copy(v1), s.Argument(0)),
		RHS:   s.Apply(s.Copy(v2), s.Argument(1)),
		Stack: f.stack(2),
	})
	second := f.m.Solve(ctx, Equation{
		LHS:   s.Apply(s.Copy(v2), s.Argument(0)),
		RHS:   s.Copy(ax),
		Stack: f.stack(1),
	})
	assert.False(t, first.Done())

	require.NoError(t, f.m.Run(context.Background()))
	assert.True(t, first.Done())
	assert.True(t, second.Done())
	assert.NoError(t, first.Err())
	assert.NoError(t, second.Err())
	assert.Equal(t, 0, f.m.Pending())

	x := s.Apply(s.Copy(v1), s.Copy(ax))
	got := f.ev.Reduce(x)
	assert.Equal(t, ax, got)
	s.DropAll(x, got)
	f.close(t)
}

func TestManager_CloseReportsStalled(t *testing.T) {
	f := newManagerFixture(t)
	s := f.s
	v1, v2 := f.hold(s.Declaration()), f.hold(s.Declaration())

	ctx, err := f.m.CreateContext(s.Copy(v1))
	require.NoError(t, err)
	require.NoError(t, f.m.RegisterIndeterminate(ctx, s.Copy(v2)))

	fut := f.m.Solve(ctx, Equation{
		LHS:   s.Apply(s.Copy(v1), s.Argument(0)),
		RHS:   s.Apply(s.Copy(v2), s.Argument(1)),
		Stack: f.stack(2),
	})
	require.NoError(t, f.m.Run(context.Background()))
	assert.False(t, fut.Done(), "stalled equations stay open until close")

	live, ok := f.m.ErrorInfo(fut.ID())
	require.True(t, ok)
	assert.Equal(t, "pending", live.Primary.Status)

	f.m.Close()
	require.True(t, fut.Done())
	assert.True(t, IsStalled(fut.Err()))

	info, ok := f.m.ErrorInfo(fut.ID())
	require.True(t, ok)
	assert.False(t, info.PrimaryFailed)
	assert.Equal(t, []int{0}, info.Primary.Path)

	late := f.m.Solve(ctx, Equation{LHS: s.Copy(v1), RHS: s.Copy(v2), Stack: f.stack(0)})
	require.True(t, late.Done())
	var ee *EquationError
	require.True(t, errors.As(late.Err(), &ee))
	assert.Equal(t, ErrCodeClosed, ee.Code)
	f.close(t)
}

func TestManager_FailureDiagnostics(t *testing.T) {
	names := map[term.Expr]string{}
	f := newManagerFixture(t, WithNamer(func(e term.Expr) (string, bool) {
		n, ok := names[e]
		return n, ok
	}))
	s := f.s
	pair := f.hold(s.Axiom())
	a, b := f.hold(s.Axiom()), f.hold(s.Axiom())
	names[pair], names[a], names[b] = "pair", "a", "b"

	ctx, err := f.m.CreateContext()
	require.NoError(t, err)
	fut := f.m.Solve(ctx, Equation{
		LHS:   s.Apply(s.Apply(s.Copy(pair), s.Copy(a)), s.Copy(a)),
		RHS:   s.Apply(s.Apply(s.Copy(pair), s.Copy(a)), s.Copy(b)),
		Stack: f.stack(0),
	})
	require.NoError(t, f.m.Run(context.Background()))
	require.True(t, fut.Done())
	assert.True(t, IsFailed(fut.Err()))

	info, ok := f.m.ErrorInfo(fut.ID())
	require.True(t, ok)
	assert.False(t, info.PrimaryFailed, "the submitted equation was exploded")
	assert.Equal(t, "pair a a", info.Primary.LHS)
	require.Len(t, info.Failures, 1)
	assert.Equal(t, "a", info.Failures[0].LHS)
	assert.Equal(t, "b", info.Failures[0].RHS)
	assert.Equal(t, []int{2, 0}, info.Failures[0].Path)
	f.close(t)
}

func TestManager_RoundLimit(t *testing.T) {
	f := newManagerFixture(t, WithMaxRounds(1))
	s := f.s
	v := f.hold(s.Declaration())
	ax := f.hold(s.Axiom())

	ctx, err := f.m.CreateContext(s.Copy(v))
	require.NoError(t, err)
	f.m.Solve(ctx, Equation{LHS: s.Copy(v), RHS: s.Copy(ax), Stack: f.stack(0)})

	err = f.m.Run(context.Background())
	var re *RoundsExceededError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 1, re.Limit)
	f.close(t)
}

func TestManager_RunCancelled(t *testing.T) {
	f := newManagerFixture(t)
	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.m.Run(cctx), context.Canceled)
	f.close(t)
}

func TestManager_CreateContextRejectsNonDeclaration(t *testing.T) {
	f := newManagerFixture(t)
	s := f.s
	ax := f.hold(s.Axiom())

	_, err := f.m.CreateContext(s.Copy(ax))
	assert.ErrorIs(t, err, rule.ErrNotDeclaration)
	f.close(t)
}
