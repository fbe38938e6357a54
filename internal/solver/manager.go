package solver

import (
	"context"
	"log/slog"

	"github.com/roach88/termkernel/internal/eval"
	"github.com/roach88/termkernel/internal/term"
)

// DefaultMaxRounds bounds Manager.Run. Zero means unbounded.
const DefaultMaxRounds = 0

// ContextID names an indeterminate set created by Manager.CreateContext.
type ContextID int

// EquationID names an equation submitted with Manager.Solve.
type EquationID int

// Future is the eventual result of Manager.Solve: nil once the equation is
// solved, or an *EquationError once it failed or the manager closed.
type Future struct {
	id   EquationID
	done bool
	err  error
}

// ID returns the equation's identifier.
func (f *Future) ID() EquationID {
	return f.id
}

// Done reports whether the result is known.
func (f *Future) Done() bool {
	return f.done
}

// Err returns the result. It is nil while the future is not done.
func (f *Future) Err() error {
	return f.err
}

func (f *Future) resolve(err error) {
	f.done = true
	f.err = err
}

type entry struct {
	id     EquationID
	ctx    ContextID
	solver *Solver
	future *Future
}

// Manager drives solvers over shared indeterminate sets.
type Manager struct {
	store     *term.Store
	ev        *eval.Evaluator
	frames    *Frames
	names     term.Namer
	maxRounds int

	contexts []*Indeterminates
	active   []*entry
	finished []*entry
	infos    map[EquationID]ErrorInfo
	nextID   EquationID
	closed   bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithNamer sets the names used in diagnostics.
func WithNamer(names term.Namer) ManagerOption {
	return func(m *Manager) {
		m.names = names
	}
}

// WithMaxRounds bounds the rounds a single Run may take.
//
// Default: 0 (DefaultMaxRounds, unbounded)
func WithMaxRounds(n int) ManagerOption {
	return func(m *Manager) {
		m.maxRounds = n
	}
}

// NewManager creates a manager whose definitions become rules of ev.
func NewManager(ev *eval.Evaluator, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:     ev.Store(),
		ev:        ev,
		frames:    NewFrames(ev),
		maxRounds: DefaultMaxRounds,
		infos:     make(map[EquationID]ErrorInfo),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EmptyStack returns a stack with no bound arguments or assumptions. It stays
// valid until the manager closes.
func (m *Manager) EmptyStack() Stack {
	return m.frames.Empty()
}

// CreateContext consumes the owned indeterminates and returns a new set
// holding them.
func (m *Manager) CreateContext(indeterminates ...term.Expr) (ContextID, error) {
	set := NewIndeterminates(m.ev)
	id := ContextID(len(m.contexts))
	m.contexts = append(m.contexts, set)
	for i, decl := range indeterminates {
		if err := set.Add(decl); err != nil {
			m.store.DropAll(indeterminates[i+1:]...)
			return id, err
		}
	}
	return id, nil
}

// RegisterIndeterminate consumes decl and adds it to the set ctx.
func (m *Manager) RegisterIndeterminate(ctx ContextID, decl term.Expr) error {
	return m.contexts[ctx].Add(decl)
}

// Interface returns the solver interface of the set ctx.
func (m *Manager) Interface(ctx ContextID) *Indeterminates {
	return m.contexts[ctx]
}

// Solve submits eq, taking ownership of both sides, against the set ctx.
func (m *Manager) Solve(ctx ContextID, eq Equation) *Future {
	id := m.nextID
	m.nextID++
	f := &Future{id: id}
	if m.closed {
		m.store.DropAll(eq.LHS, eq.RHS)
		f.resolve(&EquationError{Code: ErrCodeClosed, EquationID: id, Message: "manager is closed"})
		return f
	}
	m.active = append(m.active, &entry{
		id:     id,
		ctx:    ctx,
		solver: New(m.contexts[ctx], eq),
		future: f,
	})
	return f
}

// TryToMakeProgress runs one round over every live solver and resolves the
// futures of those that finished. Failed solvers keep running so their
// diagnostics include everything derivable.
func (m *Manager) TryToMakeProgress() bool {
	progress := false
	remaining := m.active[:0]
	for _, e := range m.active {
		if e.solver.TryToMakeProgress() {
			progress = true
		}
		switch e.solver.State() {
		case StateSolved:
			e.future.resolve(nil)
			e.solver.Close()
			slog.Debug("equation solved", "equation", e.id)
		case StateFailed:
			e.future.resolve(&EquationError{
				Code:       ErrCodeFailed,
				EquationID: e.id,
				Message:    "equation has no solution",
			})
			m.finished = append(m.finished, e)
			slog.Debug("equation failed", "equation", e.id)
		default:
			remaining = append(remaining, e)
		}
	}
	m.active = remaining

	for _, e := range m.finished {
		if e.solver.TryToMakeProgress() {
			progress = true
		}
	}
	return progress
}

// Run calls TryToMakeProgress until no solver progresses. It stops early when
// ctx is cancelled or the round limit is reached.
func (m *Manager) Run(ctx context.Context) error {
	for rounds := 1; ; rounds++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !m.TryToMakeProgress() {
			return nil
		}
		if m.maxRounds > 0 && rounds >= m.maxRounds {
			return &RoundsExceededError{Rounds: rounds, Limit: m.maxRounds}
		}
	}
}

// Pending returns the number of unresolved equations.
func (m *Manager) Pending() int {
	return len(m.active)
}

// Close resolves every unresolved equation as stalled, records diagnostics
// for failed and stalled equations, and releases all solver state.
func (m *Manager) Close() {
	if m.closed {
		return
	}
	m.closed = true
	stalled := len(m.active)
	for _, e := range m.active {
		m.infos[e.id] = e.solver.ErrorInfo(m.names)
		e.future.resolve(&EquationError{
			Code:       ErrCodeStalled,
			EquationID: e.id,
			Message:    "no strategy applies",
		})
		e.solver.Close()
	}
	for _, e := range m.finished {
		m.infos[e.id] = e.solver.ErrorInfo(m.names)
		e.solver.Close()
	}
	failed := len(m.finished)
	m.active, m.finished = nil, nil

	for _, set := range m.contexts {
		set.Close()
	}
	m.frames.Close()
	slog.Info("solver manager closed", "equations", int(m.nextID), "stalled", stalled, "failed", failed)
}

// ErrorInfo returns the diagnostic of an equation that failed or is still
// unresolved. Solved equations have none.
func (m *Manager) ErrorInfo(id EquationID) (ErrorInfo, bool) {
	if info, ok := m.infos[id]; ok {
		return info, true
	}
	for _, list := range [][]*entry{m.finished, m.active} {
		for _, e := range list {
			if e.id == id {
				return e.solver.ErrorInfo(m.names), true
			}
		}
	}
	return ErrorInfo{}, false
}
