package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/termkernel/internal/compiler"
	"github.com/roach88/termkernel/internal/eval"
)

// IDGenerator produces run identifiers.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-ordered UUIDv7 run IDs.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Clock supplies run start times.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Harness runs scenarios. The zero value is not usable; call New.
type Harness struct {
	ids       IDGenerator
	clock     Clock
	maxRounds int
	maxSteps  int
}

// Option configures a Harness.
type Option func(*Harness)

// WithIDGenerator sets the run ID source. Default: UUIDv7Generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(h *Harness) {
		h.ids = ids
	}
}

// WithClock sets the time source. Default: the system clock in UTC.
func WithClock(c Clock) Option {
	return func(h *Harness) {
		h.clock = c
	}
}

// DefaultMaxRounds bounds the solver rounds of one solve step.
const DefaultMaxRounds = 1000

// WithMaxRounds bounds the solver rounds of one solve step. Zero means
// unbounded.
//
// Default: 1000 (DefaultMaxRounds)
func WithMaxRounds(n int) Option {
	return func(h *Harness) {
		h.maxRounds = n
	}
}

// DefaultMaxSteps bounds rule applications per reduction.
const DefaultMaxSteps = 100000

// WithMaxSteps bounds rule applications per reduction. Zero means unbounded.
//
// Default: 100000 (DefaultMaxSteps)
func WithMaxSteps(n int) Option {
	return func(h *Harness) {
		h.maxSteps = n
	}
}

// New creates a harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		ids:       UUIDv7Generator{},
		clock:     systemClock{},
		maxRounds: DefaultMaxRounds,
		maxSteps:  DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes every step of sc against a fresh session of its theory.
//
// Step failures are recorded in the result and do not stop the run. An
// error is returned only when the theory cannot be loaded or ctx is
// cancelled.
func (h *Harness) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	spec, err := compiler.LoadTheory(sc.Theory)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	return h.RunTheory(ctx, sc, spec)
}

// RunTheory is Run with an already compiled theory; sc.Theory is ignored.
func (h *Harness) RunTheory(ctx context.Context, sc *Scenario, spec *compiler.TheorySpec) (*Result, error) {
	hash, err := spec.Hash()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	sess, err := NewSession(spec, eval.WithMaxSteps(h.maxSteps))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	defer sess.Close()

	res := &Result{
		RunID:      h.ids.Generate(),
		StartedAt:  h.clock.Now(),
		Scenario:   sc.Name,
		Theory:     spec.Name,
		TheoryHash: hash,
		Pass:       true,
	}
	slog.Debug("scenario started", "scenario", sc.Name, "run_id", res.RunID, "steps", len(sc.Steps))

	for i := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step := &sc.Steps[i]
		sr, err := h.runStep(ctx, sess, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		sr.Seq = i
		sr.Kind = step.Kind()
		if !sr.OK() {
			res.Pass = false
			slog.Debug("step failed", "scenario", sc.Name, "seq", i, "kind", sr.Kind, "detail", sr.Detail)
		}
		res.Steps = append(res.Steps, sr)
	}

	slog.Info("scenario finished", "scenario", sc.Name, "run_id", res.RunID, "pass", res.Pass)
	return res, nil
}

func (h *Harness) runStep(ctx context.Context, sess *Session, step *Step) (StepResult, error) {
	switch step.Kind() {
	case KindReduce:
		return reduceStep(sess, step), nil
	case KindAssume:
		return assumeStep(sess, step), nil
	case KindSolve:
		return h.solveStep(ctx, sess, step)
	default:
		return StepResult{}, fmt.Errorf("step has no action")
	}
}
