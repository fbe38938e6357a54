package harness

import (
	"time"

	"github.com/roach88/termkernel/internal/ir"
	"github.com/roach88/termkernel/internal/solver"
)

// Step statuses.
const (
	StatusOK   = "ok"
	StatusFail = "fail"
)

// Result is the outcome of one scenario run.
type Result struct {
	// RunID and StartedAt identify the run. They are not part of the report
	// so that reports of identical runs are byte-identical.
	RunID     string
	StartedAt time.Time

	Scenario   string
	Theory     string
	TheoryHash string
	Pass       bool
	Steps      []StepResult
}

// StepResult is the outcome of one step.
type StepResult struct {
	Seq    int
	Kind   string
	Status string

	// Input is the term or equations the step acted on; Output is what it
	// computed. Either may be nil.
	Input  ir.Value
	Output ir.Value

	// Detail explains a failure.
	Detail string

	// Diagnostics holds solver error info for unsolved equations.
	Diagnostics []solver.ErrorInfo
}

// OK reports whether the step passed.
func (s StepResult) OK() bool {
	return s.Status == StatusOK
}

// Failures returns the steps that did not pass.
func (r *Result) Failures() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if !s.OK() {
			out = append(out, s)
		}
	}
	return out
}

// Value returns the report document.
func (r *Result) Value() ir.Value {
	steps := make(ir.Array, len(r.Steps))
	for i, s := range r.Steps {
		steps[i] = s.Value()
	}
	return ir.Object{
		"version":     ir.String(ir.ReportVersion),
		"scenario":    ir.String(r.Scenario),
		"theory":      ir.String(r.Theory),
		"theory_hash": ir.String(r.TheoryHash),
		"pass":        ir.Bool(r.Pass),
		"steps":       steps,
	}
}

// Report returns the canonical JSON encoding of Value.
func (r *Result) Report() ([]byte, error) {
	return ir.MarshalCanonical(r.Value())
}

// Hash returns the content hash of the report.
func (r *Result) Hash() (string, error) {
	return ir.ReportHash(r.Value())
}

// Value returns the report document of the step.
func (s StepResult) Value() ir.Value {
	obj := ir.Object{
		"seq":    ir.Int(s.Seq),
		"kind":   ir.String(s.Kind),
		"status": ir.String(s.Status),
	}
	if s.Input != nil {
		obj["input"] = s.Input
	}
	if s.Output != nil {
		obj["output"] = s.Output
	}
	if s.Detail != "" {
		obj["detail"] = ir.String(s.Detail)
	}
	if len(s.Diagnostics) > 0 {
		diags := make(ir.Array, len(s.Diagnostics))
		for i, d := range s.Diagnostics {
			diags[i] = errorInfoValue(d)
		}
		obj["diagnostics"] = diags
	}
	return obj
}

func errorInfoValue(info solver.ErrorInfo) ir.Value {
	return ir.Object{
		"primary":        equationValue(info.Primary),
		"primary_failed": ir.Bool(info.PrimaryFailed),
		"failures":       equationValues(info.Failures),
		"stalls":         equationValues(info.Stalls),
	}
}

func equationValues(reports []solver.EquationReport) ir.Array {
	out := make(ir.Array, len(reports))
	for i, r := range reports {
		out[i] = equationValue(r)
	}
	return out
}

func equationValue(r solver.EquationReport) ir.Value {
	obj := ir.Object{
		"index":  ir.Int(r.Index),
		"parent": ir.Int(r.Parent),
		"status": ir.String(r.Status),
		"depth":  ir.Int(int64(r.Depth)),
		"lhs":    ir.String(r.LHS),
		"rhs":    ir.String(r.RHS),
		"path":   ir.Ints(r.Path),
	}
	if r.Reason != "" {
		obj["reason"] = ir.String(r.Reason)
	}
	return obj
}
