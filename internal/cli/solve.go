package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/termkernel/internal/harness"
	"github.com/roach88/termkernel/internal/ir"
	"github.com/roach88/termkernel/internal/solver"
)

// SolveOptions holds flags for the solve command.
type SolveOptions struct {
	*RootOptions
	Theory    string
	Unknowns  []string
	Depth     int
	MaxRounds int
}

// SolveResult is the output of the solve command.
type SolveResult struct {
	State       string             `json:"state"`
	Definitions ir.Value           `json:"definitions"`
	Diagnostics []solver.ErrorInfo `json:"diagnostics,omitempty"`
}

// NewSolveCommand creates the solve command.
func NewSolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "solve <lhs> <rhs>",
		Short: "Solve one equation for fresh indeterminates",
		Long: `Declare fresh indeterminates, solve lhs = rhs with --depth bound
arguments in scope and print the resulting definitions.

Exit codes:
  0 - Solved
  1 - Failed or stalled
  2 - Command error

Examples:
  termkernel solve --theory nat.cue --unknown v --depth 1 "[v, $0]" yes
  termkernel solve --theory nat.cue --unknown w --depth 2 "[w, $1, $0]" "[pair, $0, $1]"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Theory, "theory", "", "path to the CUE theory (required)")
	_ = cmd.MarkFlagRequired("theory")
	cmd.Flags().StringArrayVar(&opts.Unknowns, "unknown", nil, "indeterminate to declare (repeatable)")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "number of bound arguments in scope")
	cmd.Flags().IntVar(&opts.MaxRounds, "max-rounds", harness.DefaultMaxRounds, "solver round limit (0 = unbounded)")

	return cmd
}

func runSolve(opts *SolveOptions, lhsSrc, rhsSrc string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	lhs, err := parseTermArg(lhsSrc)
	if err != nil {
		return err
	}
	rhs, err := parseTermArg(rhsSrc)
	if err != nil {
		return err
	}
	spec, err := loadTheory(opts.Theory)
	if err != nil {
		return err
	}

	unknowns := opts.Unknowns
	if unknowns == nil {
		unknowns = []string{}
	}
	sc := &harness.Scenario{
		Name:   "solve",
		Theory: opts.Theory,
		Steps: []harness.Step{{
			Solve: &harness.SolveStep{
				Indeterminates: unknowns,
				Depth:          opts.Depth,
				Equations:      [][]any{{lhs, rhs}},
			},
		}},
	}
	h := harness.New(harness.WithMaxRounds(opts.MaxRounds))
	res, err := h.RunTheory(commandContext(cmd), sc, spec)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to run solver", err)
	}

	step := res.Steps[0]
	obj, _ := step.Output.(ir.Object)
	if obj == nil {
		// the equation could not be built
		return WrapExitError(ExitCommandError, "invalid equation", fmt.Errorf("%s", step.Detail))
	}
	result := SolveResult{
		State:       string(obj["state"].(ir.String)),
		Definitions: obj["definitions"],
		Diagnostics: step.Diagnostics,
	}
	text := func(w io.Writer) { writeSolveText(w, unknowns, result) }
	if result.State != harness.StateSolved {
		msg := fmt.Sprintf("equation %s", result.State)
		if err := out.Failure(CodeUnsolved, msg, result, text); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return out.Success(result, text)
}

func writeSolveText(w io.Writer, unknowns []string, result SolveResult) {
	fmt.Fprintf(w, "state: %s\n", result.State)
	defs, _ := result.Definitions.(ir.Object)
	for _, name := range unknowns {
		if def, ok := defs[name]; ok {
			fmt.Fprintf(w, "%s := %s\n", name, renderValue(def))
		} else {
			fmt.Fprintf(w, "%s undefined\n", name)
		}
	}
	for _, d := range result.Diagnostics {
		writeEquation(w, "equation", d.Primary)
		for _, f := range d.Failures {
			writeEquation(w, "  failed", f)
		}
		for _, s := range d.Stalls {
			writeEquation(w, "  stalled", s)
		}
	}
}

func writeEquation(w io.Writer, label string, r solver.EquationReport) {
	fmt.Fprintf(w, "%s #%d: %s = %s [%s, depth %d]", label, r.Index, r.LHS, r.RHS, r.Status, r.Depth)
	if r.Reason != "" {
		fmt.Fprintf(w, ": %s", r.Reason)
	}
	fmt.Fprintln(w)
}
