package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/termkernel/internal/harness"
	"github.com/roach88/termkernel/internal/ir"
)

// ReduceOptions holds flags for the reduce command.
type ReduceOptions struct {
	*RootOptions
	Theory string
	Full   bool
}

// ReduceResult is the output of the reduce command.
type ReduceResult struct {
	Input  ir.Value `json:"input"`
	Output ir.Value `json:"output"`
	Text   string   `json:"text"`
	Full   bool     `json:"full"`
}

// NewReduceCommand creates the reduce command.
func NewReduceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReduceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reduce <term>",
		Short: "Reduce a term under a theory",
		Long: `Reduce a term to head normal form, or to full normal form with --full.

The term uses the scenario syntax: a YAML flow list is an application,
$N is a bound argument, integers are u64 data and "quoted" strings are
string data.

Examples:
  termkernel reduce --theory nat.cue "[doubler, [succ, zero]]"
  termkernel reduce --theory nat.cue --full "[doubler, [succ, zero]]"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReduce(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Theory, "theory", "", "path to the CUE theory (required)")
	_ = cmd.MarkFlagRequired("theory")
	cmd.Flags().BoolVar(&opts.Full, "full", false, "reduce to full normal form")

	return cmd
}

func runReduce(opts *ReduceOptions, src string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	raw, err := parseTermArg(src)
	if err != nil {
		return err
	}
	spec, err := loadTheory(opts.Theory)
	if err != nil {
		return err
	}
	sess, err := harness.NewSession(spec)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to compile theory", err)
	}
	defer sess.Close()

	x, n, err := sess.Term(raw)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid term", err)
	}
	st := sess.Store()
	got := sess.Normalize(x, opts.Full)
	defer st.DropAll(x, got)

	result := ReduceResult{
		Input:  n.Value(),
		Output: sess.Value(got),
		Text:   sess.Format(got),
		Full:   opts.Full,
	}
	return out.Success(result, func(w io.Writer) {
		fmt.Fprintln(w, result.Text)
	})
}

// parseTermArg decodes a command-line term written in YAML flow syntax.
func parseTermArg(src string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(src), &v); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid term %q", src), err)
	}
	if v == nil {
		return nil, NewExitError(ExitCommandError, "empty term")
	}
	return v, nil
}
