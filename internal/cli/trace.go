package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/termkernel/internal/store"
)

// TraceResult is one recorded run with its steps and report.
type TraceResult struct {
	Run    store.Run       `json:"run"`
	Steps  []store.Step    `json:"steps"`
	Report json.RawMessage `json:"report"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <run-id>",
		Short: "Show a recorded run",
		Long: `Show the steps and canonical report of a run recorded by check --db.

Examples:
  termkernel trace --db runs.db 01927c4e-...
  termkernel trace --db runs.db 01927c4e-... --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runTrace(opts *RootOptions, id string, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)
	st, err := openHistory(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)
	run, err := st.GetRun(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		if ferr := out.Error("E_NOT_FOUND", fmt.Sprintf("run %s not found", id), nil); ferr != nil {
			return ferr
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("run %s not found", id))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	steps, err := st.ReadSteps(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read steps", err)
	}

	result := TraceResult{Run: run, Steps: steps, Report: json.RawMessage(run.Report)}
	return out.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "run:      %s\n", run.ID)
		fmt.Fprintf(w, "scenario: %s\n", run.Scenario)
		fmt.Fprintf(w, "started:  %s\n", run.StartedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "status:   %s\n", run.Status)
		fmt.Fprintf(w, "theory:   %s\n", run.TheoryHash)
		fmt.Fprintf(w, "report:   %s\n", run.ReportHash)
		fmt.Fprintln(w, "steps:")
		for _, s := range steps {
			fmt.Fprintf(w, "  %d %-7s %s\n", s.Seq, s.Kind, s.Status)
			if s.Detail != "" {
				fmt.Fprintln(w, indent(s.Detail, "      "))
			}
		}
	})
}
