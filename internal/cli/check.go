package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/termkernel/internal/harness"
	"github.com/roach88/termkernel/internal/store"
)

// Golden comparison outcomes.
const (
	GoldenNone     = "none"
	GoldenMatch    = "match"
	GoldenMismatch = "mismatch"
	GoldenUpdated  = "updated"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	UpdateGolden bool
	Filter       string

	// HarnessOptions override harness defaults (for testing).
	HarnessOptions []harness.Option
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	RunID  string   `json:"run_id,omitempty"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden"`
	Errors []string `json:"errors,omitempty"`
}

// CheckResult is the outcome of a check invocation.
type CheckResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <scenario|dir>...",
		Short: "Run scenario files",
		Long: `Run scenario files against their theories.

Directories are searched recursively for .yaml and .yml files. A scenario
passes when every step passes and, if <dir>/golden/<name>.golden exists,
its report matches the golden file byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, database errors)

Examples:
  termkernel check ./scenarios
  termkernel check ./scenarios --filter "solve-*"
  termkernel check ./scenarios --update-golden
  termkernel check ./scenarios --db runs.db --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(commandContext(cmd), opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.UpdateGolden, "update-golden", false, "rewrite golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")

	return cmd
}

func runCheck(ctx context.Context, opts *CheckOptions, paths []string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	var files []string
	for _, p := range paths {
		found, err := findScenarioFiles(p, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		files = append(files, found...)
	}

	var st *store.Store
	if opts.Database != "" {
		var err error
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
	}

	h := harness.New(opts.HarnessOptions...)
	result := CheckResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		sr, err := checkScenario(ctx, h, st, opts, file)
		if err != nil {
			return err
		}
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	text := func(w io.Writer) { writeCheckText(w, result) }
	if result.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		if err := out.Failure(CodeFailed, msg, result, text); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return out.Success(result, text)
}

// findScenarioFiles returns path itself if it is a file, or every YAML file
// under it whose base name matches filter.
func findScenarioFiles(path, filter string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" && p != path {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	return files, err
}

// checkScenario runs one file. Scenario problems become a failed result;
// only cancellation and database errors are returned.
func checkScenario(ctx context.Context, h *harness.Harness, st *store.Store, opts *CheckOptions, file string) (ScenarioResult, error) {
	sr := ScenarioResult{Name: filepath.Base(file), File: file, Golden: GoldenNone}

	sc, err := harness.LoadScenario(file)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("load: %v", err)}
		return sr, nil
	}
	sr.Name = sc.Name

	res, err := h.Run(ctx, sc)
	if err != nil {
		if ctx.Err() != nil {
			return sr, err
		}
		sr.Errors = []string{fmt.Sprintf("run: %v", err)}
		return sr, nil
	}
	sr.RunID = res.RunID
	sr.Pass = res.Pass
	for _, f := range res.Failures() {
		sr.Errors = append(sr.Errors, fmt.Sprintf("step %d (%s): %s", f.Seq, f.Kind, f.Detail))
	}

	golden, err := checkGolden(res, goldenFilePath(file, sc.Name), opts.UpdateGolden)
	sr.Golden = golden
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, err.Error())
	} else if golden == GoldenMismatch {
		sr.Pass = false
		sr.Errors = append(sr.Errors, "report does not match golden file (run with --update-golden to regenerate)")
	}

	if st != nil {
		if err := recordRun(ctx, st, res); err != nil {
			return sr, WrapExitError(ExitCommandError, "failed to record run", err)
		}
	}
	return sr, nil
}

// goldenFilePath returns <dir of scenario file>/golden/<scenario name>.golden.
func goldenFilePath(scenarioFile, name string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func checkGolden(res *harness.Result, path string, update bool) (string, error) {
	snap, err := harness.Snapshot(res)
	if err != nil {
		return GoldenNone, fmt.Errorf("snapshot: %w", err)
	}
	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return GoldenNone, fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, snap, 0o644); err != nil {
			return GoldenNone, fmt.Errorf("failed to write golden file: %w", err)
		}
		return GoldenUpdated, nil
	}
	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return GoldenNone, nil
	}
	if err != nil {
		return GoldenNone, fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, snap) {
		return GoldenMismatch, nil
	}
	return GoldenMatch, nil
}

// recordRun stores res in the run history.
func recordRun(ctx context.Context, st *store.Store, res *harness.Result) error {
	report, err := res.Report()
	if err != nil {
		return err
	}
	hash, err := res.Hash()
	if err != nil {
		return err
	}
	status := store.StatusPass
	if !res.Pass {
		status = store.StatusFail
	}
	steps := make([]store.Step, len(res.Steps))
	for i, s := range res.Steps {
		steps[i] = store.Step{Seq: s.Seq, Kind: s.Kind, Status: s.Status, Detail: s.Detail}
	}
	return st.RecordRun(ctx, store.Run{
		ID:         res.RunID,
		Scenario:   res.Scenario,
		TheoryHash: res.TheoryHash,
		StartedAt:  res.StartedAt,
		Status:     status,
		Report:     string(report),
		ReportHash: hash,
	}, steps)
}

func writeCheckText(w io.Writer, result CheckResult) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, sr := range result.Scenarios {
		mark := "✓"
		if !sr.Pass {
			mark = "✗"
		}
		suffix := ""
		if sr.Golden == GoldenUpdated {
			suffix = " (golden updated)"
		}
		fmt.Fprintf(w, "%s %s%s\n", mark, sr.Name, suffix)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Check Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
