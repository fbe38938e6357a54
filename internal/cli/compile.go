package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/termkernel/internal/compiler"
	"github.com/roach88/termkernel/internal/harness"
)

// CompileResult summarizes a compiled theory.
type CompileResult struct {
	Name         string                  `json:"name"`
	Hash         string                  `json:"hash"`
	Axioms       int                     `json:"axioms"`
	Declarations int                     `json:"declarations"`
	Builtins     int                     `json:"builtins"`
	Rules        int                     `json:"rules"`
	Recursion    []compiler.CycleWarning `json:"recursion"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <theory>",
		Short: "Validate and compile a theory",
		Long: `Load a CUE theory, validate it and compile it into a term store.

Prints the theory's content hash and the declarations whose rules are
recursive.

Examples:
  termkernel compile ./theories/nat.cue
  termkernel compile ./theories --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runCompile(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)

	spec, err := loadTheory(path)
	if err != nil {
		return err
	}
	hash, err := spec.Hash()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash theory", err)
	}

	sess, err := harness.NewSession(spec)
	if err != nil {
		var verrs compiler.ValidationErrors
		if errors.As(err, &verrs) {
			if ferr := out.Error(CodeInvalid, "theory is invalid", []compiler.ValidationError(verrs)); ferr != nil {
				return ferr
			}
			if !out.JSON() {
				for _, v := range verrs {
					fmt.Fprintf(out.Writer, "  %s\n", v.Error())
				}
			}
			return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(verrs)))
		}
		return WrapExitError(ExitFailure, "failed to compile theory", err)
	}
	sess.Close()

	result := CompileResult{
		Name:         spec.Name,
		Hash:         hash,
		Axioms:       len(spec.Axioms),
		Declarations: len(spec.Declarations),
		Builtins:     len(spec.Builtins),
		Rules:        len(spec.Rules),
		Recursion:    compiler.AnalyzeRecursion(spec),
	}
	if result.Recursion == nil {
		result.Recursion = []compiler.CycleWarning{}
	}
	return out.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s\n", result.Name)
		fmt.Fprintf(w, "  hash: %s\n", result.Hash)
		fmt.Fprintf(w, "  %d axioms, %d declarations, %d builtins, %d rules\n",
			result.Axioms, result.Declarations, result.Builtins, result.Rules)
		for _, r := range result.Recursion {
			fmt.Fprintf(w, "  [%s] %s\n", r.Level, r.Message)
		}
	})
}

// loadTheory loads a theory file, mapping failures to exit codes: a missing
// path is a command error, a broken theory is a failure.
func loadTheory(path string) (*compiler.TheorySpec, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "--theory is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "theory not found", err)
	}
	spec, err := compiler.LoadTheory(path)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to load theory", err)
	}
	return spec, nil
}

// indent prefixes every line of s.
func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
