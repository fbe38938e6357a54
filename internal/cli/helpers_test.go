package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const natTheory = `theory: {
	name: "nat"
	axioms: ["zero", "succ", "pair", "yes"]
	declarations: ["doubler", "pred"]
	builtins: {sub: "sub"}
	rules: [
		{head: "doubler", args: ["zero"], result: "zero"},
		{head: "doubler", args: [["succ", "x"]], result: ["succ", ["succ", ["doubler", "x"]]]},
		{head: "pred", args: [{u64: "n"}], result: ["sub", "n", 1]},
	]
}
`

const arithScenario = `name: arith
theory: nat.cue
steps:
  - reduce: [doubler, [succ, zero]]
    full: true
    expect: [succ, [succ, zero]]
  - solve:
      indeterminates: [v]
      depth: 1
      equations: [[[v, "$0"], yes]]
    expect_definitions: {v: yes}
`

const failingScenario = `name: broken
theory: nat.cue
steps:
  - reduce: [doubler, zero]
    expect: yes
`

// writeFiles creates files (name -> content) in a fresh directory.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}
