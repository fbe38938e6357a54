package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/termkernel/internal/store"
)

func TestCheck_Pass(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"nat.cue":    natTheory,
		"arith.yaml": arithScenario,
	})

	out, err := execute(t, "check", filepath.Join(dir, "arith.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ arith")
	assert.Contains(t, out, "Check Summary: 1 passed, 0 failed, 1 total")
}

func TestCheck_Failure(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"nat.cue":     natTheory,
		"arith.yaml":  arithScenario,
		"broken.yaml": failingScenario,
	})

	out, err := execute(t, "check", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ arith")
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "step 0 (reduce): expected yes, got zero")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestCheck_Filter(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"nat.cue":     natTheory,
		"arith.yaml":  arithScenario,
		"broken.yaml": failingScenario,
	})

	out, err := execute(t, "check", dir, "--filter", "ari*")
	require.NoError(t, err)
	assert.NotContains(t, out, "broken")
}

func TestCheck_LoadErrorFailsScenario(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"bad.yaml": "name: bad\ntheory: missing.cue\nsteps: [{reduce: zero}]\n",
	})

	out, err := execute(t, "check", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "load: invalid scenario")
}

func TestCheck_MissingPath(t *testing.T) {
	_, err := execute(t, "check", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheck_Golden(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"nat.cue":    natTheory,
		"arith.yaml": arithScenario,
	})
	scenario := filepath.Join(dir, "arith.yaml")
	golden := filepath.Join(dir, "golden", "arith.golden")

	out, err := execute(t, "check", scenario, "--update-golden")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ arith (golden updated)")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario":"arith"`)

	_, err = execute(t, "check", scenario)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0o644))
	out, err = execute(t, "check", scenario)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestCheck_JSON(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"nat.cue":    natTheory,
		"arith.yaml": arithScenario,
	})

	out, err := execute(t, "check", dir, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "arith", resp.Data.Scenarios[0].Name)
	assert.Equal(t, GoldenNone, resp.Data.Scenarios[0].Golden)
	assert.Len(t, resp.Data.Scenarios[0].RunID, 36)
}

func TestCheck_RecordsHistory(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"nat.cue":     natTheory,
		"arith.yaml":  arithScenario,
		"broken.yaml": failingScenario,
	})
	db := filepath.Join(t.TempDir(), "runs.db")

	_, err := execute(t, "check", dir, "--db", db)
	require.Error(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	runs, err := st.ListRuns(context.Background(), "", 0)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.Len(t, runs, 2)

	statuses := map[string]string{}
	for _, r := range runs {
		statuses[r.Scenario] = r.Status
	}
	assert.Equal(t, map[string]string{"arith": store.StatusPass, "broken": store.StatusFail}, statuses)

	out, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "SCENARIO")
	assert.Contains(t, out, runs[0].ID)

	out, err = execute(t, "history", "--db", db, "--scenario", "broken", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"scenario": "broken"`)
	assert.NotContains(t, out, `"scenario": "arith"`)

	out, err = execute(t, "history", "--db", db, "--status", "pass")
	require.NoError(t, err)
	assert.Contains(t, out, "arith")
	assert.NotContains(t, out, "broken")

	_, err = execute(t, "history", "--db", db, "--status", "maybe")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var brokenID string
	for _, r := range runs {
		if r.Scenario == "broken" {
			brokenID = r.ID
		}
	}
	out, err = execute(t, "trace", brokenID, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "scenario: broken")
	assert.Contains(t, out, "status:   fail")
	assert.Contains(t, out, "expected yes, got zero")

	out, err = execute(t, "trace", brokenID, "--db", db, "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Data struct {
			Report map[string]any `json:"report"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, false, resp.Data.Report["pass"])

	_, err = execute(t, "trace", "no-such-run", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHistory_RequiresDatabase(t *testing.T) {
	_, err := execute(t, "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--db is required")
}
