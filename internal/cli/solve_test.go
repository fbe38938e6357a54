package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolve_Solved(t *testing.T) {
	dir := writeFiles(t, map[string]string{"nat.cue": natTheory})
	theory := filepath.Join(dir, "nat.cue")

	out, err := execute(t, "solve", "--theory", theory, "--unknown", "w", "--depth", "2",
		"[w, $1, $0]", "[pair, $0, $1]")
	require.NoError(t, err)
	assert.Equal(t, "state: solved\nw := [pair, $1, $0]\n", out)
}

func TestSolve_Failed(t *testing.T) {
	dir := writeFiles(t, map[string]string{"nat.cue": natTheory})
	theory := filepath.Join(dir, "nat.cue")

	out, err := execute(t, "solve", "--theory", theory, "--depth", "2", "$0", "$1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "state: failed")
	assert.Contains(t, out, "equation #0: $0 = $1 [failed, depth 2]")
	assert.Contains(t, out, "Error [E_UNSOLVED]: equation failed")
}

func TestSolve_StalledJSON(t *testing.T) {
	dir := writeFiles(t, map[string]string{"nat.cue": natTheory})
	theory := filepath.Join(dir, "nat.cue")

	out, err := execute(t, "solve", "--theory", theory, "--unknown", "p", "--unknown", "q",
		"--depth", "2", "--format", "json", "[p, $0]", "[q, $1]")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			State       string            `json:"state"`
			Diagnostics []json.RawMessage `json:"diagnostics"`
		} `json:"data"`
		Error *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "stalled", resp.Data.State)
	require.Len(t, resp.Data.Diagnostics, 1)
	assert.Equal(t, CodeUnsolved, resp.Error.Code)
}

func TestSolve_NameClash(t *testing.T) {
	dir := writeFiles(t, map[string]string{"nat.cue": natTheory})

	_, err := execute(t, "solve", "--theory", filepath.Join(dir, "nat.cue"), "--unknown", "zero", "zero", "zero")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "name already bound")
}
