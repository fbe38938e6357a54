package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunQuery_Compile(t *testing.T) {
	tests := []struct {
		name   string
		q      RunQuery
		where  string
		params []any
	}{
		{"all", RunQuery{}, "", []any{}},
		{"scenario", RunQuery{Scenario: "s"}, " WHERE scenario = ?", []any{"s"}},
		{
			"conjunction",
			RunQuery{Status: StatusFail, TheoryHash: "h", Limit: 3},
			" WHERE status = ? AND theory_hash = ?",
			[]any{StatusFail, "h", 3},
		},
	}
	const prefix = "SELECT id, scenario, theory_hash, started_at, status, report, report_hash FROM runs"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := tt.q.compile()
			require.NoError(t, err)
			assert.Equal(t, tt.params, params)
			assert.Contains(t, sql, prefix+tt.where+" ORDER BY started_at ASC, id COLLATE BINARY ASC")
		})
	}
}

func TestRunQuery_RejectsUnknownStatus(t *testing.T) {
	_, _, err := RunQuery{Status: "maybe"}.compile()
	assert.Error(t, err)
}

func TestQueryRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	failed := testRun("b", "x", t0.Add(time.Second))
	failed.Status = StatusFail
	require.NoError(t, s.RecordRun(ctx, testRun("a", "x", t0), nil))
	require.NoError(t, s.RecordRun(ctx, failed, nil))
	require.NoError(t, s.RecordRun(ctx, testRun("c", "y", t0.Add(2*time.Second)), nil))

	runs, err := s.QueryRuns(ctx, RunQuery{Status: StatusFail})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].ID)

	runs, err = s.QueryRuns(ctx, RunQuery{TheoryHash: "theory-x", Status: StatusPass})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "a", runs[0].ID)

	runs, err = s.QueryRuns(ctx, RunQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}
