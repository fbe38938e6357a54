package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func testRun(id, scenario string, started time.Time) Run {
	return Run{
		ID:         id,
		Scenario:   scenario,
		TheoryHash: "theory-" + scenario,
		StartedAt:  started,
		Status:     StatusPass,
		Report:     `{"pass":true}`,
		ReportHash: "hash-" + id,
	}
}

func TestRecordRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := testRun("r1", "doubler", t0.Add(1500*time.Millisecond))
	steps := []Step{
		{Seq: 1, Kind: "reduce", Status: "ok", Detail: "zero"},
		{Seq: 2, Kind: "solve", Status: "fail", Detail: "stalled"},
	}
	require.NoError(t, s.RecordRun(ctx, run, steps))

	got, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, run, got)

	gotSteps, err := s.ReadSteps(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, steps, gotSteps)
}

func TestRecordRun_DuplicateRejected(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRun(ctx, testRun("r1", "a", t0), nil))
	err := s.RecordRun(ctx, testRun("r1", "a", t0), []Step{{Seq: 1, Kind: "reduce", Status: "ok"}})
	require.Error(t, err)

	steps, err := s.ReadSteps(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, steps, "failed transaction must not leave steps behind")
}

func TestRecordRun_InvalidStatus(t *testing.T) {
	s := createTestStore(t)
	run := testRun("r1", "a", t0)
	run.Status = "maybe"
	assert.Error(t, s.RecordRun(context.Background(), run, nil))
}

func TestListRuns_OrderAndFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Fractional seconds must not break text ordering.
	require.NoError(t, s.RecordRun(ctx, testRun("b", "x", t0.Add(time.Second)), nil))
	require.NoError(t, s.RecordRun(ctx, testRun("a", "y", t0.Add(1500*time.Millisecond)), nil))
	require.NoError(t, s.RecordRun(ctx, testRun("c", "x", t0), nil))

	runs, err := s.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)

	runs, err = s.ListRuns(ctx, "x", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "c", runs[0].ID)

	runs, err = s.ListRuns(ctx, "none", 0)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestGetRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestDeleteRun_CascadesSteps(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRun(ctx, testRun("r1", "a", t0), []Step{{Seq: 1, Kind: "reduce", Status: "ok"}}))
	require.NoError(t, s.DeleteRun(ctx, "r1"))

	steps, err := s.ReadSteps(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, steps)

	assert.ErrorIs(t, s.DeleteRun(ctx, "r1"), ErrRunNotFound)
}
