package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// timeFormat has a fixed width so started_at sorts correctly as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusPass  = "pass"
	StatusFail  = "fail"
	StatusError = "error"
)

// Run is one execution of a scenario.
type Run struct {
	ID         string    `json:"id"`
	Scenario   string    `json:"scenario"`
	TheoryHash string    `json:"theory_hash"`
	StartedAt  time.Time `json:"started_at"`
	Status     string    `json:"status"`

	// Report is the canonical JSON report of the run.
	Report     string `json:"-"`
	ReportHash string `json:"report_hash"`
}

// Step is one step of a run.
type Step struct {
	Seq    int    `json:"seq"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// RecordRun stores run and its steps in one transaction. Recording the same
// run ID twice is an error.
func (s *Store) RecordRun(ctx context.Context, run Run, steps []Step) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, theory_hash, started_at, status, report, report_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Scenario,
		run.TheoryHash,
		run.StartedAt.UTC().Format(timeFormat),
		run.Status,
		run.Report,
		run.ReportHash,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}

	for _, step := range steps {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO steps (run_id, seq, kind, status, detail)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, step.Seq, step.Kind, step.Status, step.Detail)
		if err != nil {
			return fmt.Errorf("record run %s step %d: %w", run.ID, step.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns up to limit runs, oldest first. A limit of zero or less
// returns every run. A non-empty scenario filters by scenario name.
func (s *Store) ListRuns(ctx context.Context, scenario string, limit int) ([]Run, error) {
	return s.QueryRuns(ctx, RunQuery{Scenario: scenario, Limit: limit})
}

// QueryRuns returns the runs matching q, oldest first.
func (s *Store) QueryRuns(ctx context.Context, q RunQuery) ([]Run, error) {
	query, args, err := q.compile()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run with the given ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, theory_hash, started_at, status, report, report_hash
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// ReadSteps returns the steps of a run ordered by seq.
func (s *Store) ReadSteps(ctx context.Context, runID string) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, status, detail
		FROM steps WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []Step{}
	for rows.Next() {
		var st Step
		if err := rows.Scan(&st.Seq, &st.Kind, &st.Status, &st.Detail); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

// DeleteRun removes a run and its steps.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run     Run
		started string
	)
	err := row.Scan(&run.ID, &run.Scenario, &run.TheoryHash, &started, &run.Status, &run.Report, &run.ReportHash)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt, err = time.Parse(timeFormat, started)
	if err != nil {
		return Run{}, fmt.Errorf("scan run %s: bad started_at %q: %w", run.ID, started, err)
	}
	return run, nil
}
