package store

import (
	"fmt"
	"strings"
)

// RunQuery selects runs. Empty fields match everything; set fields are
// combined with AND.
type RunQuery struct {
	Scenario   string
	Status     string
	TheoryHash string

	// Limit caps the number of runs. Zero or less means no limit.
	Limit int
}

// predicate is one "column = ?" condition.
type predicate struct {
	column string
	value  any
}

// compile returns the parameterized SQL for q. Values are always passed as
// parameters, and every query orders by start time with the run ID as a
// tiebreaker so results are deterministic.
func (q RunQuery) compile() (string, []any, error) {
	if q.Status != "" && q.Status != StatusPass && q.Status != StatusFail && q.Status != StatusError {
		return "", nil, fmt.Errorf("unknown run status %q", q.Status)
	}

	var preds []predicate
	for _, p := range []predicate{
		{"scenario", q.Scenario},
		{"status", q.Status},
		{"theory_hash", q.TheoryHash},
	} {
		if p.value != "" {
			preds = append(preds, p)
		}
	}

	var b strings.Builder
	b.WriteString(`SELECT id, scenario, theory_hash, started_at, status, report, report_hash FROM runs`)
	params := make([]any, 0, len(preds)+1)
	for i, p := range preds {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(p.column + " = ?")
		params = append(params, p.value)
	}
	b.WriteString(" ORDER BY started_at ASC, id COLLATE BINARY ASC")
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return b.String(), params, nil
}
