// Package store keeps the history of scenario runs in SQLite.
//
// Each run records the scenario name, the hash of the theory it ran against,
// its outcome and its canonical JSON report (see internal/ir). Each step of
// the run gets its own row so a single failing step can be inspected without
// decoding the report.
//
// # Ordering
//
// Runs are listed by started_at, then id, both ascending COLLATE BINARY.
// Steps are listed by seq.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: deleting a run deletes its steps
package store
