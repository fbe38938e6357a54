package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is where golden reports live, relative to the test's package.
const GoldenDir = "testdata/golden"

// Snapshot returns the golden file contents for r: its canonical report
// followed by a newline.
func Snapshot(r *Result) ([]byte, error) {
	report, err := r.Report()
	if err != nil {
		return nil, err
	}
	return append(report, '\n'), nil
}

// AssertGolden compares the report of r with testdata/golden/<name>.golden.
// Run the test with -update to rewrite the file.
func AssertGolden(t *testing.T, name string, r *Result) {
	t.Helper()
	snap, err := Snapshot(r)
	if err != nil {
		t.Fatalf("snapshot %s: %v", name, err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snap)
}
