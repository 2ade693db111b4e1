package scenario

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"golang.org/x/text/unicode/norm"
)

// Snapshot is the deterministic rendering of a Result used for golden file
// comparison. Elapsed time is dropped; attempt counts and step outcomes
// stay, since those are what scenario regressions change.
type Snapshot struct {
	Scenario string       `json:"scenario"`
	Pass     bool         `json:"pass"`
	Trace    []TraceEvent `json:"trace"`
	Errors   []string     `json:"errors,omitempty"`
}

// AssertGolden compares a result snapshot against
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/scenario -update
//
// Scenario names are NFC-normalized before use as fixture names so the
// same scenario produces the same file on every platform.
func AssertGolden(t *testing.T, result *Result) error {
	t.Helper()

	name := norm.NFC.String(result.Scenario)
	snapshot := Snapshot{
		Scenario: name,
		Pass:     result.Pass,
		Trace:    result.Trace,
		Errors:   result.Errors,
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
