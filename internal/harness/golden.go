package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/multiview/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// Serialized with canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Profile      string       `json:"profile"`
	Trace        []TraceEvent `json:"trace"`
}

// MarshalCanonical renders the snapshot as RFC 8785 canonical JSON.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	trace := make(ir.IRArray, len(s.Trace))
	for i, ev := range s.Trace {
		trace[i] = ev.toIRObject()
	}
	return ir.MarshalCanonical(ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"profile":       ir.IRString(s.Profile),
		"trace":         trace,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, scenario.Profile, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName, profileRef string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Profile:      profileRef,
		Trace:        result.Trace,
	}
	traceJSON, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
