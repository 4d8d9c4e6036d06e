package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result's trace as text with scenario node names in
// place of engine ids. Evaluation outputs are already canonical JSON, so
// identical runs render byte-identical snapshots.
func Snapshot(result *Result) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", result.Scenario)
	fmt.Fprintf(&buf, "evaluations:\n")
	for _, ev := range result.Trace.Evaluations() {
		fmt.Fprintf(&buf, "  %d %s %s %s", ev.Frame, result.Name(ev.NodeID), ev.Kind, ev.Outputs)
		if ev.RunAgain {
			buf.WriteString(" again")
		}
		buf.WriteByte('\n')
	}
	skips := result.Trace.Skips()
	if len(skips) == 0 {
		return buf.Bytes()
	}
	fmt.Fprintf(&buf, "skips:\n")
	for _, sk := range skips {
		fmt.Fprintf(&buf, "  %d %s %s\n", sk.Frame, result.Name(sk.NodeID), sk.Code)
	}
	return buf.Bytes()
}

// RunWithGolden runs a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(result))
}
