package harness

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Report renders a result as the text stored in golden files: one line per
// trace, the tallies, then the final graph with its counts.
func Report(name string, r *Result) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", name)
	fmt.Fprintf(&buf, "traces:\n")
	for _, t := range r.Traces {
		fmt.Fprintf(&buf, "  [%d] %q x%d: %s\n", t.Index, t.Trace.String(), t.Trace.Multiplicity(), t.Outcome)
	}
	fmt.Fprintf(&buf, "instances: fit=%d unfit=%d\n", r.Instances.Fit, r.Instances.Unfit)
	fmt.Fprintf(&buf, "unique: fit=%d unfit=%d inconclusive=%d\n", r.Unique.Fit, r.Unique.Unfit, r.Inconclusive)
	fmt.Fprintf(&buf, "graph:\n")
	if err := r.Graph.WriteText(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its report against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	report, err := Report(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, report)
	return nil
}
