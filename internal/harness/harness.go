package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/conform/internal/replay"
)

// Run executes a scenario on a freshly built graph and returns the result.
//
// Execution flow:
//  1. Build the graph from the scenario model
//  2. Replay all traces as one batch with the scenario options
//  3. Compare every trace outcome with its expectation
//  4. Simplify the graph when asked
//  5. Evaluate the assertions
//
// Expectation and assertion failures are reported in the Result. The error
// is non-nil only when the scenario cannot be executed.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	g, err := scenario.Graph()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: build model: %w", scenario.Name, err)
	}

	eng := replay.New(g, engineOptions(scenario.Options)...)
	batch, err := eng.ReplayBatch(ctx, scenario.Counted())
	if err != nil {
		return nil, fmt.Errorf("scenario %s: replay: %w", scenario.Name, err)
	}

	result := NewResult()
	result.Instances = batch.Instances
	result.Unique = batch.Unique
	result.Inconclusive = batch.Inconclusive

	for i, res := range batch.Results {
		out := TraceOutcome{
			Index:    i,
			Trace:    res.Trace,
			Outcome:  res.Outcome,
			Expected: scenario.Traces[i].Expect,
			Reason:   res.Reason(),
		}
		result.Traces = append(result.Traces, out)
		if out.Expected != "" && out.Expected != out.Outcome {
			result.AddError(fmt.Sprintf("traces[%d] %q: expected %s, got %s", i, res.Trace.String(), out.Expected, out.Outcome))
		}
	}

	result.Graph = g
	if scenario.Simplify {
		simplified, err := g.Simplified()
		if err != nil {
			return nil, fmt.Errorf("scenario %s: simplify: %w", scenario.Name, err)
		}
		result.Graph = simplified
	}

	for i, a := range scenario.Assertions {
		if err := evaluate(result, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return result, nil
}

func engineOptions(o Options) []replay.Option {
	opts := []replay.Option{
		// Suppress logs in scenario runs.
		replay.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		replay.WithStrictTerminal(o.Strict),
		replay.WithSimple(o.Simple),
	}
	if o.MaxWidth != nil {
		opts = append(opts, replay.WithMaxWidth(*o.MaxWidth))
	}
	if o.MaxSearchNodes != nil {
		opts = append(opts, replay.WithMaxSearchNodes(*o.MaxSearchNodes))
	}
	if o.NoCache {
		opts = append(opts, replay.WithNoCache())
	}
	return opts
}
