package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/conform/internal/trace"
)

// ErrParallelModel is returned by ReplaySimple for graphs with AND gateways.
var ErrParallelModel = errors.New("model contains parallel gateways")

// ReplaySimple replays t on a graph without parallel gateways.
//
// Without AND gateways there is exactly one token, so every event is
// explained by the best ranked path from that token and no backtracking
// happens. With unique task labels this agrees with ReplayTrace on every
// trace. The cache and the search budget are not used.
func (e *Engine) ReplaySimple(ctx context.Context, t trace.Counted) (res Result, err error) {
	if e.graph.HasParallel() {
		return Result{}, ErrParallelModel
	}
	res = Result{Trace: t}

	begin := time.Now()
	defer func() {
		if err != nil || res.Outcome == "" {
			return
		}
		res.Elapsed = time.Since(begin)
		e.recorder.TraceReplayed(res.Outcome, t.Multiplicity(), res.Elapsed)
	}()

	steps, err := e.resolve(t)
	if err != nil {
		res.Outcome, res.Err = OutcomeUnfit, err
		return res, nil
	}

	s := &search{engine: e, steps: steps, budget: newBudget(0)}
	st := NewState(e.graph.Start())
	for i, sp := range steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		paths := FindPaths(e.graph, st, st.Tokens(), sp.targets)
		if len(paths) == 0 {
			s.furthest = i
			res.Outcome, res.Err = OutcomeUnfit, s.exhausted()
			return res, nil
		}
		ok, err := s.execute(st, paths[0])
		if err != nil {
			return res, err
		}
		if !ok {
			return res, fmt.Errorf("step %d: path %s did not execute", i, paths[0])
		}
	}

	delta, err := countDelta(e.graph, st.paths, t.Multiplicity())
	if err != nil {
		res.Outcome, res.Err = OutcomeUnfit, err
		return res, nil
	}
	if err := e.graph.ApplyCounts(delta); err != nil {
		return res, fmt.Errorf("apply counts: %w", err)
	}
	res.Outcome = OutcomeFit
	res.Paths = st.paths
	res.Delta = delta
	res.Clean = st.IsClean(e.graph.End())
	return res, nil
}
