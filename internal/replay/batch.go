package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/roach88/conform/internal/trace"
)

// Tally counts fit and unfit traces.
type Tally struct {
	Fit   int64 `json:"fit"`
	Unfit int64 `json:"unfit"`
}

// Total returns Fit + Unfit.
func (t Tally) Total() int64 { return t.Fit + t.Unfit }

// BatchResult aggregates a batch replay.
//
// Instances weighs every trace by its multiplicity, Unique counts each
// distinct trace once. Inconclusive traces are counted as unfit in both
// tallies and additionally in Inconclusive (unique traces).
type BatchResult struct {
	Instances    Tally         `json:"instances"`
	Unique       Tally         `json:"unique"`
	Inconclusive int           `json:"inconclusive"`
	Results      []Result      `json:"results"`
	Cache        CacheStats    `json:"cache"`
	Elapsed      time.Duration `json:"elapsed"`
}

// ReplayBatch replays traces in order against the engine's graph.
//
// A trace that fails, or panics, is counted as unfit and the batch goes on.
// The batch stops with an error only on a cache conflict or when ctx is
// done; the partial result is returned with it. In simple mode a graph
// with parallel gateways fails the whole batch with ErrParallelModel.
func (e *Engine) ReplayBatch(ctx context.Context, traces []trace.Counted) (BatchResult, error) {
	if e.simple && e.graph.HasParallel() {
		return BatchResult{}, ErrParallelModel
	}
	ctx, span := e.tracer.Start(ctx, "replay.batch", oteltrace.WithAttributes(
		attribute.Int("conform.traces", len(traces)),
		attribute.Int64("conform.instances", trace.Total(traces)),
	))
	defer span.End()

	begin := time.Now()
	out := BatchResult{Results: make([]Result, 0, len(traces))}

	stop := func(err error) (BatchResult, error) {
		out.Elapsed = time.Since(begin)
		out.Cache = e.cacheStats()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}

	for i, t := range traces {
		res, err := e.replayIsolated(ctx, t)
		if err != nil {
			if IsCacheConflict(err) || ctx.Err() != nil {
				return stop(fmt.Errorf("trace %d: %w", i, err))
			}
			e.logger.Error("trace replay failed", "index", i, "trace", t.String(), "error", err)
			res = Result{Trace: t, Outcome: OutcomeUnfit, Err: err}
		}

		out.Results = append(out.Results, res)
		if res.Fit() {
			out.Instances.Fit += t.Multiplicity()
			out.Unique.Fit++
			continue
		}
		out.Instances.Unfit += t.Multiplicity()
		out.Unique.Unfit++
		if res.Outcome == OutcomeInconclusive {
			out.Inconclusive++
		}
	}

	out.Elapsed = time.Since(begin)
	out.Cache = e.cacheStats()
	span.SetAttributes(
		attribute.Int64("conform.fit", out.Instances.Fit),
		attribute.Int64("conform.unfit", out.Instances.Unfit),
	)
	e.logger.Info("batch replayed",
		"traces", out.Unique.Total(), "instances", out.Instances.Total(),
		"fit", out.Instances.Fit, "unfit", out.Instances.Unfit,
		"unique_fit", out.Unique.Fit, "unique_unfit", out.Unique.Unfit,
		"inconclusive", out.Inconclusive, "elapsed", out.Elapsed)
	return out, nil
}

// errPanic marks a trace whose replay panicked.
var errPanic = errors.New("replay panicked")

func (e *Engine) replayIsolated(ctx context.Context, t trace.Counted) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Trace: t, Outcome: OutcomeUnfit, Err: fmt.Errorf("%w: %v", errPanic, r)}
			err = nil
			e.logger.Error("trace replay panicked", "trace", t.String(), "panic", r)
		}
	}()
	if e.simple {
		return e.ReplaySimple(ctx, t)
	}
	return e.ReplayTrace(ctx, t)
}

func (e *Engine) cacheStats() CacheStats {
	if e.cache == nil {
		return CacheStats{}
	}
	return e.cache.Stats()
}
