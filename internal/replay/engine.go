package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/roach88/conform/internal/graph"
	"github.com/roach88/conform/internal/trace"
)

// DefaultMaxWidth is the default number of ranked candidate paths tried per
// event and per join resolution.
const DefaultMaxWidth = 10

// endMarker is the label of the synthetic step that moves the last token
// to the end node. It cannot collide with a normalized event label.
const endMarker = "\x00end"

const tracerName = "github.com/roach88/conform/internal/replay"

// Outcome classifies a replayed trace.
type Outcome string

const (
	// OutcomeFit means the model explains the trace.
	OutcomeFit Outcome = "fit"

	// OutcomeUnfit means no explanation exists (or a label is unknown).
	OutcomeUnfit Outcome = "unfit"

	// OutcomeInconclusive means the search budget ran out first.
	OutcomeInconclusive Outcome = "inconclusive"
)

// Result is the outcome of replaying one trace.
type Result struct {
	Trace   trace.Counted `json:"trace"`
	Outcome Outcome       `json:"outcome"`

	// Err explains an unfit or inconclusive outcome.
	Err error `json:"-"`

	// Paths are the executed paths of the accepted explanation.
	Paths []Path `json:"-"`

	// Delta is the count update applied to the graph.
	Delta graph.CountDelta `json:"-"`

	// Clean is false when the accepted terminal state had leftover tokens
	// or open gateway bookkeeping.
	Clean bool `json:"clean"`

	SearchNodes int           `json:"search_nodes"`
	MaxDepth    int           `json:"max_depth"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Fit reports whether the trace was explained.
func (r Result) Fit() bool { return r.Outcome == OutcomeFit }

// Reason returns the failure message, or "" for a fit trace.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Engine replays traces against a graph and accumulates counts on it.
//
// An Engine is not safe for concurrent use. Replays of one graph happen
// sequentially; counts are applied after each successful trace.
type Engine struct {
	graph *graph.Graph

	maxWidth       int
	maxSearchNodes int
	cache          *Cache
	strict         bool
	simple         bool

	logger   *slog.Logger
	recorder Recorder
	tracer   oteltrace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxWidth bounds how many ranked paths are tried per step.
//
// Default: 10 (DefaultMaxWidth). A width below the true ambiguity of the
// model can miss an existing explanation. Zero or less means unbounded.
func WithMaxWidth(n int) Option {
	return func(e *Engine) { e.maxWidth = n }
}

// WithCache shares a cache between engines replaying the same graph.
func WithCache(c *Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithNoCache disables memoization.
func WithNoCache() Option {
	return func(e *Engine) { e.cache = nil }
}

// WithMaxSearchNodes sets the search budget per trace.
//
// Default: 100000 (DefaultMaxSearchNodes). Zero or less disables the budget.
func WithMaxSearchNodes(n int) Option {
	return func(e *Engine) { e.maxSearchNodes = n }
}

// WithStrictTerminal makes a terminal state with leftover tokens or open
// gateway bookkeeping a failed branch instead of an accepted one.
func WithStrictTerminal(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithSimple makes ReplayBatch use ReplaySimple. Only graphs without
// parallel gateways can be replayed this way.
func WithSimple(simple bool) Option {
	return func(e *Engine) { e.simple = simple }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithTracer sets the OpenTelemetry tracer.
// Default: the global provider's tracer.
func WithTracer(t oteltrace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// New creates an Engine for g. The engine owns a fresh cache unless
// WithCache or WithNoCache says otherwise.
func New(g *graph.Graph, opts ...Option) *Engine {
	e := &Engine{
		graph:          g,
		maxWidth:       DefaultMaxWidth,
		maxSearchNodes: DefaultMaxSearchNodes,
		cache:          NewCache(),
		logger:         slog.Default(),
		recorder:       nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e
}

// Graph returns the graph the engine replays against.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// Cache returns the engine's cache, or nil when caching is disabled.
func (e *Engine) Cache() *Cache { return e.cache }

// ReplayTrace searches for an explanation of t and, when one is found,
// applies its counts to the graph.
//
// Unknown labels, exhausted candidates and join count mismatches produce an
// unfit Result with a nil error. A spent budget produces an inconclusive
// Result. The returned error is non-nil only for conditions that must stop
// a batch: a cache conflict, a cancelled context or a failure to apply
// counts.
func (e *Engine) ReplayTrace(ctx context.Context, t trace.Counted) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "replay.trace", oteltrace.WithAttributes(
		attribute.Int("conform.events", len(t.Events)),
		attribute.Int64("conform.multiplicity", t.Multiplicity()),
	))
	defer span.End()

	begin := time.Now()
	res := Result{Trace: t}

	finish := func(outcome Outcome, err error) {
		res.Outcome = outcome
		res.Err = err
		res.Elapsed = time.Since(begin)
		span.SetAttributes(
			attribute.String("conform.outcome", string(outcome)),
			attribute.Int("conform.search_nodes", res.SearchNodes),
		)
		e.recorder.TraceReplayed(outcome, t.Multiplicity(), res.Elapsed)
		if outcome != OutcomeFit {
			e.logger.Warn("trace not replayed", "trace", t.String(), "outcome", outcome, "reason", res.Reason())
		}
	}
	fatal := func(err error) (Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}

	steps, err := e.resolve(t)
	if err != nil {
		finish(OutcomeUnfit, err)
		return res, nil
	}

	s := &search{
		engine: e,
		steps:  steps,
		budget: newBudget(e.maxSearchNodes),
	}
	final, err := s.run(ctx)
	res.SearchNodes = s.budget.used()
	res.MaxDepth = s.depth
	e.recorder.SearchFinished(res.SearchNodes, res.MaxDepth)

	switch {
	case err == nil:
	case IsCacheConflict(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fatal(err)
	case IsBudgetExceeded(err):
		finish(OutcomeInconclusive, err)
		return res, nil
	default:
		finish(OutcomeUnfit, err)
		return res, nil
	}

	delta, err := countDelta(e.graph, final.paths, t.Multiplicity())
	if err != nil {
		finish(OutcomeUnfit, err)
		return res, nil
	}
	if err := e.graph.ApplyCounts(delta); err != nil {
		return fatal(fmt.Errorf("apply counts: %w", err))
	}

	res.Paths = final.paths
	res.Delta = delta
	res.Clean = final.IsClean(e.graph.End())
	finish(OutcomeFit, nil)
	return res, nil
}

// step is one position of the search: an event label and the task nodes it
// may resolve to.
type step struct {
	label   string
	targets []string
}

// resolve maps every event to its candidate tasks and appends the synthetic
// end step.
func (e *Engine) resolve(t trace.Counted) ([]step, error) {
	steps := make([]step, 0, len(t.Events)+1)
	for i, ev := range t.Events {
		targets := e.graph.TasksForLabel(ev)
		if len(targets) == 0 {
			return nil, NewMissingLabelError(i, ev)
		}
		steps = append(steps, step{label: ev, targets: targets})
	}
	return append(steps, step{label: endMarker, targets: []string{e.graph.End()}}), nil
}

// countDelta turns the executed paths of an explanation into count updates.
//
// Every edge crossing adds the multiplicity to the edge and to its
// destination; start gains the multiplicity once. A join is crossed once per
// incoming branch, so each join loses (deg-1) for every deg crossings.
func countDelta(g *graph.Graph, paths []Path, mult int64) (graph.CountDelta, error) {
	crossings := make(map[graph.EdgeKey]int64)
	for _, p := range paths {
		for _, e := range p {
			crossings[e]++
		}
	}

	d := graph.NewCountDelta()
	d.Nodes[g.Start()] += mult

	joins := make(map[string]int64)
	for key, n := range crossings {
		d.Edges[key] += n * mult
		d.Nodes[key.Dst] += n * mult
		if g.NodeType(key.Dst) == graph.NodeAndJoin {
			joins[key.Dst] += n
		}
	}

	ids := make([]string, 0, len(joins))
	for id := range joins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := joins[id]
		deg := int64(len(g.Predecessors(id)))
		if n%deg != 0 {
			return graph.CountDelta{}, NewCountMismatchError(id, n, deg)
		}
		d.Nodes[id] -= (n / deg) * (deg - 1) * mult
	}
	return d, nil
}
