package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/conform/internal/testutil"
	"github.com/roach88/conform/internal/trace"
)

func TestReplayBatch_Tallies(t *testing.T) {
	g := testutil.Parallel(t)
	e := New(g, quiet())

	traces := []trace.Counted{
		counted(2, "A", "B"),
		counted(3, "B", "A"),
		counted(1, "A"),
		counted(4, "Z"),
	}
	out, err := e.ReplayBatch(context.Background(), traces)
	require.NoError(t, err)

	assert.Equal(t, Tally{Fit: 5, Unfit: 5}, out.Instances)
	assert.Equal(t, Tally{Fit: 2, Unfit: 2}, out.Unique)
	assert.Equal(t, 0, out.Inconclusive)
	require.Len(t, out.Results, 4)
	assert.True(t, IsMissingLabel(out.Results[3].Err))

	assert.Equal(t, int64(5), nodeCount(t, g, "S"))
	assert.Equal(t, int64(5), nodeCount(t, g, "J"))
	assert.Equal(t, int64(5), nodeCount(t, g, "end"))
	assert.Empty(t, g.ValidateCounts(), "counts must balance after a batch")
}

func TestReplayBatch_CountsInconclusive(t *testing.T) {
	e := New(testutil.Parallel(t), quiet(), WithMaxSearchNodes(1))

	out, err := e.ReplayBatch(context.Background(), []trace.Counted{counted(2, "A", "B")})
	require.NoError(t, err)
	assert.Equal(t, Tally{Unfit: 2}, out.Instances)
	assert.Equal(t, 1, out.Inconclusive)
}

type panicRecorder struct {
	nopRecorder
	on int64
}

func (p panicRecorder) TraceReplayed(_ Outcome, instances int64, _ time.Duration) {
	if instances == p.on {
		panic("recorder exploded")
	}
}

func TestReplayBatch_IsolatesPanics(t *testing.T) {
	g := testutil.Linear(t)
	e := New(g, quiet(), WithRecorder(panicRecorder{on: 7}))

	out, err := e.ReplayBatch(context.Background(), []trace.Counted{
		counted(7, "A"),
		counted(1, "A"),
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)

	assert.Equal(t, OutcomeUnfit, out.Results[0].Outcome)
	assert.True(t, errors.Is(out.Results[0].Err, errPanic))
	assert.True(t, out.Results[1].Fit())
	assert.Equal(t, Tally{Fit: 1, Unfit: 7}, out.Instances)
}

func TestReplayBatch_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(testutil.Linear(t), quiet())
	out, err := e.ReplayBatch(ctx, []trace.Counted{counted(1, "A"), counted(1, "A")})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.Results)
}

func TestReplayBatch_CacheStats(t *testing.T) {
	e := New(testutil.Parallel(t), quiet())
	out, err := e.ReplayBatch(context.Background(), []trace.Counted{
		counted(1, "A", "B"),
		counted(1, "A", "B", "A"),
	})
	require.NoError(t, err)
	assert.Greater(t, out.Cache.Entries, 0)
	assert.Equal(t, Tally{Fit: 1, Unfit: 1}, out.Unique)
}

// conflictRecorder writes the root entry of the next trace into the cache
// right after that trace looked it up and missed. The search then finds a
// written key when it stores its result.
type conflictRecorder struct {
	nopRecorder
	cache *Cache
	root  CacheKey
	armed bool
}

func (c *conflictRecorder) TraceReplayed(Outcome, int64, time.Duration) { c.armed = true }

func (c *conflictRecorder) CacheLookup(hit bool) {
	if c.armed && !hit {
		c.armed = false
		_ = c.cache.putFailure(c.root)
	}
}

func TestReplayBatch_StopsOnCacheConflict(t *testing.T) {
	g := testutil.Parallel(t)
	rec := &conflictRecorder{root: cacheKey(NewState(g.Start()), []string{"B", "A", endMarker})}
	e := New(g, quiet(), WithRecorder(rec))
	rec.cache = e.Cache()

	out, err := e.ReplayBatch(context.Background(), []trace.Counted{
		counted(2, "A", "B"),
		counted(1, "B", "A"),
		counted(1, "A", "B"),
	})
	require.Error(t, err)
	assert.True(t, IsCacheConflict(err))
	assert.Contains(t, err.Error(), "trace 1")

	require.Len(t, out.Results, 1, "the batch stops at the conflicting trace")
	assert.True(t, out.Results[0].Fit())
	assert.Equal(t, Tally{Fit: 2}, out.Instances)
	assert.Equal(t, int64(2), nodeCount(t, g, "S"), "the conflicting trace adds no counts")
}

type countingRecorder struct {
	traces   map[Outcome]int64
	lookups  int
	searches int
}

func (c *countingRecorder) TraceReplayed(o Outcome, n int64, _ time.Duration) { c.traces[o] += n }
func (c *countingRecorder) CacheLookup(bool)                                  { c.lookups++ }
func (c *countingRecorder) SearchFinished(int, int)                           { c.searches++ }

func TestReplayBatch_Recorder(t *testing.T) {
	rec := &countingRecorder{traces: map[Outcome]int64{}}
	e := New(testutil.Parallel(t), quiet(), WithRecorder(rec))

	_, err := e.ReplayBatch(context.Background(), []trace.Counted{
		counted(3, "B", "A"),
		counted(2, "A"),
		counted(1, "nope"),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), rec.traces[OutcomeFit])
	assert.Equal(t, int64(3), rec.traces[OutcomeUnfit])
	assert.Equal(t, 2, rec.searches, "unknown labels fail before the search")
	assert.Greater(t, rec.lookups, 0)
}

func TestReplayBatch_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	e := New(testutil.Parallel(t), quiet(), WithTracer(tp.Tracer("test")))
	_, err := e.ReplayBatch(context.Background(), []trace.Counted{
		counted(1, "A", "B"),
		counted(1, "A"),
	})
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	// Children end before their parent.
	assert.Equal(t, "replay.trace", spans[0].Name)
	assert.Equal(t, "replay.trace", spans[1].Name)
	assert.Equal(t, "replay.batch", spans[2].Name)

	outcome := func(s tracetest.SpanStub) string {
		for _, kv := range s.Attributes {
			if kv.Key == attribute.Key("conform.outcome") {
				return kv.Value.AsString()
			}
		}
		return ""
	}
	assert.Equal(t, "fit", outcome(spans[0]))
	assert.Equal(t, "unfit", outcome(spans[1]))
	assert.Equal(t, spans[2].SpanContext.TraceID(), spans[0].SpanContext.TraceID())
}
