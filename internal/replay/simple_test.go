package replay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/conform/internal/graph"
	"github.com/roach88/conform/internal/testutil"
	"github.com/roach88/conform/internal/trace"
)

// sequences returns every sequence over labels up to length n, the empty
// sequence included.
func sequences(labels []string, n int) [][]string {
	out := [][]string{{}}
	frontier := [][]string{{}}
	for i := 0; i < n; i++ {
		var next [][]string
		for _, prefix := range frontier {
			for _, l := range labels {
				seq := append(append([]string(nil), prefix...), l)
				next = append(next, seq)
			}
		}
		out = append(out, next...)
		frontier = next
	}
	return out
}

// sequential is a model without parallel gateways that mixes choice,
// skipping and looping:
//
//	start -> A -> X1
//	X1 -> B -> M1, X1 -> C -> M1, X1 -> M1
//	M1 -> M2 -> D -> X2, X2 -> M2, X2 -> end
func sequential(t testing.TB) *graph.Graph {
	return testutil.MustGraph(t,
		[]graph.Node{
			testutil.Gateway("start", graph.NodeStart),
			testutil.Task("A"),
			testutil.Gateway("X1", graph.NodeXorSplit),
			testutil.Task("B"), testutil.Task("C"),
			testutil.Gateway("M1", graph.NodeXorJoin),
			testutil.Gateway("M2", graph.NodeXorJoin),
			testutil.Task("D"),
			testutil.Gateway("X2", graph.NodeXorSplit),
			testutil.Gateway("end", graph.NodeEnd),
		},
		[]graph.Edge{
			testutil.Flow("start", "A"),
			testutil.Flow("A", "X1"),
			testutil.Flow("X1", "B"), testutil.Flow("X1", "C"), testutil.Flow("X1", "M1"),
			testutil.Flow("B", "M1"), testutil.Flow("C", "M1"),
			testutil.Flow("M1", "M2"),
			testutil.Flow("M2", "D"),
			testutil.Flow("D", "X2"),
			testutil.Flow("X2", "M2"), testutil.Flow("X2", "end"),
		},
	)
}

func TestReplaySimple_AgreesWithSearch(t *testing.T) {
	models := []struct {
		name   string
		build  func(testing.TB) *graph.Graph
		labels []string
	}{
		{"linear", testutil.Linear, []string{"A"}},
		{"choice", testutil.Choice, []string{"A", "B"}},
		{"loop", testutil.Loop, []string{"A"}},
		{"skip", testutil.Skip, []string{"A"}},
		{"sequential", sequential, []string{"A", "B", "C", "D"}},
	}

	ctx := context.Background()
	for _, m := range models {
		t.Run(m.name, func(t *testing.T) {
			searchGraph, simpleGraph := m.build(t), m.build(t)
			search := New(searchGraph, quiet(), WithMaxWidth(0))
			simple := New(simpleGraph, quiet())

			fit := 0
			for _, seq := range sequences(m.labels, 4) {
				tr := trace.Counted{Events: seq, Count: 1}
				a, err := search.ReplayTrace(ctx, tr)
				require.NoError(t, err)
				b, err := simple.ReplaySimple(ctx, tr)
				require.NoError(t, err)
				require.Equal(t, a.Fit(), b.Fit(), "trace %q", tr.String())
				if a.Fit() {
					fit++
				}
			}
			assert.Greater(t, fit, 0)
			assert.Equal(t, searchGraph.Counts(), simpleGraph.Counts())
			assert.Empty(t, simpleGraph.ValidateCounts())
		})
	}
}

func TestReplaySimple_RejectsParallelModels(t *testing.T) {
	e := New(testutil.Parallel(t), quiet())
	_, err := e.ReplaySimple(context.Background(), counted(1, "A", "B"))
	require.ErrorIs(t, err, ErrParallelModel)
}

func TestReplaySimple_Unfit(t *testing.T) {
	g := testutil.Choice(t)
	e := New(g, quiet())

	res, err := e.ReplaySimple(context.Background(), counted(1, "A", "B"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnfit, res.Outcome)
	require.True(t, IsPathExhausted(res.Err))

	var re *Error
	require.ErrorAs(t, res.Err, &re)
	assert.Equal(t, 1, re.Event)
	assert.Equal(t, "B", re.Label)

	res, err = e.ReplaySimple(context.Background(), counted(1, "Q"))
	require.NoError(t, err)
	assert.True(t, IsMissingLabel(res.Err))
}

func TestReplayBatch_SimpleMode(t *testing.T) {
	rec := &countingRecorder{traces: map[Outcome]int64{}}
	g := testutil.Choice(t)
	e := New(g, quiet(), WithSimple(true), WithRecorder(rec))

	out, err := e.ReplayBatch(context.Background(), []trace.Counted{
		counted(2, "A"),
		counted(1, "A", "B"),
	})
	require.NoError(t, err)
	assert.Equal(t, Tally{Fit: 2, Unfit: 1}, out.Instances)
	assert.Equal(t, int64(2), rec.traces[OutcomeFit])
	assert.Equal(t, 0, rec.searches, "simple replay does not search")

	_, err = New(testutil.Parallel(t), quiet(), WithSimple(true)).
		ReplayBatch(context.Background(), []trace.Counted{counted(1, "A", "B")})
	require.ErrorIs(t, err, ErrParallelModel)
}
