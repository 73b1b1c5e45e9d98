// Package testutil provides graph fixtures and deterministic generators for
// tests across packages.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/conform/internal/graph"
)

// Task returns a task node whose label equals its id.
func Task(id string) graph.Node {
	return graph.Node{ID: id, Type: graph.NodeTask, Label: id}
}

// Gateway returns a gateway (or start/end) node without label.
func Gateway(id string, t graph.NodeType) graph.Node {
	return graph.Node{ID: id, Type: t}
}

// Flow returns an edge with zero count.
func Flow(src, dst string) graph.Edge {
	return graph.Edge{Src: src, Dst: dst}
}

// MustGraph builds a graph and fails the test on error.
func MustGraph(t testing.TB, nodes []graph.Node, edges []graph.Edge) *graph.Graph {
	t.Helper()
	g, err := graph.New(nodes, edges)
	require.NoError(t, err)
	return g
}

// Linear is start -> A -> end.
func Linear(t testing.TB) *graph.Graph {
	return MustGraph(t,
		[]graph.Node{Gateway("start", graph.NodeStart), Task("A"), Gateway("end", graph.NodeEnd)},
		[]graph.Edge{Flow("start", "A"), Flow("A", "end")},
	)
}

// Parallel is start -> S, S -> A -> J, S -> B -> J, J -> end with S an
// and_split and J an and_join.
func Parallel(t testing.TB) *graph.Graph {
	return MustGraph(t,
		[]graph.Node{
			Gateway("start", graph.NodeStart),
			Gateway("S", graph.NodeAndSplit),
			Task("A"), Task("B"),
			Gateway("J", graph.NodeAndJoin),
			Gateway("end", graph.NodeEnd),
		},
		[]graph.Edge{
			Flow("start", "S"),
			Flow("S", "A"), Flow("S", "B"),
			Flow("A", "J"), Flow("B", "J"),
			Flow("J", "end"),
		},
	)
}

// Choice is start -> X, X -> A -> M, X -> B -> M, M -> end with X an
// xor_split and M an xor_join.
func Choice(t testing.TB) *graph.Graph {
	return MustGraph(t,
		[]graph.Node{
			Gateway("start", graph.NodeStart),
			Gateway("X", graph.NodeXorSplit),
			Task("A"), Task("B"),
			Gateway("M", graph.NodeXorJoin),
			Gateway("end", graph.NodeEnd),
		},
		[]graph.Edge{
			Flow("start", "X"),
			Flow("X", "A"), Flow("X", "B"),
			Flow("A", "M"), Flow("B", "M"),
			Flow("M", "end"),
		},
	)
}

// Loop repeats A any number of times:
// start -> M -> A -> X, X -> M, X -> end. M is an xor_join, X an xor_split.
func Loop(t testing.TB) *graph.Graph {
	return MustGraph(t,
		[]graph.Node{
			Gateway("start", graph.NodeStart),
			Gateway("M", graph.NodeXorJoin),
			Task("A"),
			Gateway("X", graph.NodeXorSplit),
			Gateway("end", graph.NodeEnd),
		},
		[]graph.Edge{
			Flow("start", "M"),
			Flow("M", "A"),
			Flow("A", "X"),
			Flow("X", "M"), Flow("X", "end"),
		},
	)
}

// Skip lets A be skipped: start -> X, X -> A -> M, X -> M, M -> end.
func Skip(t testing.TB) *graph.Graph {
	return MustGraph(t,
		[]graph.Node{
			Gateway("start", graph.NodeStart),
			Gateway("X", graph.NodeXorSplit),
			Task("A"),
			Gateway("M", graph.NodeXorJoin),
			Gateway("end", graph.NodeEnd),
		},
		[]graph.Edge{
			Flow("start", "X"),
			Flow("X", "A"), Flow("X", "M"),
			Flow("A", "M"),
			Flow("M", "end"),
		},
	)
}

// NestedParallel runs A in parallel with a nested block of B and C:
//
//	start -> S1, S1 -> A -> J1, S1 -> S2, S2 -> B -> J2, S2 -> C -> J2,
//	J2 -> J1, J1 -> end
func NestedParallel(t testing.TB) *graph.Graph {
	return MustGraph(t,
		[]graph.Node{
			Gateway("start", graph.NodeStart),
			Gateway("S1", graph.NodeAndSplit),
			Gateway("S2", graph.NodeAndSplit),
			Task("A"), Task("B"), Task("C"),
			Gateway("J2", graph.NodeAndJoin),
			Gateway("J1", graph.NodeAndJoin),
			Gateway("end", graph.NodeEnd),
		},
		[]graph.Edge{
			Flow("start", "S1"),
			Flow("S1", "A"), Flow("S1", "S2"),
			Flow("S2", "B"), Flow("S2", "C"),
			Flow("B", "J2"), Flow("C", "J2"),
			Flow("A", "J1"), Flow("J2", "J1"),
			Flow("J1", "end"),
		},
	)
}
