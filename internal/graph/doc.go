// Package graph implements the workflow graph that replay runs against.
//
// A Graph holds typed nodes (start, end, tasks and XOR/AND gateways) and
// directed edges identified by their (src, dst) pair. Every mutation keeps
// three derived indexes in lockstep with the edge set:
//
//   - forward adjacency: node -> ordered successor ids
//   - reverse adjacency: node -> ordered predecessor ids
//   - label index: event label -> task node ids (gateways excluded)
//
// CheckIndex verifies the adjacency maps against the edge index. Count
// balance is checked by ValidateCounts, which reports violations instead of
// failing: it is a post-replay sanity check, never a precondition.
//
// # Simplification
//
// ReduceTrivialGateways, FlattenParallelChains and
// RemoveRedundantParallelEdges rewrite the graph in place. Simplified builds
// a projection onto the nonzero-count part of the graph and runs the three
// rewrites to a fixpoint.
//
// # Counts
//
// Node and edge counts only change through ApplyCounts, which validates a
// whole CountDelta before touching anything. A failed trace can therefore
// never leave partial counts behind.
package graph
