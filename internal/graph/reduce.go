package graph

import (
	"fmt"
	"log/slog"
)

// ReduceTrivialGateways removes every XOR or AND gateway with exactly one
// incoming and one outgoing edge, repeating until nothing changes.
//
// The gateway's parent and child edges are merged into one parent->child edge
// that carries the gateway's count. If parent->child already exists no edge is
// added and the count is dropped: simplification is best effort.
//
// Each round handles XOR gateways before AND gateways.
// Returns true when at least one gateway was removed.
func (g *Graph) ReduceTrivialGateways() bool {
	reduced := false
	for {
		removed := false
		for _, id := range g.nodesOfType(NodeXorSplit, NodeXorJoin) {
			if g.spliceTrivial(id) {
				removed = true
			}
		}
		for _, id := range g.nodesOfType(NodeAndSplit, NodeAndJoin) {
			if g.spliceTrivial(id) {
				removed = true
			}
		}
		if !removed {
			return reduced
		}
		reduced = true
	}
}

func (g *Graph) spliceTrivial(id string) bool {
	n, ok := g.nodes[id]
	if !ok || !n.Type.IsGateway() {
		return false
	}
	if len(g.succ[id]) != 1 || len(g.pred[id]) != 1 {
		return false
	}
	parent, child := g.pred[id][0], g.succ[id][0]
	if parent == id || child == id {
		return false
	}

	slog.Debug("removing trivial gateway", "node", id, "parent", parent, "child", child)

	count := n.Count
	g.removeEdge(EdgeKey{Src: parent, Dst: id})
	g.removeEdge(EdgeKey{Src: id, Dst: child})
	g.removeNode(id)
	if !g.HasEdge(parent, child) {
		g.addEdge(parent, child, count)
	}
	return true
}

// FlattenParallelChains merges directly chained parallel gateways: an
// and_split whose only predecessor is an and_split, or an and_join whose only
// successor is an and_join, is folded into its neighbour.
//
// All edges touching the inner gateway are removed, then every
// (predecessor, successor) pair that is not connected yet gets a new edge
// carrying the inner gateway's count. Repeats until nothing changes.
// Returns true when at least one gateway was merged.
func (g *Graph) FlattenParallelChains() bool {
	merged := false
	for {
		removed := false
		for _, id := range g.nodesOfType(NodeAndSplit, NodeAndJoin) {
			if g.mergeIntoNeighbour(id) {
				removed = true
			}
		}
		if !removed {
			return merged
		}
		merged = true
	}
}

func (g *Graph) mergeIntoNeighbour(id string) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}

	switch n.Type {
	case NodeAndSplit:
		if len(g.pred[id]) != 1 {
			return false
		}
		outer := g.pred[id][0]
		if outer == id || g.nodes[outer].Type != NodeAndSplit {
			return false
		}
		slog.Debug("flattening and_split", "node", id, "into", outer)
	case NodeAndJoin:
		if len(g.succ[id]) != 1 {
			return false
		}
		outer := g.succ[id][0]
		if outer == id || g.nodes[outer].Type != NodeAndJoin {
			return false
		}
		slog.Debug("flattening and_join", "node", id, "into", outer)
	default:
		return false
	}

	parents := append([]string(nil), g.pred[id]...)
	children := append([]string(nil), g.succ[id]...)
	count := n.Count

	for _, p := range parents {
		g.removeEdge(EdgeKey{Src: p, Dst: id})
	}
	for _, c := range children {
		g.removeEdge(EdgeKey{Src: id, Dst: c})
	}
	for _, p := range parents {
		for _, c := range children {
			if !g.HasEdge(p, c) {
				g.addEdge(p, c, count)
			}
		}
	}
	g.removeNode(id)
	return true
}

// RemoveRedundantParallelEdges deletes direct and_split -> and_join edges.
// An edge that is the split's last outgoing edge or the join's last incoming
// edge is kept.
// Returns true when at least one edge was removed.
func (g *Graph) RemoveRedundantParallelEdges() bool {
	removed := false
	for _, key := range append([]EdgeKey(nil), g.edgeOrder...) {
		if g.nodes[key.Src].Type != NodeAndSplit || g.nodes[key.Dst].Type != NodeAndJoin {
			continue
		}
		if len(g.succ[key.Src]) == 1 || len(g.pred[key.Dst]) == 1 {
			continue
		}
		slog.Debug("removing redundant parallel edge", "edge", key.String())
		g.removeEdge(key)
		removed = true
	}
	return removed
}

// Reduce applies ReduceTrivialGateways, FlattenParallelChains and
// RemoveRedundantParallelEdges in rounds until a round changes nothing.
// It reports whether the graph changed at all.
func (g *Graph) Reduce() bool {
	reduced := false
	for {
		changed := g.ReduceTrivialGateways()
		changed = g.FlattenParallelChains() || changed
		changed = g.RemoveRedundantParallelEdges() || changed
		if !changed {
			return reduced
		}
		reduced = true
	}
}

// Simplified returns a new graph restricted to the nonzero-count part of g,
// simplified until no reduction applies.
//
// Nodes with a zero count are dropped. Edges survive when both endpoints do.
// The projection is then reduced, flattened and stripped of redundant
// parallel edges until a full round changes nothing. Count violations in the
// result are logged, never returned as errors.
func (g *Graph) Simplified() (*Graph, error) {
	var nodes []Node
	keep := make(map[string]bool)
	for _, id := range g.nodeOrder {
		n := g.nodes[id]
		if n.Count == 0 {
			continue
		}
		nodes = append(nodes, *n)
		keep[id] = true
	}

	var edges []Edge
	for _, key := range g.edgeOrder {
		e := g.edges[key]
		if keep[e.Src] && keep[e.Dst] {
			edges = append(edges, *e)
		} else if e.Count != 0 {
			slog.Warn("dropping counted edge with an uncounted endpoint", "edge", key.String(), "count", e.Count)
		}
	}

	res, err := New(nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("simplified projection: %w", err)
	}

	res.Reduce()

	if violations := res.ValidateCounts(); len(violations) > 0 {
		for _, v := range violations {
			slog.Warn("count violation in simplified graph", "node", v.NodeID, "rule", v.Rule,
				"expected", v.Expected, "actual", v.Actual)
		}
	}
	return res, nil
}
