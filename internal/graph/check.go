package graph

import "fmt"

// CheckIndex verifies that forward adjacency, reverse adjacency, the edge
// index and the label index agree with each other.
//
// Every graph mutation keeps them in lockstep; CheckIndex exists so tests and
// the validate command can prove it instead of trusting it.
func (g *Graph) CheckIndex() error {
	for src, dsts := range g.succ {
		if _, ok := g.nodes[src]; !ok {
			return structuralf(src, "adjacency entry for unknown node")
		}
		for _, dst := range dsts {
			key := EdgeKey{Src: src, Dst: dst}
			if _, ok := g.edges[key]; !ok {
				return edgeErrorf(ErrCodeStructural, key, "successor without edge")
			}
			if !containsString(g.pred[dst], src) {
				return edgeErrorf(ErrCodeStructural, key, "successor without matching predecessor")
			}
		}
	}
	for dst, srcs := range g.pred {
		if _, ok := g.nodes[dst]; !ok {
			return structuralf(dst, "reverse adjacency entry for unknown node")
		}
		for _, src := range srcs {
			key := EdgeKey{Src: src, Dst: dst}
			if _, ok := g.edges[key]; !ok {
				return edgeErrorf(ErrCodeStructural, key, "predecessor without edge")
			}
			if !containsString(g.succ[src], dst) {
				return edgeErrorf(ErrCodeStructural, key, "predecessor without matching successor")
			}
		}
	}
	for key := range g.edges {
		if _, ok := g.nodes[key.Src]; !ok {
			return edgeErrorf(ErrCodeStructural, key, "edge from unknown node")
		}
		if _, ok := g.nodes[key.Dst]; !ok {
			return edgeErrorf(ErrCodeStructural, key, "edge to unknown node")
		}
		if !containsString(g.succ[key.Src], key.Dst) || !containsString(g.pred[key.Dst], key.Src) {
			return edgeErrorf(ErrCodeStructural, key, "edge missing from adjacency")
		}
	}
	if len(g.edgeOrder) != len(g.edges) {
		return structuralf("", "edge order lists %d edges, index has %d", len(g.edgeOrder), len(g.edges))
	}
	if len(g.nodeOrder) != len(g.nodes) {
		return structuralf("", "node order lists %d nodes, index has %d", len(g.nodeOrder), len(g.nodes))
	}
	for label, ids := range g.labels {
		for _, id := range ids {
			n, ok := g.nodes[id]
			if !ok || n.Type != NodeTask || n.Label != label {
				return structuralf(id, "label index entry %q is stale", label)
			}
		}
	}
	return g.checkStructure()
}

// CountViolation describes a node whose count does not balance with the
// counts of its edges.
type CountViolation struct {
	NodeID   string `json:"node_id"`
	Rule     string `json:"rule"`
	Expected int64  `json:"expected"`
	Actual   int64  `json:"actual"`
}

func (v CountViolation) String() string {
	return fmt.Sprintf("%s: %s: expected %d, got %d", v.NodeID, v.Rule, v.Expected, v.Actual)
}

// ValidateCounts reports every node whose count balance is violated.
//
// Rules:
//   - start: count equals its outgoing edge count
//   - end: count equals its incoming edge count
//   - and_split: count equals the incoming count and every outgoing edge count
//   - and_join: count equals every incoming edge count and the outgoing count
//   - everything else: incoming sum = count = outgoing sum
//
// The and_join rule assumes the fan-in correction applied by replay.
func (g *Graph) ValidateCounts() []CountViolation {
	var violations []CountViolation
	add := func(id, rule string, expected, actual int64) {
		if expected != actual {
			violations = append(violations, CountViolation{NodeID: id, Rule: rule, Expected: expected, Actual: actual})
		}
	}

	for _, id := range g.nodeOrder {
		n := g.nodes[id]
		in, out := g.inSum(id), g.outSum(id)

		switch n.Type {
		case NodeStart:
			add(id, "outgoing", n.Count, out)
		case NodeEnd:
			add(id, "incoming", n.Count, in)
		case NodeAndSplit:
			add(id, "incoming", n.Count, in)
			for _, dst := range g.succ[id] {
				add(id, "branch "+dst, n.Count, g.edges[EdgeKey{Src: id, Dst: dst}].Count)
			}
		case NodeAndJoin:
			for _, src := range g.pred[id] {
				add(id, "branch "+src, n.Count, g.edges[EdgeKey{Src: src, Dst: id}].Count)
			}
			add(id, "outgoing", n.Count, out)
		default:
			add(id, "incoming", n.Count, in)
			add(id, "outgoing", n.Count, out)
		}
	}
	return violations
}

func (g *Graph) inSum(id string) int64 {
	var sum int64
	for _, src := range g.pred[id] {
		sum += g.edges[EdgeKey{Src: src, Dst: id}].Count
	}
	return sum
}

func (g *Graph) outSum(id string) int64 {
	var sum int64
	for _, dst := range g.succ[id] {
		sum += g.edges[EdgeKey{Src: id, Dst: dst}].Count
	}
	return sum
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
