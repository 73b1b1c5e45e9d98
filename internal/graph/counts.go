package graph

import "fmt"

// CountDelta collects the count updates produced by one replayed trace.
type CountDelta struct {
	Nodes map[string]int64
	Edges map[EdgeKey]int64
}

// NewCountDelta returns an empty delta.
func NewCountDelta() CountDelta {
	return CountDelta{
		Nodes: make(map[string]int64),
		Edges: make(map[EdgeKey]int64),
	}
}

// IsZero reports whether the delta changes nothing.
func (d CountDelta) IsZero() bool {
	for _, v := range d.Nodes {
		if v != 0 {
			return false
		}
	}
	for _, v := range d.Edges {
		if v != 0 {
			return false
		}
	}
	return true
}

// ApplyCounts adds a delta to the node and edge counts.
//
// The delta is validated as a whole first: if any key is unknown or any
// count would become negative, nothing is applied and a StructuralError
// with ErrCodeUnknownElement (or ErrCodeStructural) is returned.
func (g *Graph) ApplyCounts(d CountDelta) error {
	for id, v := range d.Nodes {
		n, ok := g.nodes[id]
		if !ok {
			return &StructuralError{Code: ErrCodeUnknownElement, Message: "count delta for unknown node", NodeID: id}
		}
		if n.Count+v < 0 {
			return structuralf(id, "count would become negative (%d%+d)", n.Count, v)
		}
	}
	for key, v := range d.Edges {
		e, ok := g.edges[key]
		if !ok {
			return edgeErrorf(ErrCodeUnknownElement, key, "count delta for unknown edge")
		}
		if e.Count+v < 0 {
			return edgeErrorf(ErrCodeStructural, key, "count would become negative (%d%+d)", e.Count, v)
		}
	}

	for id, v := range d.Nodes {
		g.nodes[id].Count += v
	}
	for key, v := range d.Edges {
		g.edges[key].Count += v
	}
	return nil
}

// Counts returns a snapshot of all counts keyed by node id and edge key.
func (g *Graph) Counts() CountDelta {
	snap := NewCountDelta()
	for id, n := range g.nodes {
		snap.Nodes[id] = n.Count
	}
	for key, e := range g.edges {
		snap.Edges[key] = e.Count
	}
	return snap
}

// String renders the delta size for logs.
func (d CountDelta) String() string {
	return fmt.Sprintf("delta(nodes=%d, edges=%d)", len(d.Nodes), len(d.Edges))
}
