package graph

import (
	"golang.org/x/text/unicode/norm"
)

// Graph is a workflow model with typed nodes and counted edges.
//
// INVARIANTS:
//   - exactly one start node with out-degree 1 and one end node with in-degree 1
//   - succ/pred contain exactly the pairs in edges, in both directions
//   - labels maps NFC-normalized task labels to task ids in insertion order
//
// A Graph is not safe for concurrent mutation. Replay of a graph happens on
// one goroutine.
type Graph struct {
	nodes     map[string]*Node
	nodeOrder []string

	edges     map[EdgeKey]*Edge
	edgeOrder []EdgeKey

	succ map[string][]string
	pred map[string][]string

	labels  map[string][]string
	labelOf map[string]string

	start string
	end   string
}

// New builds a graph from node and edge lists.
//
// The lists are copied; the caller keeps ownership of its slices. Returns a
// StructuralError when ids are duplicated, an edge references an unknown
// node, an edge is listed twice, start/end are missing or have the wrong
// degree, or a gateway has no outgoing (split) or incoming (join) edge.
func New(nodes []Node, edges []Edge) (*Graph, error) {
	g := &Graph{
		nodes:   make(map[string]*Node, len(nodes)),
		edges:   make(map[EdgeKey]*Edge, len(edges)),
		succ:    make(map[string][]string, len(nodes)),
		pred:    make(map[string][]string, len(nodes)),
		labels:  make(map[string][]string),
		labelOf: make(map[string]string),
	}

	for _, n := range nodes {
		if n.ID == "" {
			return nil, structuralf("", "node id must not be empty")
		}
		if !n.Type.Valid() {
			return nil, structuralf(n.ID, "unknown node type %q", n.Type)
		}
		if _, dup := g.nodes[n.ID]; dup {
			return nil, structuralf(n.ID, "duplicate node id")
		}
		if n.Count < 0 {
			return nil, structuralf(n.ID, "negative count %d", n.Count)
		}

		switch n.Type {
		case NodeStart:
			if g.start != "" {
				return nil, structuralf(n.ID, "second start node (first is %s)", g.start)
			}
			g.start = n.ID
		case NodeEnd:
			if g.end != "" {
				return nil, structuralf(n.ID, "second end node (first is %s)", g.end)
			}
			g.end = n.ID
		}

		node := n
		node.Label = norm.NFC.String(n.Label)
		g.nodes[n.ID] = &node
		g.nodeOrder = append(g.nodeOrder, n.ID)
		g.indexLabel(&node)
	}

	if g.start == "" {
		return nil, structuralf("", "graph has no start node")
	}
	if g.end == "" {
		return nil, structuralf("", "graph has no end node")
	}

	for _, e := range edges {
		key := e.Key()
		if _, ok := g.nodes[e.Src]; !ok {
			return nil, edgeErrorf(ErrCodeStructural, key, "unknown source node %q", e.Src)
		}
		if _, ok := g.nodes[e.Dst]; !ok {
			return nil, edgeErrorf(ErrCodeStructural, key, "unknown destination node %q", e.Dst)
		}
		if _, dup := g.edges[key]; dup {
			return nil, edgeErrorf(ErrCodeStructural, key, "duplicate edge")
		}
		if e.Count < 0 {
			return nil, edgeErrorf(ErrCodeStructural, key, "negative count %d", e.Count)
		}
		g.addEdge(e.Src, e.Dst, e.Count)
	}

	if err := g.checkStructure(); err != nil {
		return nil, err
	}
	return g, nil
}

// checkStructure verifies the degree constraints that make a graph replayable.
func (g *Graph) checkStructure() error {
	if n := len(g.succ[g.start]); n != 1 {
		return structuralf(g.start, "start node must have out-degree 1, has %d", n)
	}
	if n := len(g.pred[g.end]); n != 1 {
		return structuralf(g.end, "end node must have in-degree 1, has %d", n)
	}
	for _, id := range g.nodeOrder {
		n := g.nodes[id]
		if n.Type.IsSplit() && len(g.succ[id]) == 0 {
			return structuralf(id, "%s has no outgoing edge", n.Type)
		}
		if n.Type.IsJoin() && len(g.pred[id]) == 0 {
			return structuralf(id, "%s has no incoming edge", n.Type)
		}
	}
	return nil
}

func (g *Graph) indexLabel(n *Node) {
	if n.Type != NodeTask {
		return
	}
	g.labels[n.Label] = append(g.labels[n.Label], n.ID)
	g.labelOf[n.ID] = n.Label
}

func (g *Graph) unindexLabel(n *Node) {
	if n.Type != NodeTask {
		return
	}
	ids := removeString(g.labels[n.Label], n.ID)
	if len(ids) == 0 {
		delete(g.labels, n.Label)
	} else {
		g.labels[n.Label] = ids
	}
	delete(g.labelOf, n.ID)
}

// addEdge inserts an edge and updates both adjacency maps.
// The caller guarantees the edge does not exist yet.
func (g *Graph) addEdge(src, dst string, count int64) {
	key := EdgeKey{Src: src, Dst: dst}
	g.edges[key] = &Edge{Src: src, Dst: dst, Count: count}
	g.edgeOrder = append(g.edgeOrder, key)
	g.succ[src] = append(g.succ[src], dst)
	g.pred[dst] = append(g.pred[dst], src)
}

// removeEdge deletes an edge and updates both adjacency maps.
func (g *Graph) removeEdge(key EdgeKey) {
	if _, ok := g.edges[key]; !ok {
		return
	}
	delete(g.edges, key)
	g.edgeOrder = removeKey(g.edgeOrder, key)
	g.succ[key.Src] = removeString(g.succ[key.Src], key.Dst)
	g.pred[key.Dst] = removeString(g.pred[key.Dst], key.Src)
}

// removeNode deletes a node. All edges touching it must be removed first.
func (g *Graph) removeNode(id string) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	g.unindexLabel(n)
	delete(g.nodes, id)
	delete(g.succ, id)
	delete(g.pred, id)
	g.nodeOrder = removeString(g.nodeOrder, id)
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// NodeType returns the type of a node, or "" when it does not exist.
func (g *Graph) NodeType(id string) NodeType {
	if n, ok := g.nodes[id]; ok {
		return n.Type
	}
	return ""
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, *g.nodes[id])
	}
	return out
}

// Edge returns the edge for the given key.
func (g *Graph) Edge(key EdgeKey) (Edge, bool) {
	e, ok := g.edges[key]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// HasEdge reports whether src->dst exists.
func (g *Graph) HasEdge(src, dst string) bool {
	_, ok := g.edges[EdgeKey{Src: src, Dst: dst}]
	return ok
}

// Edges returns copies of all edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edgeOrder))
	for _, key := range g.edgeOrder {
		out = append(out, *g.edges[key])
	}
	return out
}

// Successors returns the ordered successor ids of a node.
// The returned slice must not be modified.
func (g *Graph) Successors(id string) []string {
	return g.succ[id]
}

// Predecessors returns the ordered predecessor ids of a node.
// The returned slice must not be modified.
func (g *Graph) Predecessors(id string) []string {
	return g.pred[id]
}

// Start returns the id of the start node.
func (g *Graph) Start() string { return g.start }

// End returns the id of the end node.
func (g *Graph) End() string { return g.end }

// TasksForLabel returns the task ids an event label resolves to.
// The label is NFC-normalized before lookup.
func (g *Graph) TasksForLabel(label string) []string {
	return g.labels[norm.NFC.String(label)]
}

// LabelOf returns the label of a task node.
func (g *Graph) LabelOf(id string) (string, bool) {
	l, ok := g.labelOf[id]
	return l, ok
}

// Labels returns the number of distinct task labels.
func (g *Graph) Labels() int {
	return len(g.labels)
}

// HasParallel reports whether the graph contains any AND gateway.
func (g *Graph) HasParallel() bool {
	for _, n := range g.nodes {
		if n.Type.IsParallel() {
			return true
		}
	}
	return false
}

// Len returns the number of nodes and edges.
func (g *Graph) Len() (nodes, edges int) {
	return len(g.nodes), len(g.edges)
}

// Clone returns an independent deep copy of the graph, counts included.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		nodes:     make(map[string]*Node, len(g.nodes)),
		nodeOrder: append([]string(nil), g.nodeOrder...),
		edges:     make(map[EdgeKey]*Edge, len(g.edges)),
		edgeOrder: append([]EdgeKey(nil), g.edgeOrder...),
		succ:      make(map[string][]string, len(g.succ)),
		pred:      make(map[string][]string, len(g.pred)),
		labels:    make(map[string][]string, len(g.labels)),
		labelOf:   make(map[string]string, len(g.labelOf)),
		start:     g.start,
		end:       g.end,
	}
	for id, n := range g.nodes {
		node := *n
		c.nodes[id] = &node
	}
	for key, e := range g.edges {
		edge := *e
		c.edges[key] = &edge
	}
	for id, ids := range g.succ {
		c.succ[id] = append([]string(nil), ids...)
	}
	for id, ids := range g.pred {
		c.pred[id] = append([]string(nil), ids...)
	}
	for label, ids := range g.labels {
		c.labels[label] = append([]string(nil), ids...)
	}
	for id, label := range g.labelOf {
		c.labelOf[id] = label
	}
	return c
}

// ResetCounts sets every node and edge count to zero.
func (g *Graph) ResetCounts() {
	for _, n := range g.nodes {
		n.Count = 0
	}
	for _, e := range g.edges {
		e.Count = 0
	}
}

func (g *Graph) nodesOfType(types ...NodeType) []string {
	var ids []string
	for _, id := range g.nodeOrder {
		t := g.nodes[id].Type
		for _, want := range types {
			if t == want {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids
}

func removeString(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i:i], s[i+1:]...)
		}
	}
	return s
}

func removeKey(s []EdgeKey, v EdgeKey) []EdgeKey {
	for i, x := range s {
		if x == v {
			return append(s[:i:i], s[i+1:]...)
		}
	}
	return s
}
