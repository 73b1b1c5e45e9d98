// Package loader reads workflow models from CUE or YAML files.
//
// Both formats describe the same document:
//
//	model: {
//		name: "order"
//		nodes: [{id: "start", type: "start"}, {id: "a", type: "task", label: "approve"}, ...]
//		edges: [{from: "start", to: "a"}, ...]
//	}
//
// Task labels default to the task id. Counts are optional and default to
// zero, which is what a fresh replay expects.
package loader

import (
	"github.com/roach88/conform/internal/graph"
)

// Model is the file representation of a workflow graph.
type Model struct {
	Name  string     `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes []NodeSpec `json:"nodes" yaml:"nodes"`
	Edges []EdgeSpec `json:"edges" yaml:"edges"`
}

// NodeSpec is one node of a model file.
type NodeSpec struct {
	ID    string `json:"id" yaml:"id"`
	Type  string `json:"type" yaml:"type"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	Count int64  `json:"count,omitempty" yaml:"count,omitempty"`
}

// EdgeSpec is one edge of a model file.
type EdgeSpec struct {
	From  string `json:"from" yaml:"from"`
	To    string `json:"to" yaml:"to"`
	Count int64  `json:"count,omitempty" yaml:"count,omitempty"`
}

// Graph builds a graph from the model. Structural problems are returned as
// *graph.StructuralError.
func (m *Model) Graph() (*graph.Graph, error) {
	nodes := make([]graph.Node, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		node := graph.Node{ID: n.ID, Type: graph.NodeType(n.Type), Label: n.Label, Count: n.Count}
		if node.Type == graph.NodeTask && node.Label == "" {
			node.Label = n.ID
		}
		nodes = append(nodes, node)
	}
	edges := make([]graph.Edge, 0, len(m.Edges))
	for _, e := range m.Edges {
		edges = append(edges, graph.Edge{Src: e.From, Dst: e.To, Count: e.Count})
	}
	return graph.New(nodes, edges)
}

// FromGraph converts a graph, counts included, back into a model.
func FromGraph(name string, g *graph.Graph) *Model {
	m := &Model{Name: name}
	for _, n := range g.Nodes() {
		m.Nodes = append(m.Nodes, NodeSpec{ID: n.ID, Type: string(n.Type), Label: n.Label, Count: n.Count})
	}
	for _, e := range g.Edges() {
		m.Edges = append(m.Edges, EdgeSpec{From: e.Src, To: e.Dst, Count: e.Count})
	}
	return m
}
