package graph

import "fmt"

// NodeType classifies a node of the workflow graph.
type NodeType string

const (
	NodeStart    NodeType = "start"
	NodeEnd      NodeType = "end"
	NodeTask     NodeType = "task"
	NodeXorSplit NodeType = "xor_split"
	NodeXorJoin  NodeType = "xor_join"
	NodeAndSplit NodeType = "and_split"
	NodeAndJoin  NodeType = "and_join"
	NodeFake     NodeType = "fake"
)

// NodeTypes lists every valid node type in declaration order.
var NodeTypes = []NodeType{
	NodeStart, NodeEnd, NodeTask,
	NodeXorSplit, NodeXorJoin,
	NodeAndSplit, NodeAndJoin,
	NodeFake,
}

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsGateway reports whether t is an XOR or AND gateway.
func (t NodeType) IsGateway() bool {
	return t.IsExclusive() || t.IsParallel()
}

// IsParallel reports whether t is an AND split or join.
func (t NodeType) IsParallel() bool {
	return t == NodeAndSplit || t == NodeAndJoin
}

// IsExclusive reports whether t is an XOR split or join.
func (t NodeType) IsExclusive() bool {
	return t == NodeXorSplit || t == NodeXorJoin
}

// IsSplit reports whether t is a diverging gateway.
func (t NodeType) IsSplit() bool {
	return t == NodeXorSplit || t == NodeAndSplit
}

// IsJoin reports whether t is a converging gateway.
func (t NodeType) IsJoin() bool {
	return t == NodeXorJoin || t == NodeAndJoin
}

// Node is a single element of the workflow graph.
//
// Count is the number of times replay attributed an execution to the node.
// It is only mutated through Graph.ApplyCounts.
type Node struct {
	ID    string   `json:"id" yaml:"id"`
	Type  NodeType `json:"type" yaml:"type"`
	Label string   `json:"label,omitempty" yaml:"label,omitempty"`
	Count int64    `json:"count" yaml:"count"`
}

// EdgeKey identifies an edge. There is at most one edge per ordered pair.
type EdgeKey struct {
	Src string
	Dst string
}

// String renders the key as "src->dst".
func (k EdgeKey) String() string {
	return fmt.Sprintf("%s->%s", k.Src, k.Dst)
}

// Edge is a directed sequence flow between two nodes.
type Edge struct {
	Src   string `json:"src" yaml:"src"`
	Dst   string `json:"dst" yaml:"dst"`
	Count int64  `json:"count" yaml:"count"`
}

// Key returns the identity of the edge.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Src: e.Src, Dst: e.Dst}
}
