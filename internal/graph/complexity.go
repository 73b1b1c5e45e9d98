package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
)

// Complexity summarizes the size and branching structure of a graph.
type Complexity struct {
	Tasks     int `json:"tasks"`
	XorSplits int `json:"xor_splits"`
	XorJoins  int `json:"xor_joins"`
	AndSplits int `json:"and_splits"`
	AndJoins  int `json:"and_joins"`
	Nodes     int `json:"nodes"`
	Edges     int `json:"edges"`

	// CFC is the control-flow complexity: one per and_split plus the
	// out-degree of every xor_split.
	CFC int `json:"cfc"`

	// CNC is the coefficient of network connectivity (edges / nodes).
	CNC float64 `json:"cnc"`
}

// Complexity computes size and branching metrics.
func (g *Graph) Complexity() Complexity {
	var c Complexity
	for _, id := range g.nodeOrder {
		switch g.nodes[id].Type {
		case NodeTask:
			c.Tasks++
		case NodeXorSplit:
			c.XorSplits++
			c.CFC += len(g.succ[id])
		case NodeXorJoin:
			c.XorJoins++
		case NodeAndSplit:
			c.AndSplits++
			c.CFC++
		case NodeAndJoin:
			c.AndJoins++
		}
	}
	c.Nodes = len(g.nodes)
	c.Edges = len(g.edges)
	if c.Nodes > 0 {
		c.CNC = float64(c.Edges) / float64(c.Nodes)
	}
	return c
}

// TrivialGateways lists the gateways with exactly one incoming and one
// outgoing edge, in insertion order. ReduceTrivialGateways removes them.
func (g *Graph) TrivialGateways() []string {
	var ids []string
	for _, id := range g.nodeOrder {
		if g.nodes[id].Type.IsGateway() && len(g.succ[id]) == 1 && len(g.pred[id]) == 1 {
			ids = append(ids, id)
		}
	}
	return ids
}

// domainGraph separates graph fingerprints from other hashes.
// The version suffix allows the encoding to change later.
const domainGraph = "conform/graph/v1"

// Fingerprint returns a content hash of the graph structure.
//
// Node ids, types, labels and edges contribute; counts and insertion order do
// not. Two graphs with the same fingerprint replay identically, which is what
// the store uses to group runs by model.
//
// Format: hex(SHA256(domain + 0x00 + records)), each field length-prefixed.
func (g *Graph) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(domainGraph))
	h.Write([]byte{0x00})

	write := func(s string) {
		h.Write([]byte(strconv.Itoa(len(s))))
		h.Write([]byte{':'})
		h.Write([]byte(s))
	}

	ids := append([]string(nil), g.nodeOrder...)
	sort.Strings(ids)
	for _, id := range ids {
		n := g.nodes[id]
		write("n")
		write(n.ID)
		write(string(n.Type))
		write(n.Label)
	}

	keys := append([]EdgeKey(nil), g.edgeOrder...)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Src != keys[j].Src {
			return keys[i].Src < keys[j].Src
		}
		return keys[i].Dst < keys[j].Dst
	})
	for _, k := range keys {
		write("e")
		write(k.Src)
		write(k.Dst)
	}

	return hex.EncodeToString(h.Sum(nil))
}
