package graph

import (
	"bufio"
	"fmt"
	"io"
)

// WriteText writes a line-oriented listing of the graph: one line per node
// in insertion order, then one line per edge in insertion order.
//
//	node A task label="A" count=3
//	edge start->A count=3
func (g *Graph) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, id := range g.nodeOrder {
		n := g.nodes[id]
		fmt.Fprintf(bw, "node %s %s", n.ID, n.Type)
		if n.Label != "" {
			fmt.Fprintf(bw, " label=%q", n.Label)
		}
		fmt.Fprintf(bw, " count=%d\n", n.Count)
	}
	for _, key := range g.edgeOrder {
		fmt.Fprintf(bw, "edge %s count=%d\n", key, g.edges[key].Count)
	}
	return bw.Flush()
}
