package replay

import (
	"sort"

	"github.com/roach88/conform/internal/graph"
)

// FindPaths enumerates every simple path from any source to any target.
//
// Rules of the walk:
//   - a path never revisits a node, except that it may end on its own source
//     when that source is the target (a loop)
//   - task nodes are opaque: they only appear as the first or last node
//   - a path leaving an and_split through a branch already recorded in st,
//     or ending at an and_join through a predecessor that already arrived,
//     is dropped
//
// Only the first and last edges are filtered. Inner gateway crossings are
// checked when the path is stepped, since a join completed along the way can
// reset the bookkeeping of a split the path crosses later.
//
// The result is ordered by (and_split crossings, and_join crossings, length),
// ties keeping enumeration order. Sources are walked in the order given and,
// for each source, targets in the order given.
func FindPaths(g *graph.Graph, st *State, sources, targets []string) []Path {
	var all []Path
	for _, src := range sources {
		for _, dst := range targets {
			w := walker{g: g, target: dst, onPath: map[string]bool{}}
			w.walk(src, src, nil)
			for _, p := range w.found {
				if pathAllowed(g, st, p) {
					all = append(all, p)
				}
			}
		}
	}
	rank(g, all)
	return all
}

type walker struct {
	g      *graph.Graph
	target string
	onPath map[string]bool
	found  []Path
}

func (w *walker) walk(source, cur string, edges Path) {
	if cur == w.target && len(edges) > 0 {
		w.found = append(w.found, append(Path(nil), edges...))
		return
	}
	w.onPath[cur] = true
	defer delete(w.onPath, cur)

	for _, child := range w.g.Successors(cur) {
		if child != w.target && w.g.NodeType(child) == graph.NodeTask {
			continue
		}
		if w.onPath[child] && !(child == source && child == w.target) {
			continue
		}
		w.walk(source, child, append(edges, graph.EdgeKey{Src: cur, Dst: child}))
	}
}

func pathAllowed(g *graph.Graph, st *State, p Path) bool {
	if len(p) == 0 {
		return false
	}
	first, last := p[0], p[len(p)-1]
	if g.NodeType(first.Src) == graph.NodeAndSplit && st.splitTaken(first.Src, first.Dst) {
		return false
	}
	if g.NodeType(last.Dst) == graph.NodeAndJoin && st.joinArrived(last.Dst, last.Src) {
		return false
	}
	return true
}

// score counts the parallel gateways a path leaves. Paths that cross fewer
// gateways open less bookkeeping and are tried first.
type score struct {
	splits, joins, length int
}

func scorePath(g *graph.Graph, p Path) score {
	s := score{length: len(p)}
	for _, e := range p {
		switch g.NodeType(e.Src) {
		case graph.NodeAndSplit:
			s.splits++
		case graph.NodeAndJoin:
			s.joins++
		}
	}
	return s
}

func rank(g *graph.Graph, paths []Path) {
	scores := make([]score, len(paths))
	for i, p := range paths {
		scores[i] = scorePath(g, p)
	}
	idx := make([]int, len(paths))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		x, y := scores[idx[a]], scores[idx[b]]
		if x.splits != y.splits {
			return x.splits < y.splits
		}
		if x.joins != y.joins {
			return x.joins < y.joins
		}
		return x.length < y.length
	})
	sorted := make([]Path, len(paths))
	for i, j := range idx {
		sorted[i] = paths[j]
	}
	copy(paths, sorted)
}
