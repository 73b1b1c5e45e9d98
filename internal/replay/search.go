package replay

import (
	"context"

	"github.com/roach88/conform/internal/graph"
)

// search is the backtracking replay of one trace.
//
// The search stack is explicit: each frame is a state that has explained
// steps[:pos] and the ranked candidate paths for steps[pos]. A candidate is
// applied to a clone of the frame's state; success pushes a frame for the
// next step, exhaustion pops the frame and records a failure in the cache.
// The first state that explains every step is accepted.
type search struct {
	engine *Engine
	steps  []step
	budget *budget

	labels   []string
	depth    int
	furthest int
}

type frame struct {
	state      *State
	pos        int
	key        CacheKey
	candidates []Path
	next       int
}

func (s *search) run(ctx context.Context) (*State, error) {
	s.labels = make([]string, len(s.steps))
	for i, st := range s.steps {
		s.labels[i] = st.label
	}

	g := s.engine.graph
	resolved, root, err := s.open(NewState(g.Start()), 0)
	if err != nil || resolved != nil {
		return resolved, err
	}
	if root == nil {
		return nil, s.exhausted()
	}

	stack := []*frame{root}
	s.depth = 1
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		top := stack[len(stack)-1]
		if top.next >= len(top.candidates) {
			if err := s.storeFailure(top); err != nil {
				return nil, err
			}
			stack = stack[:len(stack)-1]
			continue
		}

		cand := top.candidates[top.next]
		top.next++
		if err := s.budget.spend(); err != nil {
			return nil, err
		}

		child := top.state.Clone()
		ok, err := s.execute(child, cand)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		pos := top.pos + 1
		if pos > s.furthest {
			s.furthest = pos
		}

		var done *State
		if pos == len(s.steps) {
			if !child.IsClean(g.End()) {
				if s.engine.strict {
					s.engine.logger.Debug("rejecting unclean terminal state",
						"tokens", child.Tokens(), "splits", child.OpenSplits(), "joins", child.OpenJoins())
					continue
				}
				s.engine.logger.Warn("accepting unclean terminal state",
					"tokens", child.Tokens(), "splits", child.OpenSplits(), "joins", child.OpenJoins())
			}
			done = child
		} else {
			r, next, err := s.open(child, pos)
			if err != nil {
				return nil, err
			}
			if next != nil {
				stack = append(stack, next)
				if len(stack) > s.depth {
					s.depth = len(stack)
				}
				continue
			}
			if r == nil {
				continue
			}
			done = r
		}

		for i := len(stack) - 1; i >= 0; i-- {
			if err := s.storeSuccess(stack[i], done); err != nil {
				return nil, err
			}
		}
		return done, nil
	}
	return nil, s.exhausted()
}

// open prepares the frame for st at pos. A cache hit returns either the
// resolved state (success) or neither a state nor a frame (known failure).
func (s *search) open(st *State, pos int) (*State, *frame, error) {
	f := &frame{state: st, pos: pos}

	if c := s.engine.cache; c != nil {
		f.key = cacheKey(st, s.labels[pos:])
		resolved, ok, found := c.lookup(f.key, st)
		s.engine.recorder.CacheLookup(found)
		if found {
			if ok {
				return resolved, nil, nil
			}
			return nil, nil, nil
		}
	}

	f.candidates = s.candidates(st, st.Tokens(), s.steps[pos].targets)
	return nil, f, nil
}

func (s *search) candidates(st *State, sources, targets []string) []Path {
	paths := FindPaths(s.engine.graph, st, sources, targets)
	if w := s.engine.maxWidth; w > 0 && len(paths) > w {
		paths = paths[:w]
	}
	return paths
}

func (s *search) storeFailure(f *frame) error {
	if s.engine.cache == nil {
		return nil
	}
	return s.engine.cache.putFailure(f.key)
}

func (s *search) storeSuccess(f *frame, resolved *State) error {
	if s.engine.cache == nil {
		return nil
	}
	return s.engine.cache.putSuccess(f.key, f.state, resolved)
}

func (s *search) exhausted() error {
	pos := s.furthest
	if pos >= len(s.steps) {
		pos = len(s.steps) - 1
	}
	label := s.steps[pos].label
	if label == endMarker {
		label = "<end>"
	}
	return NewPathExhaustedError(pos, label)
}

// execute records p on st and steps every edge of it. st is modified in
// place; callers pass a clone they can drop on failure.
func (s *search) execute(st *State, p Path) (bool, error) {
	st.record(p)
	for _, e := range p {
		ok, err := s.stepEdge(st, e)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// stepEdge moves control flow along one edge.
//
//   - leaving an and_split takes one branch; the split keeps its token until
//     every branch is taken
//   - leaving an and_join first delivers every missing branch to it
//   - leaving any other node moves the token
//
// Entering an and_join records the arrival of the source branch.
func (s *search) stepEdge(st *State, e graph.EdgeKey) (bool, error) {
	g := s.engine.graph
	if !st.HasToken(e.Src) {
		return false, nil
	}

	switch g.NodeType(e.Src) {
	case graph.NodeAndSplit:
		if !st.takeBranch(e.Src, e.Dst, len(g.Successors(e.Src))) {
			return false, nil
		}
	case graph.NodeAndJoin:
		ok, err := s.completeJoin(st, e.Src)
		if err != nil || !ok {
			return false, err
		}
		st.move(e.Src, e.Dst)
	default:
		st.move(e.Src, e.Dst)
	}

	if g.NodeType(e.Dst) == graph.NodeAndJoin {
		if !st.arrive(e.Dst, e.Src) {
			return false, nil
		}
	}
	return true, nil
}

// completeJoin delivers the outstanding branches of join, one path at a
// time. For each missing branch the ranked paths from the other tokens to
// the join are tried in order and the first one that executes and records a
// new arrival is kept. Fails when no candidate makes progress.
//
// The kept candidate is final: its alternatives are not revisited when a
// later event fails. Recovery comes from the enclosing frame, whose
// candidates start from every token and so reach the join by each of its
// inputs in turn.
func (s *search) completeJoin(st *State, join string) (bool, error) {
	g := s.engine.graph
	degree := len(g.Predecessors(join))

	for {
		n := st.outstanding(join, degree)
		if n <= 0 {
			st.closeJoin(join)
			return true, nil
		}

		sources := make([]string, 0, len(st.tokens))
		for _, id := range st.Tokens() {
			if id != join {
				sources = append(sources, id)
			}
		}

		progressed := false
		for _, cand := range s.candidates(st, sources, []string{join}) {
			if err := s.budget.spend(); err != nil {
				return false, err
			}
			trial := st.Clone()
			ok, err := s.execute(trial, cand)
			if err != nil {
				return false, err
			}
			if ok && trial.outstanding(join, degree) < n {
				*st = *trial
				progressed = true
				break
			}
		}
		if !progressed {
			s.engine.logger.Debug("join cannot complete", "join", join, "outstanding", n, "tokens", st.Tokens())
			return false, nil
		}
	}
}
