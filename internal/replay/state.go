package replay

import (
	"sort"
	"strings"

	"github.com/roach88/conform/internal/graph"
)

// Path is an ordered list of consecutive edges.
type Path []graph.EdgeKey

// String renders the path as "a->b->c".
func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(p[0].Src)
	for _, e := range p {
		b.WriteString("->")
		b.WriteString(e.Dst)
	}
	return b.String()
}

// State is the token bookkeeping of one replay attempt.
//
// tokens holds the nodes that currently carry control flow. splits maps each
// open and_split to the branch destinations already taken; joins maps each
// open and_join to the predecessors that already arrived. An entry is removed
// once every branch is accounted for. paths lists every path executed so far.
//
// States are values: every speculative attempt works on a Clone and a failed
// attempt is simply dropped.
type State struct {
	tokens map[string]struct{}
	splits map[string]map[string]struct{}
	joins  map[string]map[string]struct{}
	paths  []Path
}

// NewState returns a state with a single token on start.
func NewState(start string) *State {
	return &State{
		tokens: map[string]struct{}{start: {}},
		splits: make(map[string]map[string]struct{}),
		joins:  make(map[string]map[string]struct{}),
	}
}

// Clone returns an independent copy. Paths themselves are never mutated
// after being recorded, so only the outer slice is copied.
func (s *State) Clone() *State {
	c := &State{
		tokens: make(map[string]struct{}, len(s.tokens)),
		splits: make(map[string]map[string]struct{}, len(s.splits)),
		joins:  make(map[string]map[string]struct{}, len(s.joins)),
		paths:  append(make([]Path, 0, len(s.paths)+1), s.paths...),
	}
	for id := range s.tokens {
		c.tokens[id] = struct{}{}
	}
	for id, set := range s.splits {
		c.splits[id] = copySet(set)
	}
	for id, set := range s.joins {
		c.joins[id] = copySet(set)
	}
	return c
}

// HasToken reports whether id currently carries a token.
func (s *State) HasToken(id string) bool {
	_, ok := s.tokens[id]
	return ok
}

// Tokens returns the active tokens in sorted order.
func (s *State) Tokens() []string {
	return sortedKeys(s.tokens)
}

// Paths returns the executed paths in order.
// The returned slice must not be modified.
func (s *State) Paths() []Path {
	return s.paths
}

// OpenSplits returns the ids of and_splits with untaken branches.
func (s *State) OpenSplits() []string {
	ids := make([]string, 0, len(s.splits))
	for id := range s.splits {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OpenJoins returns the ids of and_joins still waiting for branches.
func (s *State) OpenJoins() []string {
	ids := make([]string, 0, len(s.joins))
	for id := range s.joins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsClean reports whether the only token is on end and no gateway
// bookkeeping is left open.
func (s *State) IsClean(end string) bool {
	return len(s.tokens) == 1 && s.HasToken(end) && len(s.splits) == 0 && len(s.joins) == 0
}

// splitTaken reports whether the branch split->dst was already taken.
func (s *State) splitTaken(split, dst string) bool {
	_, ok := s.splits[split][dst]
	return ok
}

// joinArrived reports whether src already arrived at join.
func (s *State) joinArrived(join, src string) bool {
	_, ok := s.joins[join][src]
	return ok
}

// takeBranch records split->dst and places a token on dst. Once all
// branches are taken the split's entry and token are removed.
func (s *State) takeBranch(split, dst string, branches int) bool {
	if s.splitTaken(split, dst) {
		return false
	}
	set, ok := s.splits[split]
	if !ok {
		set = make(map[string]struct{}, branches)
		s.splits[split] = set
	}
	set[dst] = struct{}{}
	if len(set) == branches {
		delete(s.splits, split)
		delete(s.tokens, split)
	}
	s.tokens[dst] = struct{}{}
	return true
}

// arrive records that src reached join.
func (s *State) arrive(join, src string) bool {
	if s.joinArrived(join, src) {
		return false
	}
	set, ok := s.joins[join]
	if !ok {
		set = make(map[string]struct{})
		s.joins[join] = set
	}
	set[src] = struct{}{}
	return true
}

// outstanding returns how many predecessors of join have not arrived.
func (s *State) outstanding(join string, degree int) int {
	return degree - len(s.joins[join])
}

// closeJoin drops the bookkeeping entry of a completed join.
func (s *State) closeJoin(join string) {
	delete(s.joins, join)
}

// move replaces the token on src by a token on dst.
func (s *State) move(src, dst string) {
	delete(s.tokens, src)
	s.tokens[dst] = struct{}{}
}

func (s *State) record(p Path) {
	s.paths = append(s.paths, p)
}

func copySet(set map[string]struct{}) map[string]struct{} {
	c := make(map[string]struct{}, len(set))
	for k := range set {
		c[k] = struct{}{}
	}
	return c
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
