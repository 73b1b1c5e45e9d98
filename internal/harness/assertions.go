package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/conform/internal/graph"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// evaluate runs one assertion against a finished result.
func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertNodeCount:
		n, ok := r.Graph.Node(a.Node)
		if !ok {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("node %s", a.Node), Actual: "no such node"}
		}
		if n.Count != *a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s=%d", a.Node, *a.Count), Actual: fmt.Sprintf("%d", n.Count)}
		}

	case AssertEdgeCount:
		key, err := parseEdge(a.Edge)
		if err != nil {
			return err
		}
		e, ok := r.Graph.Edge(key)
		if !ok {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("edge %s", key), Actual: "no such edge"}
		}
		if e.Count != *a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s=%d", key, *a.Count), Actual: fmt.Sprintf("%d", e.Count)}
		}

	case AssertInstances:
		if a.Fit != nil && r.Instances.Fit != *a.Fit {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("fit=%d", *a.Fit), Actual: fmt.Sprintf("fit=%d", r.Instances.Fit)}
		}
		if a.Unfit != nil && r.Instances.Unfit != *a.Unfit {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("unfit=%d", *a.Unfit), Actual: fmt.Sprintf("unfit=%d", r.Instances.Unfit)}
		}

	case AssertValidCounts:
		if violations := r.Graph.ValidateCounts(); len(violations) > 0 {
			msgs := make([]string, len(violations))
			for i, v := range violations {
				msgs[i] = v.String()
			}
			return &AssertionError{Type: a.Type, Expected: "balanced counts", Actual: strings.Join(msgs, "; ")}
		}

	case AssertNodeAbsent:
		if _, ok := r.Graph.Node(a.Node); ok {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("no node %s", a.Node), Actual: "present"}
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// parseEdge parses "src->dst".
func parseEdge(s string) (graph.EdgeKey, error) {
	src, dst, ok := strings.Cut(s, "->")
	src, dst = strings.TrimSpace(src), strings.TrimSpace(dst)
	if !ok || src == "" || dst == "" {
		return graph.EdgeKey{}, fmt.Errorf("edge must be written src->dst, got %q", s)
	}
	return graph.EdgeKey{Src: src, Dst: dst}, nil
}
