// Package trace holds observed event sequences and their repeat counts.
//
// A trace is a strict total order of event labels. Identical traces are
// grouped into one Counted entry so that replay explains each distinct
// sequence once and weights the result by its multiplicity.
package trace

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Counted is an event sequence that was observed Count times.
type Counted struct {
	Events []string `json:"events" yaml:"events"`
	Count  int64    `json:"count" yaml:"count"`
}

// Multiplicity returns the weight of the trace. A zero or negative count
// means the trace was listed without one and counts once.
func (c Counted) Multiplicity() int64 {
	if c.Count <= 0 {
		return 1
	}
	return c.Count
}

// Key returns a string that identifies the event sequence.
// Labels are joined with the unit separator, which never occurs in labels
// produced by Normalize.
func (c Counted) Key() string {
	return key(c.Events)
}

// String renders the trace for logs and reports.
func (c Counted) String() string {
	if len(c.Events) == 0 {
		return "<empty>"
	}
	return strings.Join(c.Events, " ")
}

const sep = "\x1f"

func key(events []string) string {
	return strings.Join(events, sep)
}

// Normalize returns the NFC form of a label with surrounding whitespace and
// separator characters removed.
func Normalize(label string) string {
	label = strings.TrimSpace(label)
	label = strings.ReplaceAll(label, sep, "")
	return norm.NFC.String(label)
}

// Unique groups identical event sequences and counts them.
// The result keeps the order in which each sequence was first seen.
func Unique(traces [][]string) []Counted {
	index := make(map[string]int, len(traces))
	var out []Counted
	for _, events := range traces {
		k := key(events)
		if i, ok := index[k]; ok {
			out[i].Count++
			continue
		}
		index[k] = len(out)
		out = append(out, Counted{Events: append([]string(nil), events...), Count: 1})
	}
	return out
}

// Merge folds Counted entries with the same events into one, summing their
// multiplicities. First-seen order is kept.
func Merge(traces []Counted) []Counted {
	index := make(map[string]int, len(traces))
	var out []Counted
	for _, t := range traces {
		k := t.Key()
		if i, ok := index[k]; ok {
			out[i].Count += t.Multiplicity()
			continue
		}
		index[k] = len(out)
		out = append(out, Counted{Events: append([]string(nil), t.Events...), Count: t.Multiplicity()})
	}
	return out
}

// Reverse returns copies of the traces with their events in reverse order.
func Reverse(traces []Counted) []Counted {
	out := make([]Counted, len(traces))
	for i, t := range traces {
		events := make([]string, len(t.Events))
		for j, e := range t.Events {
			events[len(t.Events)-1-j] = e
		}
		out[i] = Counted{Events: events, Count: t.Count}
	}
	return out
}

// Total returns the number of trace instances, weighted by multiplicity.
func Total(traces []Counted) int64 {
	var n int64
	for _, t := range traces {
		n += t.Multiplicity()
	}
	return n
}
