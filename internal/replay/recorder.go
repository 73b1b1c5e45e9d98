package replay

import "time"

// Recorder receives replay measurements. internal/metrics provides a
// Prometheus implementation.
type Recorder interface {
	// TraceReplayed is called once per replayed trace with its outcome and
	// multiplicity.
	TraceReplayed(outcome Outcome, instances int64, elapsed time.Duration)

	// CacheLookup is called for every cache lookup.
	CacheLookup(hit bool)

	// SearchFinished is called after the search for a trace, with the number
	// of search nodes spent and the deepest frame stack reached.
	SearchFinished(nodes, depth int)
}

type nopRecorder struct{}

func (nopRecorder) TraceReplayed(Outcome, int64, time.Duration) {}
func (nopRecorder) CacheLookup(bool)                            {}
func (nopRecorder) SearchFinished(int, int)                     {}
