// Package replay checks traces against a workflow graph by token replay.
//
// A trace is a total order of events while the graph may run branches
// concurrently, so one trace can correspond to many interleavings of token
// flow. The engine searches for the first interleaving that explains the
// whole trace:
//
//	for each event:
//	    for each ranked path from an active token to a task with the label:
//	        apply the path to a clone of the state
//	        on success continue with the next event, else try the next path
//	    no path left: backtrack
//
// A synthetic final step moves the last token to the end node. Stepping out
// of an and_join first delivers the join's missing branches, which is how
// concurrent branches that finish in the same step are serialized.
//
// # Search
//
// The search keeps an explicit frame stack instead of recursing per event.
// Every attempt works on a cloned State; failed attempts leave nothing
// behind. Outcomes are memoized in a write-once Cache keyed by the state's
// tokens, its open gateway bookkeeping and the remaining events. A budget on
// search nodes ends runaway searches with an inconclusive outcome.
//
// # Counts
//
// A successful trace yields a graph.CountDelta built from every executed
// path, weighted by the trace multiplicity, with the and_join fan-in
// correction applied. The delta is applied in one step, so a failed trace
// never leaves partial counts.
package replay
