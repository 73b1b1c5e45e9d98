package harness

import (
	"github.com/roach88/conform/internal/graph"
	"github.com/roach88/conform/internal/replay"
	"github.com/roach88/conform/internal/trace"
)

// TraceOutcome is the replay result of one scenario trace.
type TraceOutcome struct {
	Index    int            `json:"index"`
	Trace    trace.Counted  `json:"trace"`
	Outcome  replay.Outcome `json:"outcome"`
	Expected replay.Outcome `json:"expected,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Errors contains one message per failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`

	Traces    []TraceOutcome `json:"traces"`
	Instances replay.Tally   `json:"instances"`
	Unique    replay.Tally   `json:"unique"`

	Inconclusive int `json:"inconclusive"`

	// Graph is the replayed graph, simplified when the scenario asks for it.
	Graph *graph.Graph `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}, Traces: []TraceOutcome{}}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
