package store

import (
	"github.com/roach88/conform/internal/graph"
	"github.com/roach88/conform/internal/replay"
)

// Settings are the replay options a run was produced with.
type Settings struct {
	MaxWidth       int  `json:"max_width"`
	MaxSearchNodes int  `json:"max_search_nodes"`
	NoCache        bool `json:"no_cache,omitempty"`
	Strict         bool `json:"strict,omitempty"`
	Simple         bool `json:"simple,omitempty"`
	Reverse        bool `json:"reverse,omitempty"`
}

// Run is one stored batch replay.
type Run struct {
	ID               string       `json:"id"`
	Seq              int64        `json:"seq"`
	ModelName        string       `json:"model_name,omitempty"`
	ModelFingerprint string       `json:"model_fingerprint"`
	Settings         Settings     `json:"settings"`
	Instances        replay.Tally `json:"instances"`
	Unique           replay.Tally `json:"unique"`
	Inconclusive     int          `json:"inconclusive"`

	// Traces is filled by ReadRun, not by ListRuns.
	Traces []TraceResult `json:"traces,omitempty"`
}

// TraceResult is the stored outcome of one distinct trace.
type TraceResult struct {
	Index        int            `json:"index"`
	Events       []string       `json:"events"`
	Multiplicity int64          `json:"multiplicity"`
	Outcome      replay.Outcome `json:"outcome"`
	Reason       string         `json:"reason,omitempty"`
	SearchNodes  int            `json:"search_nodes"`
}

// NewRun builds an unsaved run from a batch replay of g.
func NewRun(modelName string, g *graph.Graph, settings Settings, batch replay.BatchResult) Run {
	run := Run{
		ModelName:        modelName,
		ModelFingerprint: g.Fingerprint(),
		Settings:         settings,
		Instances:        batch.Instances,
		Unique:           batch.Unique,
		Inconclusive:     batch.Inconclusive,
	}
	for i, res := range batch.Results {
		run.Traces = append(run.Traces, TraceResult{
			Index:        i,
			Events:       append([]string{}, res.Trace.Events...),
			Multiplicity: res.Trace.Multiplicity(),
			Outcome:      res.Outcome,
			Reason:       res.Reason(),
			SearchNodes:  res.SearchNodes,
		})
	}
	return run
}
