package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/conform/internal/graph"
	"github.com/roach88/conform/internal/loader"
	"github.com/roach88/conform/internal/replay"
	"github.com/roach88/conform/internal/trace"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is an inline model. Exactly one of Model and ModelFile is set.
	Model *loader.Model `yaml:"model,omitempty"`

	// ModelFile is a CUE or YAML model path, relative to the scenario file.
	ModelFile string `yaml:"model_file,omitempty"`

	Options Options `yaml:"options,omitempty"`

	// Simplify replaces the replayed graph by its simplified projection
	// before assertions run.
	Simplify bool `yaml:"simplify,omitempty"`

	Traces     []TraceStep `yaml:"traces"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Options mirror the replay command flags.
type Options struct {
	MaxWidth       *int `yaml:"max_width,omitempty"`
	MaxSearchNodes *int `yaml:"max_search_nodes,omitempty"`
	NoCache        bool `yaml:"no_cache,omitempty"`
	Strict         bool `yaml:"strict,omitempty"`
	Simple         bool `yaml:"simple,omitempty"`
	Reverse        bool `yaml:"reverse,omitempty"`
}

// TraceStep is one trace of a scenario and its expected outcome.
type TraceStep struct {
	Events []string `yaml:"events"`
	Count  int64    `yaml:"count,omitempty"`

	// Expect is fit, unfit or inconclusive. Empty means not checked.
	Expect replay.Outcome `yaml:"expect,omitempty"`
}

// Assertion validates the counts left on the graph.
type Assertion struct {
	Type string `yaml:"type"`

	// Node is the node id (node_count, node_absent).
	Node string `yaml:"node,omitempty"`

	// Edge is "src->dst" (edge_count).
	Edge string `yaml:"edge,omitempty"`

	// Count is the expected count (node_count, edge_count).
	Count *int64 `yaml:"count,omitempty"`

	// Fit and Unfit are the expected instance tally (instances).
	Fit   *int64 `yaml:"fit,omitempty"`
	Unfit *int64 `yaml:"unfit,omitempty"`
}

// Assertion type constants.
const (
	AssertNodeCount   = "node_count"
	AssertEdgeCount   = "edge_count"
	AssertInstances   = "instances"
	AssertValidCounts = "valid_counts"
	AssertNodeAbsent  = "node_absent"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields (typos), or is missing required fields. ModelFile is resolved
// against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
	}

	if scenario.ModelFile != "" && !filepath.IsAbs(scenario.ModelFile) {
		scenario.ModelFile = filepath.Join(filepath.Dir(path), scenario.ModelFile)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("%s: invalid scenario: %w", path, err)
	}
	return &scenario, nil
}

// LoadScenarioDir loads every .yaml and .yml file in dir, sorted by file name.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// Graph builds a fresh graph from the scenario's model.
func (s *Scenario) Graph() (*graph.Graph, error) {
	if s.Model != nil {
		return s.Model.Graph()
	}
	_, g, err := loader.LoadGraph(s.ModelFile)
	return g, err
}

// Counted returns the scenario traces with normalized labels, reversed when
// the options ask for it. Duplicates are kept so that every step keeps its
// own expectation.
func (s *Scenario) Counted() []trace.Counted {
	out := make([]trace.Counted, len(s.Traces))
	for i, step := range s.Traces {
		events := make([]string, len(step.Events))
		for j, e := range step.Events {
			events[j] = trace.Normalize(e)
		}
		out[i] = trace.Counted{Events: events, Count: step.Count}
	}
	if s.Options.Reverse {
		out = trace.Reverse(out)
	}
	return out
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if (s.Model == nil) == (s.ModelFile == "") {
		return fmt.Errorf("exactly one of model and model_file is required")
	}
	if s.ModelFile != "" {
		if _, err := os.Stat(s.ModelFile); os.IsNotExist(err) {
			return fmt.Errorf("model file not found: %s", s.ModelFile)
		}
	}
	if len(s.Traces) == 0 {
		return fmt.Errorf("traces list is required and must be non-empty")
	}

	for i, step := range s.Traces {
		if step.Count < 0 {
			return fmt.Errorf("traces[%d]: count must be non-negative", i)
		}
		switch step.Expect {
		case "", replay.OutcomeFit, replay.OutcomeUnfit, replay.OutcomeInconclusive:
		default:
			return fmt.Errorf("traces[%d]: unknown expectation %q", i, step.Expect)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertNodeCount:
		if a.Node == "" || a.Count == nil {
			return fmt.Errorf("assertions[%d]: node and count are required for node_count", index)
		}
	case AssertEdgeCount:
		if _, err := parseEdge(a.Edge); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for edge_count", index)
		}
	case AssertInstances:
		if a.Fit == nil && a.Unfit == nil {
			return fmt.Errorf("assertions[%d]: fit or unfit is required for instances", index)
		}
	case AssertNodeAbsent:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for node_absent", index)
		}
	case AssertValidCounts:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
