package trace

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML shape of a trace set.
//
//	traces:
//	  - events: [register, approve]
//	    count: 12
//	sequences:
//	  - [register, reject]
//	  - [register, reject]
//
// Entries under traces carry an explicit count. Entries under sequences are
// single observations and are grouped before replay.
type File struct {
	Traces    []Counted  `yaml:"traces,omitempty"`
	Sequences [][]string `yaml:"sequences,omitempty"`
}

// LoadYAML reads a trace file from disk.
func LoadYAML(path string) ([]Counted, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}
	traces, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return traces, nil
}

// Parse decodes a trace set, rejecting unknown fields.
// Labels are normalized and identical sequences merged.
func Parse(r io.Reader) ([]Counted, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	all := make([]Counted, 0, len(f.Traces)+len(f.Sequences))
	for i, t := range f.Traces {
		if t.Count < 0 {
			return nil, fmt.Errorf("traces[%d]: negative count %d", i, t.Count)
		}
		all = append(all, Counted{Events: normalizeAll(t.Events), Count: t.Count})
	}
	seqs := make([][]string, len(f.Sequences))
	for i, s := range f.Sequences {
		seqs[i] = normalizeAll(s)
	}
	all = append(all, Unique(seqs)...)
	return Merge(all), nil
}

func normalizeAll(events []string) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = Normalize(e)
	}
	return out
}
