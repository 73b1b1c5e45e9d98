package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type document struct {
	Model *Model `yaml:"model"`
}

// LoadYAML reads a YAML model file.
func LoadYAML(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("failed to read model file: %v", err)}
	}
	m, err := ParseYAML(bytes.NewReader(data))
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Message = path + ": " + le.Message
		}
		return nil, err
	}
	return m, nil
}

// ParseYAML decodes a model document, rejecting unknown fields.
func ParseYAML(r io.Reader) (*Model, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{Code: ErrCodeParse, Message: err.Error()}
	}
	if doc.Model == nil {
		return nil, &LoadError{Code: ErrCodeSchema, Message: "model field is required"}
	}
	for i, n := range doc.Model.Nodes {
		if n.Count < 0 {
			return nil, &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("nodes[%d]: negative count %d", i, n.Count)}
		}
	}
	for i, e := range doc.Model.Edges {
		if e.Count < 0 {
			return nil, &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("edges[%d]: negative count %d", i, e.Count)}
		}
	}
	return doc.Model, nil
}

// WriteYAML encodes m as a model document.
func WriteYAML(w io.Writer, m *Model) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Model: m}); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return enc.Close()
}
