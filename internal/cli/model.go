package cli

import (
	"errors"
	"fmt"

	"github.com/roach88/conform/internal/graph"
	"github.com/roach88/conform/internal/loader"
)

// loadModel loads a model file and builds its graph, reporting failures
// through f. Unreadable input is a command error; a model that loads but
// violates the graph structure is a validation failure.
func loadModel(f *OutputFormatter, path string) (*loader.Model, *graph.Graph, error) {
	m, g, err := loader.LoadGraph(path)
	if err != nil {
		return nil, nil, modelError(f, err)
	}
	f.VerboseLog("Loaded model %q from %s", modelName(m, path), path)
	return m, g, nil
}

func modelError(f *OutputFormatter, err error) error {
	var structErr *graph.StructuralError
	if errors.As(err, &structErr) {
		_ = f.Error(string(structErr.Code), err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid model", err)
	}

	var loadErr *loader.LoadError
	if errors.As(err, &loadErr) {
		var details interface{}
		if loadErr.Pos.IsValid() {
			details = map[string]interface{}{
				"file":   loadErr.Pos.Filename(),
				"line":   loadErr.Pos.Line(),
				"column": loadErr.Pos.Column(),
			}
		}
		_ = f.Error(loadErr.Code, loadErr.Message, details)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
	}

	_ = f.Error(loader.ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitCommandError, "failed to load model", err)
}

// modelName is the model's declared name, or its path when it has none.
func modelName(m *loader.Model, path string) string {
	if m != nil && m.Name != "" {
		return m.Name
	}
	return path
}
