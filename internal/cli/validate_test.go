package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/order.yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Model valid: order")
	assert.Contains(t, out, "nodes=7 edges=7 tasks=3")
	assert.Contains(t, out, "xor split/join=1/1 and split/join=0/0")
	assert.Contains(t, out, "cfc=2 cnc=1.00")
	assert.NotContains(t, out, "trivial gateways")
}

func TestValidate_CUE(t *testing.T) {
	out, _, err := execute(t, "validate", filepath.Join("..", "loader", "testdata", "order.cue"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Model valid: order")
}

func TestValidate_JSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", "testdata/trivial.yaml")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, "trivial", resp.Data.Name)
	assert.Equal(t, []string{"x"}, resp.Data.TrivialGateways)
	assert.False(t, resp.Data.Parallel)
	assert.Len(t, resp.Data.Fingerprint, 64)
	assert.Equal(t, 1, resp.Data.Complexity.Tasks)
}

func TestValidate_StructuralError(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/invalid.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [STRUCTURAL_INCONSISTENCY]")
}

func TestValidate_CountViolations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counted.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`model:
  nodes:
    - {id: start, type: start, count: 2}
    - {id: A, type: task, count: 1}
    - {id: end, type: end, count: 2}
  edges:
    - {from: start, to: A, count: 2}
    - {from: A, to: end, count: 2}
`), 0o644))

	out, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "count violation: A:")
}

func TestValidate_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "model.txt")
	require.NoError(t, os.WriteFile(txt, []byte("nodes"), 0o644))

	tests := []struct {
		name string
		path string
		code string
	}{
		{"not found", filepath.Join(dir, "missing.yaml"), "E005"},
		{"missing directory", filepath.Join(dir, "nope"), "E005"},
		{"unsupported format", txt, "E008"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "validate", tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.code)
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

func TestValidate_NoCUEFiles(t *testing.T) {
	_, _, err := execute(t, "validate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E003")
}
