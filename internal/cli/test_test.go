package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTest_Scenarios(t *testing.T) {
	out, _, err := execute(t, "test", "testdata/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✓ order_fit")
	assert.Contains(t, out, "✗ order_skip")
	assert.Contains(t, out, `traces[0] "reject": expected fit, got unfit`)
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTest_Filter(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "test", "testdata/scenarios", "--filter", "*_fit")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "order_fit", resp.Data.Scenarios[0].Name)
}

const goldenScenario = `name: golden
description: "Report is pinned by a golden file"
model:
  nodes:
    - {id: start, type: start}
    - {id: A, type: task}
    - {id: end, type: end}
  edges:
    - {from: start, to: A}
    - {from: A, to: end}
traces:
  - events: [A]
    count: 2
    expect: fit
`

func TestTest_GoldenUpdateAndCompare(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden.yaml"), []byte(goldenScenario), 0o644))
	golden := filepath.Join(dir, "golden.golden")

	_, _, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)

	report, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(report), "scenario: golden\n")
	assert.Contains(t, string(report), `[0] "A" x2: fit`)
	assert.Contains(t, string(report), "node A task label=\"A\" count=2\n")

	out, _, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ golden")

	require.NoError(t, os.WriteFile(golden, []byte("stale\n"), 0o644))
	out, _, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "report does not match golden file")
}

func TestTest_LoadFailureIsReported(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\nbogus: 1\n"), 0o644))

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTest_CommandErrors(t *testing.T) {
	_, _, err := execute(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")

	_, _, err = execute(t, "test", "testdata/scenarios", "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
