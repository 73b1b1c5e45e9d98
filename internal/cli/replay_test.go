package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/conform/internal/loader"
	"github.com/roach88/conform/internal/replay"
	"github.com/roach88/conform/internal/store"
)

type replayResponse struct {
	Status string        `json:"status"`
	Data   ReplaySummary `json:"data"`
	RunID  string        `json:"run_id"`
}

func decodeReplay(t *testing.T, out string) replayResponse {
	t.Helper()
	var resp replayResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestReplay_AllFit(t *testing.T) {
	out, _, err := execute(t, "replay", "testdata/order.yaml", "testdata/fit.yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "Model order (")
	assert.Contains(t, out, "x3 [register, approve order]")
	assert.Contains(t, out, "Instances: fit=4 unfit=0 (fitness 1.000)")
	assert.Contains(t, out, "Unique:    fit=2 unfit=0 inconclusive=0")
	assert.Contains(t, out, "  node approve 3\n")
	assert.Contains(t, out, "  node end 4\n")
	assert.Contains(t, out, "  edge x->reject 1\n")
	assert.NotContains(t, out, "count violation")
	assert.NotContains(t, out, "Stored run")
}

func TestReplay_UnfitStoresAndExports(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	prom := filepath.Join(dir, "replay.prom")
	model := filepath.Join(dir, "counted.yaml")

	out, _, err := execute(t, "--format", "json", "replay",
		"testdata/order.yaml", "testdata/unfit.yaml",
		"--simplify", "--db", db, "--metrics-file", prom, "--output-model", model)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 3 trace instance(s) unfit")

	resp := decodeReplay(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.RunID)

	s := resp.Data
	assert.Equal(t, "order", s.Model)
	assert.Equal(t, replay.Tally{Fit: 2, Unfit: 1}, s.Instances)
	assert.Equal(t, replay.Tally{Fit: 1, Unfit: 1}, s.Unique)
	assert.InDelta(t, 2.0/3.0, s.Fitness, 1e-9)
	assert.Empty(t, s.Violations)

	require.Len(t, s.Traces, 2)
	assert.Equal(t, replay.OutcomeFit, s.Traces[0].Outcome)
	assert.Equal(t, replay.OutcomeUnfit, s.Traces[1].Outcome)
	assert.NotEmpty(t, s.Traces[1].Reason)

	// The never-chosen branch and its gateways are gone.
	assert.ElementsMatch(t, []CountLine{
		{Kind: "node", Element: "start", Count: 2},
		{Kind: "node", Element: "register", Count: 2},
		{Kind: "node", Element: "approve", Count: 2},
		{Kind: "node", Element: "end", Count: 2},
		{Kind: "edge", Element: "start->register", Count: 2},
		{Kind: "edge", Element: "register->approve", Count: 2},
		{Kind: "edge", Element: "approve->end", Count: 2},
	}, s.Counts)

	m, g, err := loader.LoadGraph(model)
	require.NoError(t, err)
	assert.Equal(t, "order", m.Name)
	n, ok := g.Node("approve")
	require.True(t, ok)
	assert.Equal(t, int64(2), n.Count)
	assert.Equal(t, "approve order", n.Label)

	metrics, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `conform_traces_total{outcome="fit"} 1`)
	assert.Contains(t, string(metrics), `conform_trace_instances_total{outcome="fit"} 2`)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	run, err := st.ReadRun(t.Context(), resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, s.Fingerprint, run.ModelFingerprint)
	assert.True(t, run.Settings.MaxWidth == replay.DefaultMaxWidth)
	assert.Len(t, run.Traces, 2)
}

func TestReplay_Options(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		instances replay.Tally
		unique    replay.Tally
		inconcl   int
	}{
		{
			name:      "reverse",
			args:      []string{"--reverse"},
			instances: replay.Tally{Unfit: 4},
			unique:    replay.Tally{Unfit: 2},
		},
		{
			name:      "tiny budget",
			args:      []string{"--max-search-nodes", "1"},
			instances: replay.Tally{Unfit: 4},
			unique:    replay.Tally{Unfit: 2},
			inconcl:   2,
		},
		{
			name:      "simple",
			args:      []string{"--simple", "--no-cache"},
			instances: replay.Tally{Fit: 4},
			unique:    replay.Tally{Fit: 2},
		},
		{
			name:      "strict unbounded",
			args:      []string{"--strict", "--max-width", "0"},
			instances: replay.Tally{Fit: 4},
			unique:    replay.Tally{Fit: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--format", "json", "replay", "testdata/order.yaml", "testdata/fit.yaml"}, tt.args...)
			out, _, err := execute(t, args...)
			if tt.instances.Unfit > 0 {
				require.Error(t, err)
				assert.Equal(t, ExitFailure, GetExitCode(err))
			} else {
				require.NoError(t, err)
			}

			s := decodeReplay(t, out).Data
			assert.Equal(t, tt.instances, s.Instances)
			assert.Equal(t, tt.unique, s.Unique)
			assert.Equal(t, tt.inconcl, s.Inconclusive)
		})
	}
}

func TestReplay_EmptyTraceFile(t *testing.T) {
	traces := filepath.Join(t.TempDir(), "traces.yaml")
	require.NoError(t, os.WriteFile(traces, nil, 0o644))

	out, _, err := execute(t, "replay", "testdata/order.yaml", traces)
	require.NoError(t, err)
	assert.Contains(t, out, "Instances: fit=0 unfit=0 (fitness 1.000)")
	assert.Contains(t, out, "  node start 0\n")
}

func TestReplay_SimpleRejectsParallelModel(t *testing.T) {
	model := filepath.Join(t.TempDir(), "parallel.yaml")
	require.NoError(t, os.WriteFile(model, []byte(`model:
  nodes:
    - {id: start, type: start}
    - {id: S, type: and_split}
    - {id: A, type: task}
    - {id: B, type: task}
    - {id: J, type: and_join}
    - {id: end, type: end}
  edges:
    - {from: start, to: S}
    - {from: S, to: A}
    - {from: S, to: B}
    - {from: A, to: J}
    - {from: B, to: J}
    - {from: J, to: end}
`), 0o644))

	out, _, err := execute(t, "replay", model, "testdata/fit.yaml", "--simple")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, replay.ErrParallelModel)
	assert.Contains(t, out, "Error [REPLAY_FAILED]")
}

func TestReplay_CommandErrors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("traces:\n  - evnts: [a]\n"), 0o644))

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing model", []string{"testdata/nope.yaml", "testdata/fit.yaml"}, ExitCommandError},
		{"invalid model", []string{"testdata/invalid.yaml", "testdata/fit.yaml"}, ExitFailure},
		{"missing traces", []string{"testdata/order.yaml", "testdata/nope.yaml"}, ExitCommandError},
		{"unknown trace field", []string{"testdata/order.yaml", bad}, ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, append([]string{"replay"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
		})
	}
}
