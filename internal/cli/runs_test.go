package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/conform/internal/replay"
	"github.com/roach88/conform/internal/store"
)

// storeRuns replays both trace files into a fresh database and returns its
// path with the run ids in order.
func storeRuns(t *testing.T) (string, []string) {
	t.Helper()
	db := filepath.Join(t.TempDir(), "runs.db")

	var ids []string
	for _, traces := range []string{"testdata/fit.yaml", "testdata/unfit.yaml"} {
		out, _, _ := execute(t, "--format", "json", "replay", "testdata/order.yaml", traces, "--db", db)
		resp := decodeReplay(t, out)
		require.NotEmpty(t, resp.RunID)
		ids = append(ids, resp.RunID)
	}
	return db, ids
}

func TestRuns_List(t *testing.T) {
	db, ids := storeRuns(t)

	out, _, err := execute(t, "runs", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, ids[0])
	assert.Contains(t, out, ids[1])
	assert.Contains(t, out, "fit=4 unfit=0")
	assert.Contains(t, out, "fit=2 unfit=1")

	out, _, err = execute(t, "--format", "json", "runs", "--db", db)
	require.NoError(t, err)
	var resp struct {
		Data []store.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, ids[0], resp.Data[0].ID)
	assert.Equal(t, int64(1), resp.Data[0].Seq)
	assert.Equal(t, int64(2), resp.Data[1].Seq)
	assert.Equal(t, "order", resp.Data[1].ModelName)
	assert.Equal(t, replay.Tally{Fit: 2, Unfit: 1}, resp.Data[1].Instances)
}

func TestRuns_FilterByFingerprint(t *testing.T) {
	db, _ := storeRuns(t)

	out, _, err := execute(t, "runs", "--db", db, "--fingerprint", "0000")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found.")
}

func TestRuns_Show(t *testing.T) {
	db, ids := storeRuns(t)

	out, _, err := execute(t, "--format", "json", "runs", "--db", db, ids[1])
	require.NoError(t, err)

	var resp struct {
		Data  RunDetail `json:"data"`
		RunID string    `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, ids[1], resp.RunID)
	require.Len(t, resp.Data.Traces, 2)
	assert.Equal(t, []string{"reject"}, resp.Data.Traces[1].Events)
	assert.Equal(t, replay.OutcomeUnfit, resp.Data.Traces[1].Outcome)
	assert.Contains(t, resp.Data.Counts, CountLine{Kind: "node", Element: "approve", Count: 2})
	assert.Contains(t, resp.Data.Counts, CountLine{Kind: "edge", Element: "x->approve", Count: 2})
	assert.Equal(t, "node", resp.Data.Counts[0].Kind, "nodes are listed first")

	out, _, err = execute(t, "runs", "--db", db, ids[0])
	require.NoError(t, err)
	assert.Contains(t, out, "Run "+ids[0]+" (seq 1)")
	assert.Contains(t, out, "Instances: fit=4 unfit=0")
	assert.Contains(t, out, "  node reject 1\n")
}

func TestRuns_Errors(t *testing.T) {
	db, _ := storeRuns(t)

	out, _, err := execute(t, "runs", "--db", db, "no-such-run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrRunNotFound)
	assert.Contains(t, out, "Error [RUN_NOT_FOUND]")

	_, _, err = execute(t, "runs", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}
