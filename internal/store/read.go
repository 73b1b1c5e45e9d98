package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/conform/internal/graph"
	"github.com/roach88/conform/internal/replay"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `id, seq, model_name, model_fingerprint, settings,
	fit_instances, unfit_instances, fit_unique, unfit_unique, inconclusive`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var settings string
	err := row.Scan(&run.ID, &run.Seq, &run.ModelName, &run.ModelFingerprint, &settings,
		&run.Instances.Fit, &run.Instances.Unfit, &run.Unique.Fit, &run.Unique.Unfit, &run.Inconclusive)
	if err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal([]byte(settings), &run.Settings); err != nil {
		return Run{}, fmt.Errorf("unmarshal settings of run %s: %w", run.ID, err)
	}
	return run, nil
}

// ReadRun returns a run with its trace results in batch order.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, events, multiplicity, outcome, reason, search_nodes
		FROM trace_results
		WHERE run_id = ?
		ORDER BY idx ASC
	`, id)
	if err != nil {
		return Run{}, fmt.Errorf("query trace results: %w", err)
	}
	defer rows.Close()

	run.Traces = []TraceResult{}
	for rows.Next() {
		var tr TraceResult
		var events, outcome string
		if err := rows.Scan(&tr.Index, &events, &tr.Multiplicity, &outcome, &tr.Reason, &tr.SearchNodes); err != nil {
			return Run{}, fmt.Errorf("scan trace result: %w", err)
		}
		if err := json.Unmarshal([]byte(events), &tr.Events); err != nil {
			return Run{}, fmt.Errorf("unmarshal events of trace %d: %w", tr.Index, err)
		}
		tr.Outcome = replay.Outcome(outcome)
		run.Traces = append(run.Traces, tr)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("iterate trace results: %w", err)
	}
	return run, nil
}

// ListRuns returns run summaries ordered by seq. An empty fingerprint lists
// every run; otherwise only runs of that model are returned.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListRuns(ctx context.Context, fingerprint string) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if fingerprint != "" {
		query += ` WHERE model_fingerprint = ?`
		args = append(args, fingerprint)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadCounts returns the node and edge counts stored with a run.
func (s *Store) ReadCounts(ctx context.Context, id string) (graph.CountDelta, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return graph.CountDelta{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return graph.CountDelta{}, fmt.Errorf("read counts: %w", err)
	}

	counts := graph.NewCountDelta()

	rows, err := s.db.QueryContext(ctx, `SELECT node_id, count FROM node_counts WHERE run_id = ?`, id)
	if err != nil {
		return graph.CountDelta{}, fmt.Errorf("query node counts: %w", err)
	}
	for rows.Next() {
		var node string
		var n int64
		if err := rows.Scan(&node, &n); err != nil {
			rows.Close()
			return graph.CountDelta{}, fmt.Errorf("scan node count: %w", err)
		}
		counts.Nodes[node] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return graph.CountDelta{}, fmt.Errorf("iterate node counts: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT src, dst, count FROM edge_counts WHERE run_id = ?`, id)
	if err != nil {
		return graph.CountDelta{}, fmt.Errorf("query edge counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key graph.EdgeKey
		var n int64
		if err := rows.Scan(&key.Src, &key.Dst, &n); err != nil {
			return graph.CountDelta{}, fmt.Errorf("scan edge count: %w", err)
		}
		counts.Edges[key] = n
	}
	if err := rows.Err(); err != nil {
		return graph.CountDelta{}, fmt.Errorf("iterate edge counts: %w", err)
	}
	return counts, nil
}
