package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/conform/internal/graph"
)

// WriteRun stores a run together with the graph counts it produced, in one
// transaction. The run's ID is generated when empty; Seq is always assigned
// by the store. Returns the stored run.
func (s *Store) WriteRun(ctx context.Context, run Run, counts graph.CountDelta) (Run, error) {
	if run.ID == "" {
		run.ID = s.ids.Generate()
	}

	settings, err := json.Marshal(run.Settings)
	if err != nil {
		return Run{}, fmt.Errorf("write run: marshal settings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&run.Seq); err != nil {
		return Run{}, fmt.Errorf("write run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, model_name, model_fingerprint, settings,
		 fit_instances, unfit_instances, fit_unique, unfit_unique, inconclusive)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.Seq, run.ModelName, run.ModelFingerprint, string(settings),
		run.Instances.Fit, run.Instances.Unfit, run.Unique.Fit, run.Unique.Unfit, run.Inconclusive,
	)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}

	for _, tr := range run.Traces {
		events, err := json.Marshal(tr.Events)
		if err != nil {
			return Run{}, fmt.Errorf("write run: marshal events: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trace_results
			(run_id, idx, events, multiplicity, outcome, reason, search_nodes)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, run.ID, tr.Index, string(events), tr.Multiplicity, string(tr.Outcome), tr.Reason, tr.SearchNodes)
		if err != nil {
			return Run{}, fmt.Errorf("write trace result %d: %w", tr.Index, err)
		}
	}

	for id, n := range counts.Nodes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO node_counts (run_id, node_id, count) VALUES (?, ?, ?)`, run.ID, id, n); err != nil {
			return Run{}, fmt.Errorf("write node count %s: %w", id, err)
		}
	}
	for key, n := range counts.Edges {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO edge_counts (run_id, src, dst, count) VALUES (?, ?, ?, ?)`, run.ID, key.Src, key.Dst, n); err != nil {
			return Run{}, fmt.Errorf("write edge count %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("write run: commit: %w", err)
	}
	return run, nil
}
