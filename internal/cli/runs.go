package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/conform/internal/graph"
	"github.com/roach88/conform/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database    string
	Fingerprint string // only runs of this model
}

// RunDetail is a stored run together with its counts.
type RunDetail struct {
	store.Run
	Counts []CountLine `json:"counts"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List stored replay runs",
		Long: `List the replay runs stored by "conform replay --db", oldest first.

With a run id, show that run with every trace outcome and the stored
node and edge counts.

Examples:
  conform runs --db runs.db
  conform runs --db runs.db --fingerprint 3f2a...
  conform runs --db runs.db 0192f0c1-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runShowRun(opts, args[0], cmd)
			}
			return runListRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Fingerprint, "fingerprint", "", "only list runs of the model with this fingerprint")

	return cmd
}

func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runListRuns(opts *RunsOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), opts.Fingerprint)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if formatter.JSON() {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		formatter.Textf("No runs found.")
		return nil
	}
	for _, r := range runs {
		formatter.Textf("%4d  %s  %-20s fit=%d unfit=%d inconclusive=%d",
			r.Seq, r.ID, r.ModelName, r.Instances.Fit, r.Instances.Unfit, r.Inconclusive)
	}
	return nil
}

func runShowRun(opts *RunsOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = formatter.Error("RUN_NOT_FOUND", err.Error(), nil)
		return WrapExitError(ExitCommandError, "unknown run", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	counts, err := st.ReadCounts(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read counts", err)
	}

	detail := RunDetail{Run: run, Counts: sortedCounts(counts)}
	if formatter.JSON() {
		return formatter.SuccessRun(run.ID, detail)
	}

	formatter.Textf("Run %s (seq %d)", run.ID, run.Seq)
	formatter.Textf("Model %s (%s)", run.ModelName, run.ModelFingerprint)
	formatter.Textf("Instances: fit=%d unfit=%d", run.Instances.Fit, run.Instances.Unfit)
	formatter.Textf("Unique:    fit=%d unfit=%d inconclusive=%d", run.Unique.Fit, run.Unique.Unfit, run.Inconclusive)
	for _, t := range run.Traces {
		line := fmt.Sprintf("  [%d] %s x%d %v", t.Index, t.Outcome, t.Multiplicity, t.Events)
		if t.Reason != "" {
			line += ": " + t.Reason
		}
		formatter.Textf("%s", line)
	}
	formatter.Textf("Counts:")
	for _, c := range detail.Counts {
		formatter.Textf("  %s %s %d", c.Kind, c.Element, c.Count)
	}
	return nil
}

// sortedCounts flattens stored counts, nodes first, each group sorted.
func sortedCounts(d graph.CountDelta) []CountLine {
	lines := make([]CountLine, 0, len(d.Nodes)+len(d.Edges))
	for id, n := range d.Nodes {
		lines = append(lines, CountLine{Kind: "node", Element: id, Count: n})
	}
	for key, n := range d.Edges {
		lines = append(lines, CountLine{Kind: "edge", Element: key.String(), Count: n})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Kind != lines[j].Kind {
			return lines[i].Kind == "node"
		}
		return lines[i].Element < lines[j].Element
	})
	return lines
}
