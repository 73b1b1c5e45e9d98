package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/conform/internal/graph"
	"github.com/roach88/conform/internal/loader"
	"github.com/roach88/conform/internal/metrics"
	"github.com/roach88/conform/internal/replay"
	"github.com/roach88/conform/internal/store"
	"github.com/roach88/conform/internal/trace"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	MaxWidth       int
	MaxSearchNodes int
	NoCache        bool
	Strict         bool
	Simple         bool
	Reverse        bool
	Simplify       bool
	Database       string // store the run here, optional
	MetricsFile    string // Prometheus text file, optional
	OutputModel    string // write the counted model here, optional
}

func (o *ReplayOptions) settings() store.Settings {
	return store.Settings{
		MaxWidth:       o.MaxWidth,
		MaxSearchNodes: o.MaxSearchNodes,
		NoCache:        o.NoCache,
		Strict:         o.Strict,
		Simple:         o.Simple,
		Reverse:        o.Reverse,
	}
}

// CountLine is the count of one node or edge.
type CountLine struct {
	Kind    string `json:"kind"` // "node" | "edge"
	Element string `json:"element"`
	Count   int64  `json:"count"`
}

// ReplaySummary is the result of the replay command.
type ReplaySummary struct {
	Model        string              `json:"model"`
	Fingerprint  string              `json:"fingerprint"`
	Instances    replay.Tally        `json:"instances"`
	Unique       replay.Tally        `json:"unique"`
	Inconclusive int                 `json:"inconclusive"`
	Fitness      float64             `json:"fitness"`
	Traces       []store.TraceResult `json:"traces"`
	Counts       []CountLine         `json:"counts"`
	Violations   []string            `json:"violations,omitempty"`
	Cache        replay.CacheStats   `json:"cache"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <model> <traces>",
		Short: "Replay traces against a model",
		Long: `Replay a trace file against a model and count the executions.

Every distinct trace is replayed once and weighted by its count. Fit traces
add their executed paths to the node and edge counts; unfit traces are
reported with the event that could not be explained.

Exit codes:
  0 - Every trace is fit
  1 - At least one trace is unfit or inconclusive
  2 - Command error (file not found, database error, etc.)

Examples:
  conform replay order.cue traces.yaml
  conform replay order.cue traces.yaml --db runs.db
  conform replay order.cue traces.yaml --simplify --output-model counted.yaml
  conform replay order.yaml traces.yaml --metrics-file replay.prom --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.MaxWidth, "max-width", replay.DefaultMaxWidth, "ranked paths tried per event (0 = unbounded)")
	cmd.Flags().IntVar(&opts.MaxSearchNodes, "max-search-nodes", replay.DefaultMaxSearchNodes, "search budget per trace (0 = unbounded)")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "disable memoization of replay states")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "reject terminal states with leftover tokens")
	cmd.Flags().BoolVar(&opts.Simple, "simple", false, "use the single-token replay (models without parallel gateways)")
	cmd.Flags().BoolVar(&opts.Reverse, "reverse", false, "replay every trace back to front")
	cmd.Flags().BoolVar(&opts.Simplify, "simplify", false, "simplify the counted model before output")
	cmd.Flags().StringVar(&opts.Database, "db", "", "store the run in this SQLite database")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	cmd.Flags().StringVar(&opts.OutputModel, "output-model", "", "write the counted model as YAML to this file")

	return cmd
}

func runReplay(opts *ReplayOptions, modelPath, tracesPath string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	m, g, err := loadModel(formatter, modelPath)
	if err != nil {
		return err
	}

	traces, err := trace.LoadYAML(tracesPath)
	if err != nil {
		_ = formatter.Error(loader.ErrCodeParse, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load traces", err)
	}
	if opts.Reverse {
		traces = trace.Reverse(traces)
	}
	formatter.VerboseLog("Replaying %d distinct trace(s), %d instance(s)", len(traces), trace.Total(traces))

	engineOpts := []replay.Option{
		replay.WithLogger(opts.logger(cmd.ErrOrStderr())),
		replay.WithMaxWidth(opts.MaxWidth),
		replay.WithMaxSearchNodes(opts.MaxSearchNodes),
		replay.WithStrictTerminal(opts.Strict),
		replay.WithSimple(opts.Simple),
	}
	if opts.NoCache {
		engineOpts = append(engineOpts, replay.WithNoCache())
	}

	var reg *prometheus.Registry
	if opts.MetricsFile != "" {
		reg = prometheus.NewRegistry()
		engineOpts = append(engineOpts, replay.WithRecorder(metrics.NewPrometheus(reg)))
	}

	batch, err := replay.New(g, engineOpts...).ReplayBatch(ctx, traces)
	if err != nil {
		_ = formatter.Error("REPLAY_FAILED", err.Error(), nil)
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	if reg != nil {
		if err := metrics.WriteTextfile(opts.MetricsFile, reg); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
		formatter.VerboseLog("Wrote metrics to %s", opts.MetricsFile)
	}

	name := modelName(m, modelPath)
	run := store.NewRun(name, g, opts.settings(), batch)

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()

		run, err = st.WriteRun(ctx, run, g.Counts())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to store run", err)
		}
		formatter.VerboseLog("Stored run %s (seq %d)", run.ID, run.Seq)
	}

	counted := g
	if opts.Simplify {
		counted, err = g.Simplified()
		if err != nil {
			_ = formatter.Error(string(graph.ErrCodeStructural), err.Error(), nil)
			return WrapExitError(ExitFailure, "simplification failed", err)
		}
	}

	if opts.OutputModel != "" {
		if err := writeModel(opts.OutputModel, loader.FromGraph(m.Name, counted)); err != nil {
			return err
		}
		formatter.VerboseLog("Wrote counted model to %s", opts.OutputModel)
	}

	summary := ReplaySummary{
		Model:        name,
		Fingerprint:  run.ModelFingerprint,
		Instances:    batch.Instances,
		Unique:       batch.Unique,
		Inconclusive: batch.Inconclusive,
		Fitness:      fitness(batch.Instances),
		Traces:       run.Traces,
		Counts:       countLines(counted),
		Cache:        batch.Cache,
	}
	if summary.Traces == nil {
		summary.Traces = []store.TraceResult{}
	}
	for _, v := range counted.ValidateCounts() {
		summary.Violations = append(summary.Violations, v.String())
	}

	if formatter.JSON() {
		if err := formatter.SuccessRun(run.ID, summary); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, summary, run.ID)
	}

	if batch.Instances.Unfit > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d trace instance(s) unfit",
			batch.Instances.Unfit, batch.Instances.Total()))
	}
	return nil
}

func writeModel(path string, m *loader.Model) error {
	var buf bytes.Buffer
	if err := loader.WriteYAML(&buf, m); err != nil {
		return WrapExitError(ExitCommandError, "failed to encode model", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write model", err)
	}
	return nil
}

// fitness is the share of fit trace instances, 1 for an empty batch.
func fitness(t replay.Tally) float64 {
	if t.Total() == 0 {
		return 1
	}
	return float64(t.Fit) / float64(t.Total())
}

func countLines(g *graph.Graph) []CountLine {
	var lines []CountLine
	for _, n := range g.Nodes() {
		lines = append(lines, CountLine{Kind: "node", Element: n.ID, Count: n.Count})
	}
	for _, e := range g.Edges() {
		lines = append(lines, CountLine{Kind: "edge", Element: e.Key().String(), Count: e.Count})
	}
	return lines
}

func outputReplayText(f *OutputFormatter, s ReplaySummary, runID string) {
	f.Textf("Model %s (%s)", s.Model, s.Fingerprint[:12])
	for _, t := range s.Traces {
		line := fmt.Sprintf("  %-14s x%d [%s]", "["+string(t.Outcome)+"]", t.Multiplicity, strings.Join(t.Events, ", "))
		if t.Reason != "" {
			line += ": " + t.Reason
		}
		f.Textf("%s", line)
	}
	f.Textf("Instances: fit=%d unfit=%d (fitness %.3f)", s.Instances.Fit, s.Instances.Unfit, s.Fitness)
	f.Textf("Unique:    fit=%d unfit=%d inconclusive=%d", s.Unique.Fit, s.Unique.Unfit, s.Inconclusive)
	f.Textf("Counts:")
	for _, c := range s.Counts {
		f.Textf("  %s %s %d", c.Kind, c.Element, c.Count)
	}
	for _, v := range s.Violations {
		f.Textf("! count violation: %s", v)
	}
	if runID != "" {
		f.Textf("Stored run %s", runID)
	}
}
