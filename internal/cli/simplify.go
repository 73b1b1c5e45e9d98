package cli

import (
	"bytes"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/conform/internal/graph"
	"github.com/roach88/conform/internal/loader"
)

// SimplifyOptions holds flags for the simplify command.
type SimplifyOptions struct {
	*RootOptions
	Output     string // write the model here instead of stdout
	Structural bool   // reduce only, keep uncounted nodes
}

// SimplifyResult is the JSON payload of the simplify command.
type SimplifyResult struct {
	Changed bool             `json:"changed"`
	Before  graph.Complexity `json:"before"`
	After   graph.Complexity `json:"after"`
	Model   *loader.Model    `json:"model"`
}

// NewSimplifyCommand creates the simplify command.
func NewSimplifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimplifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simplify <model>",
		Short: "Simplify a counted model",
		Long: `Project a model onto its counted nodes and simplify the result.

Nodes that were never executed are dropped, then trivial gateways are
removed, nested parallel blocks flattened and redundant parallel edges
deleted until nothing changes. The model is printed as YAML.

With --structural the count projection is skipped, so an uncounted model
can be simplified too.

Examples:
  conform replay order.cue traces.yaml --output-model counted.yaml
  conform simplify counted.yaml
  conform simplify order.cue --structural -o simple.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimplify(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the simplified model to a file")
	cmd.Flags().BoolVar(&opts.Structural, "structural", false, "skip the count projection")

	return cmd
}

func runSimplify(opts *SimplifyOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	m, g, err := loadModel(formatter, path)
	if err != nil {
		return err
	}
	before := g.Complexity()

	simplified := g
	if opts.Structural {
		g.Reduce()
	} else {
		simplified, err = g.Simplified()
		if err != nil {
			_ = formatter.Error(string(graph.ErrCodeStructural), err.Error(), nil)
			return WrapExitError(ExitFailure, "simplification failed", err)
		}
	}

	out := loader.FromGraph(m.Name, simplified)
	var buf bytes.Buffer
	if err := loader.WriteYAML(&buf, out); err != nil {
		return WrapExitError(ExitCommandError, "failed to encode model", err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, buf.Bytes(), 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write model", err)
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
	}

	after := simplified.Complexity()
	if formatter.JSON() {
		return formatter.Success(SimplifyResult{
			Changed: before != after,
			Before:  before,
			After:   after,
			Model:   out,
		})
	}
	if opts.Output == "" {
		_, err := formatter.Writer.Write(buf.Bytes())
		return err
	}
	formatter.Textf("✓ Simplified %s: %d -> %d nodes, %d -> %d edges",
		modelName(m, path), before.Nodes, after.Nodes, before.Edges, after.Edges)
	return nil
}
