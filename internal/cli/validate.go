package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/conform/internal/graph"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid           bool             `json:"valid"`
	Name            string           `json:"name"`
	Fingerprint     string           `json:"fingerprint"`
	Parallel        bool             `json:"parallel"`
	TrivialGateways []string         `json:"trivial_gateways,omitempty"`
	Complexity      graph.Complexity `json:"complexity"`
	Errors          []string         `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <model>",
		Short: "Check a model's structure",
		Long: `Load a model and check it without replaying anything.

Reports structural errors, gateways that a simplification would remove,
complexity metrics and, for models that carry counts, every violated
count balance rule.

Exit codes:
  0 - Model is valid
  1 - Model is structurally invalid or its counts do not balance
  2 - Command error (file not found, parse error, etc.)

Examples:
  conform validate ./order.cue
  conform validate ./models --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	m, g, err := loadModel(formatter, path)
	if err != nil {
		return err
	}

	result := ValidationResult{
		Valid:           true,
		Name:            modelName(m, path),
		Fingerprint:     g.Fingerprint(),
		Parallel:        g.HasParallel(),
		TrivialGateways: g.TrivialGateways(),
		Complexity:      g.Complexity(),
	}
	if err := g.CheckIndex(); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	for _, v := range g.ValidateCounts() {
		result.Errors = append(result.Errors, "count violation: "+v.String())
	}
	result.Valid = len(result.Errors) == 0

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputValidateText(formatter, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}

func outputValidateText(f *OutputFormatter, r ValidationResult) {
	c := r.Complexity
	if r.Valid {
		f.Textf("✓ Model valid: %s", r.Name)
	} else {
		f.Textf("✗ Validation failed: %s", r.Name)
		for _, e := range r.Errors {
			f.Textf("  %s", e)
		}
	}
	f.Textf("  nodes=%d edges=%d tasks=%d", c.Nodes, c.Edges, c.Tasks)
	f.Textf("  xor split/join=%d/%d and split/join=%d/%d", c.XorSplits, c.XorJoins, c.AndSplits, c.AndJoins)
	f.Textf("  cfc=%d cnc=%.2f", c.CFC, c.CNC)
	if len(r.TrivialGateways) > 0 {
		f.Textf("  trivial gateways: %v", r.TrivialGateways)
	}
}
