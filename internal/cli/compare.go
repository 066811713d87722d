package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/parity/internal/adapter"
	"github.com/roach88/parity/internal/compare"
	"github.com/roach88/parity/internal/report"
	"github.com/roach88/parity/internal/transcript"
)

// CompareOptions holds flags for the compare command.
type CompareOptions struct {
	*RootOptions
	Pools           string
	Tolerance       float64
	KnownVariations []string
	IgnoreCase      bool
	Accept          int
	Diffs           bool
}

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compare <reference.json> <under-test.json>",
		Short: "Compare two recorded transcripts",
		Long: `Compare two transcripts recorded by "parity record" and classify every
difference. The first transcript is the reference.

Exit codes: 0 no logic differences beyond the accepted count, 1 otherwise,
2 unreadable transcripts or pools.

Example:
  parity compare ref.json iut.json
  parity compare ref.json iut.json --pools custom-pools.cue --format markdown`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Pools, "pools", "", "CUE file of RNG message pools (default built-in)")
	cmd.Flags().Float64Var(&opts.Tolerance, "tolerance", compare.DefaultToleranceThreshold, "similarity at or above which responses are a close match")
	cmd.Flags().StringArrayVar(&opts.KnownVariations, "known-variation", nil, "substring that marks an accepted variation (repeatable, commas kept)")
	cmd.Flags().BoolVar(&opts.IgnoreCase, "ignore-case", false, "compare responses case-insensitively")
	cmd.Flags().IntVar(&opts.Accept, "accept", 0, "accepted logic differences")
	cmd.Flags().BoolVar(&opts.Diffs, "diffs", true, "show unified diffs in text output")

	return cmd
}

func runCompare(opts *CompareOptions, referencePath, underTestPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	renderer, err := report.For(opts.Format, opts.Diffs)
	if err != nil {
		return formatter.Fail(ExitCommandError, "invalid format", err)
	}
	if opts.Tolerance < 0 || opts.Tolerance > 1 {
		return formatter.Fail(ExitCommandError, "invalid tolerance",
			adapter.ConfigurationError("tolerance %v: must be within [0, 1]", opts.Tolerance))
	}

	reference, err := transcript.Load(referencePath)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to load reference transcript", err)
	}
	underTest, err := transcript.Load(underTestPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to load transcript under test", err)
	}

	pools, err := loadPools(opts.Pools)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to load pools", err)
	}

	cmpOpts := compare.DefaultOptions()
	cmpOpts.ToleranceThreshold = opts.Tolerance
	cmpOpts.KnownVariations = opts.KnownVariations
	cmpOpts.IgnoreCaseInMessages = opts.IgnoreCase

	formatter.VerboseLog("Comparing %d reference entries with %d entries under test", reference.Len(), underTest.Len())
	r := compare.New(cmpOpts, pools).CompareAndClassify(reference, underTest)

	if err := renderer.Comparison(cmd.OutOrStdout(), r); err != nil {
		return WrapExitError(ExitCommandError, "failed to write report", err)
	}
	if r.LogicDifferences > opts.Accept {
		return NewExitError(ExitFailure, fmt.Sprintf("%d logic difference(s), %d accepted", r.LogicDifferences, opts.Accept))
	}
	return nil
}
