package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/parity/internal/adapter"
	"github.com/roach88/parity/internal/report"
	"github.com/roach88/parity/internal/store"
	"github.com/roach88/parity/internal/validator"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Config          string
	Seeds           []int64
	CommandsPerSeed int
	Parallelism     int
	Accept          int
	Database        string
	Metrics         string
	Diffs           bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run both implementations over many seeds and check parity",
		Long: `Run the implementation under test and the reference interpreter through
the configured command sequence once per seed, compare the transcripts and
classify every difference.

The run passes when the logic differences across all seeds do not exceed the
accepted count and no session failed. Without a reachable reference the
implementation under test still runs, and the result is labelled STANDALONE.

Exit codes: 0 parity holds, 1 parity failure, 2 configuration or runtime error.

Example:
  parity validate --config parity.yaml
  parity validate --config parity.yaml --seeds 1,2,3 --db runs.db --format markdown`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to parity.yaml (required)")
	cmd.Flags().Int64SliceVar(&opts.Seeds, "seeds", nil, "seeds to run (overrides the configuration)")
	cmd.Flags().IntVar(&opts.CommandsPerSeed, "commands", 0, "commands per seed (overrides the configuration)")
	cmd.Flags().IntVar(&opts.Parallelism, "parallelism", 0, "seeds run concurrently (overrides the configuration)")
	cmd.Flags().IntVar(&opts.Accept, "accept", -1, "accepted logic differences (overrides the configuration)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database to record the run in (overrides the configuration)")
	cmd.Flags().StringVar(&opts.Metrics, "metrics", "", "write Prometheus metrics to this textfile")
	cmd.Flags().BoolVar(&opts.Diffs, "diffs", true, "show unified diffs in text output")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())
	ctx := commandContext(cmd)

	renderer, err := report.For(opts.Format, opts.Diffs)
	if err != nil {
		return formatter.Fail(ExitCommandError, "invalid format", err)
	}

	ws, err := LoadWorkspace(opts.Config)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to load configuration", err)
	}
	cfg := ws.Config
	if len(opts.Seeds) > 0 {
		cfg.Seeds = opts.Seeds
	}
	if opts.CommandsPerSeed > 0 {
		cfg.CommandsPerSeed = opts.CommandsPerSeed
	}
	if opts.Parallelism > 0 {
		cfg.Parallelism = opts.Parallelism
	}
	if opts.Accept >= 0 {
		cfg.AcceptedLogicDifferences = opts.Accept
	}
	if opts.Database != "" {
		cfg.DB = opts.Database
	}
	if err := cfg.Validate(); err != nil {
		return formatter.Fail(ExitCommandError, "invalid configuration", err)
	}
	formatter.VerboseLog("Loaded %d command(s) from %s", len(ws.Sequence.Commands), cfg.Commands)

	underTest, reference, err := opts.factories(cfg, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to create interpreters", err)
	}
	if reference == nil {
		logger.Warn("no reference configured; running standalone")
	}

	rec, err := beginRun(ctx, cfg.DB, store.KindSeeds, cfg.Seeds, cfg.String(), logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to open database", err)
	}
	defer rec.close()
	metrics := newMetricsSink(opts.Metrics)

	vopts := []validator.Option{validator.WithLogger(logger)}
	vopts = append(vopts, rec.options()...)
	vopts = append(vopts, metrics.options()...)
	v, err := validator.New(validator.Config{
		Seeds:                    cfg.Seeds,
		Commands:                 ws.Sequence.Commands,
		CommandsPerSeed:          cfg.CommandsPerSeed,
		AcceptedLogicDifferences: cfg.AcceptedLogicDifferences,
		Parallelism:              cfg.Parallelism,
	}, underTest, reference, ws.Comparator, vopts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, "invalid configuration", err)
	}

	start := time.Now()
	logger.Info("validating", "seeds", len(cfg.Seeds), "commands", len(ws.Sequence.Commands), "parallelism", cfg.Parallelism)
	pr, err := v.RunWithSeeds(ctx, cfg.Seeds)
	if err != nil {
		return formatter.Fail(ExitCommandError, runFailureMessage(err), err)
	}
	logger.Info("validation finished", "pass", pr.Pass, "logic_parity", pr.OverallParityPercentage,
		"elapsed", time.Since(start).Round(time.Millisecond))

	if err := rec.finish(ctx, pr); err != nil {
		return formatter.Fail(ExitCommandError, "failed to record run", err)
	}
	if err := metrics.write(); err != nil {
		return formatter.Fail(ExitCommandError, "failed to write metrics", err)
	}

	if err := renderer.Parity(cmd.OutOrStdout(), pr); err != nil {
		return WrapExitError(ExitCommandError, "failed to write report", err)
	}
	if id := rec.runID(); id != "" {
		formatter.VerboseLog("Recorded run %s", id)
	}

	if !pr.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("parity check failed: %d logic difference(s), %d accepted, %d failed seed(s)",
			pr.LogicDifferences, pr.AcceptedLogicDifferences, len(pr.Failures)))
	}
	return nil
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runFailureMessage(err error) string {
	switch {
	case adapter.IsConfiguration(err):
		return "invalid configuration"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "run interrupted"
	default:
		return "run failed"
	}
}
