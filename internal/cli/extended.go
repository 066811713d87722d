package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/parity/internal/report"
	"github.com/roach88/parity/internal/store"
	"github.com/roach88/parity/internal/validator"
)

// ExtendedOptions holds flags for the extended command.
type ExtendedOptions struct {
	*RootOptions
	Config      string
	Seed        int64
	MinCommands int
	Database    string
	Metrics     string
	Diffs       bool
}

// NewExtendedCommand creates the extended command.
func NewExtendedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExtendedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "extended",
		Short: "Run one long session to surface drift",
		Long: `Run a single seed for at least --min-commands commands, repeating the
configured sequence as often as needed. Long sessions expose divergences
that only appear after the implementations' states have drifted apart.

Exit codes: 0 no logic differences beyond the accepted count, 1 otherwise,
2 configuration or runtime error.

Example:
  parity extended --config parity.yaml --seed 7 --min-commands 500`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtended(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to parity.yaml (required)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "seed to run")
	cmd.Flags().IntVar(&opts.MinCommands, "min-commands", 100, "minimum number of commands to send")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database to record the run in (overrides the configuration)")
	cmd.Flags().StringVar(&opts.Metrics, "metrics", "", "write Prometheus metrics to this textfile")
	cmd.Flags().BoolVar(&opts.Diffs, "diffs", true, "show unified diffs in text output")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runExtended(opts *ExtendedOptions, cmd *cobra.Command) error {
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
	if opts.Database != "" {
		cfg.DB = opts.Database
	}

	underTest, reference, err := opts.factories(cfg, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to create interpreters", err)
	}

	rec, err := beginRun(ctx, cfg.DB, store.KindExtended, []int64{opts.Seed}, cfg.String(), logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to open database", err)
	}
	defer rec.close()
	metrics := newMetricsSink(opts.Metrics)

	vopts := []validator.Option{validator.WithLogger(logger)}
	vopts = append(vopts, rec.options()...)
	vopts = append(vopts, metrics.options()...)
	v, err := validator.New(validator.Config{
		Commands:                 ws.Sequence.Commands,
		AcceptedLogicDifferences: cfg.AcceptedLogicDifferences,
	}, underTest, reference, ws.Comparator, vopts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, "invalid configuration", err)
	}

	logger.Info("running extended sequence", "seed", opts.Seed, "min_commands", opts.MinCommands)
	er, err := v.RunExtendedSequence(ctx, opts.Seed, opts.MinCommands)
	if err != nil {
		return formatter.Fail(ExitCommandError, runFailureMessage(err), err)
	}

	pr := er.Results(cfg.AcceptedLogicDifferences)
	if err := rec.finish(ctx, pr); err != nil {
		return formatter.Fail(ExitCommandError, "failed to record run", err)
	}
	if err := metrics.write(); err != nil {
		return formatter.Fail(ExitCommandError, "failed to write metrics", err)
	}

	if err := renderer.Extended(cmd.OutOrStdout(), er); err != nil {
		return WrapExitError(ExitCommandError, "failed to write report", err)
	}

	if !pr.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("extended sequence failed: %d logic difference(s) in %d command(s)",
			pr.LogicDifferences, er.CommandCount))
	}
	return nil
}
