package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/parity/internal/report"
	"github.com/roach88/parity/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	RunID    string
	Limit    int
	Diffs    bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long: `List runs recorded with --db, most recent first, or show one run with its
seeds and differences. Runs interrupted before they finished are listed as
RUNNING and keep the seeds they completed.

Example:
  parity history --db runs.db
  parity history --db runs.db --run 0192f0c4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show this run")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 for all)")
	cmd.Flags().BoolVar(&opts.Diffs, "diffs", false, "show unified diffs in text output")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	renderer, err := report.For(opts.Format, opts.Diffs)
	if err != nil {
		return formatter.Fail(ExitCommandError, "invalid format", err)
	}

	if _, err := os.Stat(opts.Database); err != nil {
		return formatter.Fail(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return formatter.Fail(ExitCommandError, "failed to list runs", err)
		}
		if err := renderer.Runs(cmd.OutOrStdout(), runs); err != nil {
			return WrapExitError(ExitCommandError, "failed to write report", err)
		}
		return nil
	}

	run, seeds, err := st.LoadRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		return formatter.Fail(ExitCommandError, "unknown run", err)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to load run", err)
	}
	if err := renderer.Run(cmd.OutOrStdout(), run, seeds); err != nil {
		return WrapExitError(ExitCommandError, "failed to write report", err)
	}
	return nil
}
