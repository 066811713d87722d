package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/parity/internal/adapter"
	"github.com/roach88/parity/internal/config"
	"github.com/roach88/parity/internal/report"
)

// FactoryBuilder builds the session factories for a configuration. The
// reference factory is nil when no reference is configured.
type FactoryBuilder func(cfg *config.Config, logger *slog.Logger) (underTest, reference adapter.Factory, err error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "text" | "markdown" | "json"
	LogFormat string // "text" | "json"

	// Factories allows overriding the interpreter factories (for testing).
	// If nil, process factories are built from the configuration.
	Factories FactoryBuilder
}

// ValidFormats defines the allowed output formats.
var ValidFormats = report.Formats

// ValidLogFormats defines the allowed log formats.
var ValidLogFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the parity CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "parity",
		Short: "parity - behavioral parity for interactive-fiction engines",
		Long: `Drive an implementation under test and a reference interpreter through
identical command sequences and classify every divergence in their output as
an RNG difference, a state divergence or a logic difference.`,
		SilenceUsage:  true,
		SilenceErrors: true, // main prints errors the commands did not report
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if !slices.Contains(ValidLogFormats, opts.LogFormat) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid log format %q: must be one of %v", opts.LogFormat, ValidLogFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|markdown|json)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "text", "log format on stderr (text|json)")

	// Add subcommands
	cmd.AddCommand(NewCompareCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewExtendedCommand(opts))
	cmd.AddCommand(NewRecordCommand(opts))
	cmd.AddCommand(NewPoolsCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// logger builds the diagnostic logger. Logs go to w, never to the
// command's output, so JSON output stays parseable.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if o.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// factories returns the configured factories, honoring the test override.
func (o *RootOptions) factories(cfg *config.Config, logger *slog.Logger) (adapter.Factory, adapter.Factory, error) {
	if o.Factories != nil {
		return o.Factories(cfg, logger)
	}
	return cfg.Factories(adapter.WithLogger(logger))
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
