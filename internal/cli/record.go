package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/parity/internal/adapter"
	"github.com/roach88/parity/internal/sequence"
	"github.com/roach88/parity/internal/transcript"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Config string
	Seed   int64
	Target string
	Out    string
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one implementation's transcript",
		Long: `Drive one implementation through the configured command sequence and save
the transcript as JSON. Recorded transcripts can be compared later with
"parity compare", which needs no interpreter.

A session that fails midway still saves the entries captured so far.

Example:
  parity record --config parity.yaml --seed 3 --target reference --out ref.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to parity.yaml (required)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "seed to run")
	cmd.Flags().StringVar(&opts.Target, "target", string(transcript.SourceUnderTest), "implementation to record (under-test|reference)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "transcript file to write (default stdout)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runRecord(opts *RecordOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())
	ctx := commandContext(cmd)

	ws, err := LoadWorkspace(opts.Config)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to load configuration", err)
	}

	underTest, reference, err := opts.factories(ws.Config, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to create interpreters", err)
	}
	var factory adapter.Factory
	switch transcript.Source(opts.Target) {
	case transcript.SourceUnderTest:
		factory = underTest
	case transcript.SourceReference:
		if reference == nil {
			return formatter.Fail(ExitCommandError, "invalid target",
				adapter.ConfigurationError("reference: no reference interpreter is configured"))
		}
		factory = reference
	default:
		return formatter.Fail(ExitCommandError, "invalid target",
			adapter.ConfigurationError("target %q: must be %s or %s", opts.Target, transcript.SourceUnderTest, transcript.SourceReference))
	}

	commands := ws.Sequence.Commands
	if n := ws.Config.CommandsPerSeed; n > 0 {
		commands = sequence.Take(commands, n)
	}

	logger.Info("recording", "target", opts.Target, "seed", opts.Seed, "commands", len(commands))
	t, runErr := adapter.Record(ctx, factory, opts.Seed, commands, transcript.SystemClock{})
	if err := writeTranscript(cmd, opts.Out, t); err != nil {
		return formatter.Fail(ExitCommandError, "failed to save transcript", err)
	}
	if runErr != nil {
		return formatter.Fail(ExitCommandError, fmt.Sprintf("session failed after %d entries", t.Len()), runErr)
	}

	if opts.Out != "" {
		return formatter.Success(fmt.Sprintf("Recorded %d entries to %s", t.Len(), opts.Out))
	}
	return nil
}

// writeTranscript saves t to path, or prints it when path is empty.
func writeTranscript(cmd *cobra.Command, path string, t *transcript.Transcript) error {
	if path != "" {
		return transcript.Save(path, t)
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
