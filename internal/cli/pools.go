package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/parity/internal/classify"
)

// PoolsOptions holds flags for the pools command.
type PoolsOptions struct {
	*RootOptions
	Pools string
	Match string
}

// PoolsResult is the JSON payload of the pools command.
type PoolsResult struct {
	Source  string          `json:"source"`
	Pools   []classify.Pool `json:"pools"`
	Message string          `json:"message,omitempty"`
	Matches []string        `json:"matches,omitempty"`
}

// NewPoolsCommand creates the pools command.
func NewPoolsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PoolsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pools",
		Short: "List and check RNG message pools",
		Long: `Validate a pool file against the pool schema and list its pools. Without
--pools the built-in table is shown. With --match, report which pools a
response belongs to.

Example:
  parity pools
  parity pools --pools custom-pools.cue --match "What a concept!"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPools(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Pools, "pools", "", "CUE file of RNG message pools (default built-in)")
	cmd.Flags().StringVar(&opts.Match, "match", "", "report the pools this response belongs to")

	return cmd
}

func runPools(opts *PoolsOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	set, err := loadPools(opts.Pools)
	if err != nil {
		return formatter.Fail(ExitCommandError, "invalid pools", err)
	}

	result := PoolsResult{Source: opts.Pools, Pools: set.Pools()}
	if result.Source == "" {
		result.Source = "built-in"
	}
	if opts.Match != "" {
		result.Message = opts.Match
		result.Matches = set.MatchingPools(opts.Match)
	}

	switch opts.Format {
	case "json":
		return formatter.Success(result)
	case "markdown":
		writePoolsMarkdown(cmd.OutOrStdout(), result)
	default:
		writePoolsText(cmd.OutOrStdout(), result, opts.Verbose)
	}

	if opts.Match != "" && len(result.Matches) == 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%q is not in any pool", opts.Match))
	}
	return nil
}

func writePoolsText(w io.Writer, r PoolsResult, verbose bool) {
	fmt.Fprintf(w, "%d pool(s) from %s\n", len(r.Pools), r.Source)
	for _, p := range r.Pools {
		fmt.Fprintf(w, "  %s (%d entries)", p.Name, len(p.Entries))
		if p.Description != "" {
			fmt.Fprintf(w, ": %s", p.Description)
		}
		fmt.Fprintln(w)
		if verbose {
			for _, e := range p.Entries {
				fmt.Fprintf(w, "    %q\n", e)
			}
		}
	}
	if r.Message != "" {
		if len(r.Matches) == 0 {
			fmt.Fprintf(w, "%q matches no pool\n", r.Message)
		} else {
			fmt.Fprintf(w, "%q matches: %v\n", r.Message, r.Matches)
		}
	}
}

func writePoolsMarkdown(w io.Writer, r PoolsResult) {
	fmt.Fprintf(w, "| Pool | Entries | Description |\n|---|---|---|\n")
	for _, p := range r.Pools {
		fmt.Fprintf(w, "| %s | %d | %s |\n", p.Name, len(p.Entries), p.Description)
	}
	if r.Message != "" {
		fmt.Fprintf(w, "\n`%s` matches: %v\n", r.Message, r.Matches)
	}
}
