package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parity/internal/adapter"
	"github.com/roach88/parity/internal/config"
	"github.com/roach88/parity/internal/testutil"
	"github.com/roach88/parity/internal/transcript"
)

var (
	referenceScript = testutil.Script{
		Responses: map[string]string{
			"look":         "West of House\nYou are standing in an open field west of a white house.",
			"open mailbox": "Opening the small mailbox reveals a leaflet.",
			"take lamp":    "Taken.",
		},
	}

	buggyScript = testutil.Script{
		Responses: map[string]string{
			"look":         "West of House\nYou are standing in an open field west of a white house.",
			"open mailbox": "The mailbox is locked.",
			"take lamp":    "Taken.",
		},
	}
)

// writeWorkspace writes a command file and a parity.yaml into a temp
// directory and returns the config path. withReference adds a reference
// interpreter.
func writeWorkspace(t *testing.T, withReference bool) string {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "commands.txt"),
		[]byte("# opening moves\nlook\nopen mailbox\ntake lamp\n"), 0644))

	cfg := `seeds: [1, 2]
commands: commands.txt
under_test:
  binary: iut-interpreter
`
	if withReference {
		cfg += `reference:
  binary: reference-interpreter
`
	}
	path := filepath.Join(dir, "parity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path
}

// scripted builds in-process factories in place of interpreter processes.
func scripted(iut, ref testutil.Script) FactoryBuilder {
	return func(cfg *config.Config, _ *slog.Logger) (adapter.Factory, adapter.Factory, error) {
		var reference adapter.Factory
		if cfg.Reference != nil {
			reference = ref.Factory(transcript.SourceReference)
		}
		return iut.Factory(transcript.SourceUnderTest), reference, nil
	}
}

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
