package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parity/internal/testutil"
	"github.com/roach88/parity/internal/transcript"
)

func TestRecord_WritesTranscript(t *testing.T) {
	cfg := writeWorkspace(t, true)
	out := filepath.Join(t.TempDir(), "ref.json")

	stdout, _, err := execute(t, NewRecordCommand(newValidate(true)),
		"--config", cfg, "--seed", "9", "--target", "reference", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Recorded 3 entries to "+out)

	tr, err := transcript.Load(out)
	require.NoError(t, err)
	assert.Equal(t, transcript.SourceReference, tr.Source)
	assert.Equal(t, "9", tr.Metadata["seed"])
	assert.Equal(t, []string{"look", "open mailbox", "take lamp"}, tr.Commands())
}

func TestRecord_Stdout(t *testing.T) {
	cfg := writeWorkspace(t, false)

	stdout, _, err := execute(t, NewRecordCommand(newValidate(false)), "--config", cfg)
	require.NoError(t, err)

	var tr transcript.Transcript
	require.NoError(t, json.Unmarshal([]byte(stdout), &tr))
	assert.Equal(t, transcript.SourceUnderTest, tr.Source)
	require.Len(t, tr.Entries, 3)
	assert.Equal(t, "The mailbox is locked.", tr.Entries[1].Output)
}

func TestRecord_InvalidTarget(t *testing.T) {
	cfg := writeWorkspace(t, false)

	_, stderr, err := execute(t, NewRecordCommand(newValidate(true)), "--config", cfg, "--target", "reference")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stderr, "no reference interpreter is configured")

	_, _, err = execute(t, NewRecordCommand(newValidate(true)), "--config", cfg, "--target", "both")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRecord_SessionFailureKeepsPartialTranscript(t *testing.T) {
	cfg := writeWorkspace(t, false)
	out := filepath.Join(t.TempDir(), "iut.json")

	failing := referenceScript
	failing.FailAt = 3
	opts := &RootOptions{Format: "text", Factories: scripted(failing, testutil.Script{})}

	_, _, err := execute(t, NewRecordCommand(opts), "--config", cfg, "--out", out)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "session failed after 2 entries")

	tr, loadErr := transcript.Load(out)
	require.NoError(t, loadErr)
	assert.Equal(t, 2, tr.Len())
}
