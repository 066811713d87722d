package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parity/internal/store"
	"github.com/roach88/parity/internal/validator"
)

func newValidate(iutScript bool) *RootOptions {
	iut := referenceScript
	if !iutScript {
		iut = buggyScript
	}
	return &RootOptions{Format: "text", Factories: scripted(iut, referenceScript)}
}

func TestValidate_Pass(t *testing.T) {
	cfg := writeWorkspace(t, true)

	out, _, err := execute(t, NewValidateCommand(newValidate(true)), "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Parity PASS: 2 seed(s), 6 command(s)")
	assert.Contains(t, out, "Seed 1 (validated)")
	assert.NotContains(t, out, "STANDALONE")
}

func TestValidate_LogicDifferenceFails(t *testing.T) {
	cfg := writeWorkspace(t, true)

	out, _, err := execute(t, NewValidateCommand(newValidate(false)), "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 logic difference(s), 0 accepted")

	assert.Contains(t, out, "Parity FAIL")
	assert.Contains(t, out, `#1 "open mailbox" [LOGIC_DIFFERENCE`)
	assert.Contains(t, out, "-Opening the small mailbox reveals a leaflet.")
	assert.Contains(t, out, "+The mailbox is locked.")
}

func TestValidate_FlagOverrides(t *testing.T) {
	cfg := writeWorkspace(t, true)

	out, _, err := execute(t, NewValidateCommand(newValidate(false)),
		"--config", cfg, "--seeds", "5", "--commands", "2", "--accept", "1", "--diffs=false")
	require.NoError(t, err, "one logic difference is accepted")
	assert.Contains(t, out, "Parity PASS: 1 seed(s), 2 command(s)")
	assert.Contains(t, out, "Seed 5 (validated)")
	assert.NotContains(t, out, "+The mailbox is locked.")
}

func TestValidate_Standalone(t *testing.T) {
	cfg := writeWorkspace(t, false)

	out, stderr, err := execute(t, NewValidateCommand(newValidate(false)), "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "STANDALONE: 2 seed(s) ran without a reference")
	assert.Contains(t, out, "Seed 1 (standalone)")
	assert.Contains(t, stderr, "running standalone")
}

func TestValidate_ConfigurationErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	_, stderr, err := execute(t, NewValidateCommand(newValidate(true)), "--config", missing)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, Reported(err))
	assert.Contains(t, stderr, "Error [CONFIGURATION_ERROR]")

	cfg := writeWorkspace(t, true)
	_, _, err = execute(t, NewValidateCommand(newValidate(true)), "--config", cfg, "--parallelism=-1", "--accept=-5")
	require.NoError(t, err, "negative overrides are ignored")

	_, _, err = execute(t, NewValidateCommand(newValidate(true)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestValidate_MissingCommandFile(t *testing.T) {
	cfg := writeWorkspace(t, true)
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(cfg), "commands.txt")))

	_, stderr, err := execute(t, NewValidateCommand(newValidate(true)), "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stderr, "commands:")
}

func TestValidate_JSONOutput(t *testing.T) {
	cfg := writeWorkspace(t, true)
	opts := newValidate(false)
	opts.Format = "json"

	out, _, err := execute(t, NewValidateCommand(opts), "--config", cfg)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var pr validator.ParityResults
	require.NoError(t, json.Unmarshal([]byte(out), &pr))
	assert.Equal(t, []int64{1, 2}, pr.Seeds)
	assert.Equal(t, 2, pr.LogicDifferences)
	assert.False(t, pr.Pass)
	require.Len(t, pr.SeedResults, 2)
}

func TestValidate_RecordsRunAndMetrics(t *testing.T) {
	cfg := writeWorkspace(t, true)
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	metrics := filepath.Join(dir, "parity.prom")

	_, _, err := execute(t, NewValidateCommand(newValidate(false)),
		"--config", cfg, "--db", db, "--metrics", metrics)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.KindSeeds, runs[0].Kind)
	assert.True(t, runs[0].Finished())
	assert.False(t, runs[0].Pass)
	assert.Equal(t, 2, runs[0].SeedCount)
	assert.Contains(t, runs[0].Config, "under_test:")

	_, seeds, err := st.LoadRun(context.Background(), runs[0].ID)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Len(t, seeds[0].Differences, 1)
	assert.Equal(t, 3, seeds[0].UnderTest.Len())

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), `parity_seeds_total{mode="validated",outcome="ok"} 2`)
	assert.Contains(t, string(data), "parity_commands_total 6")
}

func TestValidate_MarkdownOutput(t *testing.T) {
	cfg := writeWorkspace(t, true)
	opts := newValidate(false)
	opts.Format = "markdown"

	out, _, _ := execute(t, NewValidateCommand(opts), "--config", cfg)
	assert.Contains(t, out, "# Parity results")
	assert.Contains(t, out, "```diff")
}
