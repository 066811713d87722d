package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parity/internal/store"
)

func TestExtended_DriftReadsAsStateAfterFirstLogicDifference(t *testing.T) {
	cfg := writeWorkspace(t, true)

	out, _, err := execute(t, NewExtendedCommand(newValidate(false)),
		"--config", cfg, "--seed", "4", "--min-commands", "7")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 logic difference(s) in 9 command(s)")

	assert.Contains(t, out, "Extended sequence: seed 4, 9 of 7 command(s) run, LOGIC DIFFERENCES FOUND")
	assert.Contains(t, out, "3 difference(s) (0 RNG, 2 state, 1 logic)")
}

func TestExtended_Pass(t *testing.T) {
	cfg := writeWorkspace(t, true)
	db := filepath.Join(t.TempDir(), "runs.db")

	out, _, err := execute(t, NewExtendedCommand(newValidate(true)),
		"--config", cfg, "--min-commands", "4", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "no logic differences")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.KindExtended, runs[0].Kind)
	assert.Equal(t, []int64{1}, runs[0].Seeds)
	assert.True(t, runs[0].Pass)
	assert.Equal(t, 6, runs[0].TotalCommands)
}

func TestExtended_WritesLogicParityMetric(t *testing.T) {
	cfg := writeWorkspace(t, true)
	metrics := filepath.Join(t.TempDir(), "parity.prom")

	_, _, err := execute(t, NewExtendedCommand(newValidate(true)),
		"--config", cfg, "--min-commands", "4", "--metrics", metrics)
	require.NoError(t, err)

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "parity_logic_parity_percentage 100")
	assert.Contains(t, string(data), `parity_seeds_total{mode="validated",outcome="ok"} 1`)
}

func TestExtended_InvalidMinCommands(t *testing.T) {
	cfg := writeWorkspace(t, true)

	_, stderr, err := execute(t, NewExtendedCommand(newValidate(true)),
		"--config", cfg, "--min-commands", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stderr, "CONFIGURATION_ERROR")
}
