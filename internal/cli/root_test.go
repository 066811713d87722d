package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "parity", cmd.Use)
	assert.Contains(t, cmd.Long, "logic difference")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compare", "validate", "extended", "record", "pools", "history"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	logFormatFlag := cmd.PersistentFlags().Lookup("log-format")
	require.NotNil(t, logFormatFlag)
	assert.Equal(t, "text", logFormatFlag.DefValue)
}

func TestValidateCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	validateCmd, _, err := cmd.Find([]string{"validate"})
	require.NoError(t, err)

	for _, name := range []string{"config", "seeds", "commands", "parallelism", "accept", "db", "metrics", "diffs"} {
		assert.NotNil(t, validateCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "c", validateCmd.Flags().Lookup("config").Shorthand)
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, _, err := execute(t, NewRootCommand(), "pools", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestRootCommand_InvalidLogFormat(t *testing.T) {
	_, _, err := execute(t, NewRootCommand(), "pools", "--log-format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootCommand_RunsSubcommand(t *testing.T) {
	out, _, err := execute(t, NewRootCommand(), "pools")
	require.NoError(t, err)
	assert.Contains(t, out, "mild-rebuke")
}
