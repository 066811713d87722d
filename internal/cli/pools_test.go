package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPools_BuiltIn(t *testing.T) {
	out, _, err := execute(t, NewPoolsCommand(&RootOptions{Format: "text"}))
	require.NoError(t, err)
	assert.Contains(t, out, "pool(s) from built-in")
	assert.Contains(t, out, "mild-rebuke (4 entries): Responses to silly or pointless actions")
	assert.NotContains(t, out, `"A valiant attempt."`, "entries need --verbose")
}

func TestPools_Verbose(t *testing.T) {
	out, _, err := execute(t, NewPoolsCommand(&RootOptions{Format: "text", Verbose: true}))
	require.NoError(t, err)
	assert.Contains(t, out, `"A valiant attempt."`)
}

func TestPools_Match(t *testing.T) {
	out, _, err := execute(t, NewPoolsCommand(&RootOptions{Format: "text"}), "--match", "What a concept!")
	require.NoError(t, err)
	assert.Contains(t, out, `"What a concept!" matches: [mild-rebuke]`)

	out, _, err = execute(t, NewPoolsCommand(&RootOptions{Format: "json"}), "--match", "Pushing the brass lantern has no effect.")
	require.NoError(t, err)
	var resp struct {
		Status string      `json:"status"`
		Data   PoolsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"no-effect"}, resp.Data.Matches)

	_, _, err = execute(t, NewPoolsCommand(&RootOptions{Format: "text"}), "--match", "Taken.")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestPools_CustomFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "pools.cue")
	require.NoError(t, os.WriteFile(good, []byte(`pools: [{
	name: "weather"
	description: "Idle weather remarks"
	entries: ["It is raining.", "The sun shines."]
}]
`), 0644))

	out, _, err := execute(t, NewPoolsCommand(&RootOptions{Format: "markdown"}), "--pools", good)
	require.NoError(t, err)
	assert.Contains(t, out, "| weather | 2 | Idle weather remarks |")

	bad := filepath.Join(dir, "bad.cue")
	require.NoError(t, os.WriteFile(bad, []byte(`pools: [{name: "weather", entries: []}]`), 0644))
	_, stderr, err := execute(t, NewPoolsCommand(&RootOptions{Format: "text"}), "--pools", bad)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stderr, "invalid pools")
}
