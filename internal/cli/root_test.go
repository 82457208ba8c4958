package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "dmap", cmd.Use)
	assert.Contains(t, cmd.Long, "double map")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"join"}, {"assign"}, {"remove-member"}, {"remove-group"},
		{"entry", "set"}, {"entry", "get"}, {"entry", "take"}, {"entry", "increase"},
		{"members"}, {"group"}, {"score"}, {"scores"}, {"events"},
		{"verify"}, {"replay"}, {"serve"}, {"test"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
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

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	callerFlag := cmd.PersistentFlags().Lookup("caller")
	require.NotNil(t, callerFlag)
	assert.Equal(t, "0", callerFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	cfg, _ := writeConfig(t)
	_, err := execute(t, cfg, "members", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "/nonexistent/dmap.yaml", "members")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}
