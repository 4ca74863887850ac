package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "theo", cmd.Name())
	assert.Contains(t, cmd.Long, "!theo")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"run", "validate", "history"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestRootSharesRunFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"output", "record", "artifacts", "valgrind", "sentinel", "color"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "root is missing --%s", name)
	}
	assert.Equal(t, "o", cmd.Flags().Lookup("output").Shorthand)
	assert.Equal(t, "!theo", cmd.Flags().Lookup("sentinel").DefValue)
}

func TestRoot_InvalidFormat(t *testing.T) {
	_, _, code := execute(t, "--format", "yaml", "validate", ".")
	assert.Equal(t, ExitCommandError, code)
}

func TestRoot_NoArgsPrintsHelp(t *testing.T) {
	stdout, _, code := execute(t)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Usage:")
}
