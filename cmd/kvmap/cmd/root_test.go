package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs a fresh command tree in an isolated directory so no stray
// kvmap.yaml is picked up.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Chdir(t.TempDir())

	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "kvmap", root.Use)
	assert.NotEmpty(t, root.Short)
	assert.NotEmpty(t, root.Long)
}

func TestRootCommandHelp(t *testing.T) {
	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Available Commands:")
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "annotation template")
}

func TestRootCommandVersion(t *testing.T) {
	out, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "kvmap version")
}

func TestRootCommandSubcommands(t *testing.T) {
	var names []string
	for _, c := range NewRootCommand().Commands() {
		names = append(names, c.Name())
	}
	for _, expected := range []string{"map", "batch", "serve", "config"} {
		assert.Contains(t, names, expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	_, _, err := execute(t, "--no-such-flag")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestRootCommandTreesAreIndependent(t *testing.T) {
	a := NewRootCommand()
	b := NewRootCommand()
	require.NoError(t, a.PersistentFlags().Set("log-level", "debug"))
	assert.Equal(t, "info", b.PersistentFlags().Lookup("log-level").Value.String())
}

func TestSetupRejectsInvalidLogLevel(t *testing.T) {
	_, _, err := execute(t, "config", "path", "--log-level", "loud")
	require.NoError(t, err, "config commands skip validation")

	_, _, err = execute(t, "map", "--template", "t", "--fine", "f", "--coarse", "c", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading configuration")
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	cfg := defaultTestConfig()
	cfg.LogLevel = "warn"
	logger := newLogger(&buf, cfg)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	cfg.Verbose = true
	newLogger(&buf, cfg).Debug("detail")
	assert.Contains(t, buf.String(), "detail")
}
