package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args, returning stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "go-rt", cmd.Use)

	for _, name := range []string{"run", "config"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for name, def := range map[string]string{
		"tasks":      "10",
		"sleep":      "10ms",
		"fail-every": "0",
		"timeout":    "0s",
	} {
		f := runCmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, def, f.DefValue, name)
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "config", "--format", "xml")
	assert.ErrorContains(t, err, `invalid format "xml"`)
}

func TestConfigCommand_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, tc := range []struct {
		name string
		args []string
	}{
		{"config_text", []string{"config", "--config", "testdata/runtime.yaml"}},
		{"config_json", []string{"config", "--config", "testdata/runtime.yaml", "--format", "json"}},
		{"config_default", []string{"config"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out, err := execute(t, tc.args...)
			require.NoError(t, err)
			g.Assert(t, tc.name, []byte(out))
		})
	}
}

func TestConfigCommand_Invalid(t *testing.T) {
	dir := t.TempDir()
	for name, doc := range map[string]string{
		"unknown.yaml": "budget: 1\n",
		"level.yaml":   "log_level: shouty\n",
		"rate.yaml":    "failure_log_rate:\n  often: 1\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
			_, err := execute(t, "config", "--config", path)
			assert.Error(t, err)
		})
	}

	_, err := execute(t, "config", "--config", filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
