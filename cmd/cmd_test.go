package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s2e-tools/senv/internal/env"
)

// execute runs the root command with the given arguments and returns its
// combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestInitThenInfo(t *testing.T) {
	t.Setenv(env.EnvVar, "")
	dir := filepath.Join(t.TempDir(), "analysis")

	out, err := execute(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Environment created")

	_, statErr := os.Stat(filepath.Join(dir, env.MarkerFile))
	require.NoError(t, statErr)

	out, err = execute(t, "--env", dir, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "Images (0)")
	assert.Contains(t, out, "Projects (0)")
}

func TestInfoWithoutEnvironmentFails(t *testing.T) {
	t.Setenv(env.EnvVar, "")
	t.Chdir(t.TempDir())

	_, err := execute(t, "--env", "", "info")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "senv")
}
