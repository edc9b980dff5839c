package cli_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thecopy-and-thepaste/DA/internal/cli"
	"github.com/thecopy-and-thepaste/DA/internal/config"
)

// setupCLITest isolates a test from the user's configuration and points the
// cache at a fresh SQLite file. It returns the temp directory used.
func setupCLITest(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.EnvHome, filepath.Join(dir, "home"))
	t.Setenv(config.EnvConfigFile, filepath.Join(dir, "missing.yaml"))
	t.Setenv(config.EnvCacheConnection, "sqlite://"+filepath.Join(dir, "cache.sqlite3"))
	t.Setenv(config.EnvLogLevel, "error")
	t.Setenv(config.EnvNumWorkers, "")
	t.Setenv(config.EnvNumBatches, "")
	t.Cleanup(func() {
		config.SetGlobalConfig(nil)
		config.Process().Reset()
	})

	return dir
}

// runCLI executes the root command with args and returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := cli.NewRootCmd("test")
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cli.Execute(context.Background(), cmd)
	return stdout.String(), stderr.String(), err
}

func mustRunCLI(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := runCLI(t, args...)
	require.NoError(t, err, "stderr: %s", stderr)
	return out
}
