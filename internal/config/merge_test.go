package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thecopy-and-thepaste/DA/internal/config"
)

// newDefaultTarget returns a Config with known non-zero values so tests can
// verify that absent overlay keys leave the original values intact.
func newDefaultTarget() *config.Config {
	return &config.Config{
		Process: config.ProcessSettings{NumWorkers: 3, NumBatches: 6},
		Cache: config.CacheConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "bed_cachr",
			ConnectTimeout: time.Second,
		},
		Logging: config.LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// writeOverlay is a test helper that writes YAML content to a temp file
// and returns its path.
func writeOverlay(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestShallowMergeYAML_SingleKeyOverride(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
process:
  num_workers: 8
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))

	// The whole process section is replaced, so num_batches resets.
	assert.Equal(t, 8, target.Process.NumWorkers)
	assert.Equal(t, 0, target.Process.NumBatches)

	// Other sections should be unchanged.
	assert.Equal(t, "info", target.Logging.Level)
	assert.Equal(t, "mongodb://localhost:27017", target.Cache.URI)
}

func TestShallowMergeYAML_CacheDefaults(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
cache:
  uri: sqlite:///tmp/cachr.db
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))

	assert.Equal(t, "sqlite:///tmp/cachr.db", target.Cache.URI)
	assert.Equal(t, config.DefaultCacheDatabase, target.Cache.Database)
	assert.Equal(t, config.DefaultConnectTimeout, target.Cache.ConnectTimeout)
}

func TestShallowMergeYAML_DurationAndUnknownKeys(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
unknown_section:
  foo: bar
cache:
  uri: redis://localhost:6379/0
  database: occurrences
  connect_timeout: 3s
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))

	assert.Equal(t, "occurrences", target.Cache.Database)
	assert.Equal(t, 3*time.Second, target.Cache.ConnectTimeout)
	assert.Equal(t, 3, target.Process.NumWorkers)
}

func TestShallowMergeYAML_EmptyFile(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, "# nothing here\n")

	require.NoError(t, config.ShallowMergeYAML(target, overlay))
	assert.Equal(t, newDefaultTarget(), target)
}

func TestShallowMergeYAML_Errors(t *testing.T) {
	t.Run("NilTarget", func(t *testing.T) {
		err := config.ShallowMergeYAML(nil, "irrelevant.yaml")
		assert.Error(t, err)
	})

	t.Run("MissingFile", func(t *testing.T) {
		err := config.ShallowMergeYAML(newDefaultTarget(), filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("InvalidYAML", func(t *testing.T) {
		overlay := writeOverlay(t, "process: [unclosed")
		err := config.ShallowMergeYAML(newDefaultTarget(), overlay)
		assert.Error(t, err)
	})

	t.Run("WrongSectionType", func(t *testing.T) {
		overlay := writeOverlay(t, "process:\n  num_workers: many\n")
		err := config.ShallowMergeYAML(newDefaultTarget(), overlay)
		assert.Error(t, err)
	})
}
