package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 1_000_000, c.Filter.Capacity)
	assert.Equal(t, "file", c.Snapshot.Backend)
	assert.Equal(t, "frontier", c.Snapshot.Name)
	assert.Equal(t, 4, c.Workers.Count)
	assert.Equal(t, "-", c.Queue.Path)
	assert.Equal(t, time.Minute, c.SnapshotInterval())
}

func TestLoadFileAndFlags(t *testing.T) {
	path := writeConfig(t, `
filter:
  capacity: 5000
feed:
  path: /var/crawl/pages.jsonl
snapshot:
  backend: sqlite
  compress: zstd
  interval_s: 0
logging:
  level: debug
`)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--workers", "9", "--snapshot-name", "news"}))

	c, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, 5000, c.Filter.Capacity)
	assert.Equal(t, "/var/crawl/pages.jsonl", c.Feed.Path)
	assert.Equal(t, "sqlite", c.Snapshot.Backend)
	assert.Equal(t, "zstd", c.Snapshot.Compress)
	assert.Equal(t, "debug", c.Logging.Level)
	assert.Equal(t, 9, c.Workers.Count)
	assert.Equal(t, "news", c.Snapshot.Name)
	assert.Zero(t, c.SnapshotInterval())
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("CRAWLDEDUP_FILTER_CAPACITY", "42")
	c, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 42, c.Filter.Capacity)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "filter:\n  capacity: 0\n"), nil)
	require.Error(t, err)

	_, err = Load(writeConfig(t, "snapshot:\n  backend: redis\n"), nil)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestBackoffDuration(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, BackoffDuration(0, 1))
	assert.Equal(t, 1500*time.Millisecond, BackoffDuration(500, 3))
	assert.Equal(t, 100*time.Millisecond, BackoffDuration(100, 0))
}
