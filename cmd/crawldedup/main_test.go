package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luhtaf/crawldedup/internal/config"
	"github.com/luhtaf/crawldedup/internal/snapshot"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	c, err := config.Load("", nil)
	require.NoError(t, err)
	c.Filter.Capacity = 1000
	c.Queue.Path = filepath.Join(dir, "queue.jsonl")
	c.Snapshot.Backend = "sqlite"
	c.Snapshot.SQLitePath = filepath.Join(dir, "snap.db")
	c.Snapshot.BackoffMS = 1
	return c
}

func TestSeedThenStats(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	seedFile := filepath.Join(t.TempDir(), "seeds.txt")
	require.NoError(t, os.WriteFile(seedFile, []byte("# comment\nhttps://b.example/\n\nhttps://a.example\n"), 0o644))

	require.NoError(t, seed(ctx, cfg, seedFile, []string{"https://a.example/", "ftp://skip.example/"}))

	data, err := os.ReadFile(cfg.Queue.Path)
	require.NoError(t, err)
	// https://a.example is a duplicate of https://a.example/ after normalization.
	assert.Equal(t, 2, strings.Count(string(data), "\n"))

	store, err := snapshot.Open(ctx, cfg)
	require.NoError(t, err)
	f, err := snapshot.Restore(ctx, store, cfg.Snapshot.Name)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.True(t, f.Contains("https://a.example/"))
	assert.True(t, f.Contains("https://b.example/"))

	var out bytes.Buffer
	require.NoError(t, stats(ctx, cfg, &out))
	assert.Contains(t, out.String(), "name:        frontier")
	assert.Contains(t, out.String(), "generation 1:")
}

func TestStatsMissing(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, stats(context.Background(), testConfig(t), &out))
	assert.Contains(t, out.String(), "no snapshot")
}

func TestReadSeedsMissing(t *testing.T) {
	_, err := readSeeds(filepath.Join(t.TempDir(), "none"))
	require.Error(t, err)
}
