package dedupe

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luhtaf/crawldedup/internal/bloom"
)

func newGuard(t *testing.T, capacity int) *Guard {
	t.Helper()
	f, err := bloom.New(capacity)
	require.NoError(t, err)
	return NewGuard(f)
}

func TestSeenMark(t *testing.T) {
	g := newGuard(t, 1000)
	assert.False(t, g.Seen("https://example.com/"))
	g.Mark("https://example.com/")
	assert.True(t, g.Seen("https://example.com/"))
}

func TestCheckAndMark(t *testing.T) {
	g := newGuard(t, 1000)
	assert.True(t, g.CheckAndMark("https://example.com/a"))
	assert.False(t, g.CheckAndMark("https://example.com/a"))

	s := g.Stats()
	assert.Equal(t, int64(1), s.Added)
	assert.Equal(t, int64(1), s.Skipped)
	assert.Positive(t, s.Truthiness)
	assert.Equal(t, s.Truthiness, g.Truthiness())
}

func TestCheckAndMarkConcurrent(t *testing.T) {
	g := newGuard(t, 10000)

	const workers = 8
	const keys = 500
	wins := make([]int, keys)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range keys {
				if g.CheckAndMark(fmt.Sprintf("https://example.com/%d", i)) {
					mu.Lock()
					wins[i]++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	// A key loses only if it was a false positive before its first insert.
	var total int
	for i, n := range wins {
		require.LessOrEqual(t, n, 1, "key %d enqueued more than once", i)
		total += n
	}
	assert.Greater(t, total, keys*9/10)
	assert.Equal(t, int64(workers*keys), g.Stats().Added+g.Stats().Skipped)
}

func TestSnapshotRestores(t *testing.T) {
	g := newGuard(t, 1000)
	for i := range 100 {
		g.Mark(fmt.Sprintf("k-%d", i))
	}

	f, err := bloom.FromBytes(g.Snapshot())
	require.NoError(t, err)
	restored := NewGuard(f)
	for i := range 100 {
		assert.True(t, restored.Seen(fmt.Sprintf("k-%d", i)))
	}
	assert.Equal(t, g.Truthiness(), restored.Truthiness())
}

func TestCheckAndCommit(t *testing.T) {
	g := newGuard(t, 1000)
	key := "https://example.com/retry"

	ok, err := g.CheckAndCommit(key, func() error { return errors.New("disk full") })
	require.ErrorContains(t, err, "disk full")
	assert.False(t, ok)
	assert.False(t, g.Seen(key))

	var commits int
	commit := func() error { commits++; return nil }
	ok, err = g.CheckAndCommit(key, commit)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, g.Seen(key))

	ok, err = g.CheckAndCommit(key, commit)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, commits)

	s := g.Stats()
	assert.Equal(t, int64(1), s.Added)
	assert.Equal(t, int64(1), s.Skipped)
}
