package queue

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueJSONLines(t *testing.T) {
	var buf bytes.Buffer
	q := NewWriter(&buf, nil)
	require.NoError(t, q.Enqueue(Entry{URL: "https://example.com/a", Source: "https://example.com/"}))
	require.NoError(t, q.Enqueue(Entry{URL: "https://example.com/b"}))
	require.NoError(t, q.Close())
	assert.Equal(t, int64(2), q.Count())

	var got []Entry
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "https://example.com/a", got[0].URL)
	assert.Equal(t, "https://example.com/", got[0].Source)
	assert.False(t, got[1].DiscoveredAt.IsZero())
}

func TestOpenFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "queue.jsonl")

	for _, u := range []string{"https://a.example/", "https://b.example/"} {
		q, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, q.Enqueue(Entry{URL: u}))
		require.NoError(t, q.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(data, []byte("\n")))
}
