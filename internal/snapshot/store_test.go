package snapshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "snaps"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Load(ctx, "frontier")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "frontier", []byte("one"), Meta{}))
	require.NoError(t, s.Save(ctx, "frontier", []byte("two"), Meta{}))

	got, err := s.Load(ctx, "frontier")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(s.Path("frontier")), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "snap.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Load(ctx, "frontier")
	require.ErrorIs(t, err, ErrNotFound)

	for i, body := range []string{"g1", "g2", "g3", "g4"} {
		require.NoError(t, s.Save(ctx, "frontier", []byte(body), Meta{
			RunID:             "run-1",
			HashFunctionCount: 7,
			BitCount:          1024 * (i + 1),
			Truthiness:        0.1 * float64(i+1),
			CreatedAt:         time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
		}))
	}
	require.NoError(t, s.Save(ctx, "other", []byte("x"), Meta{}))

	got, err := s.Load(ctx, "frontier")
	require.NoError(t, err)
	assert.Equal(t, []byte("g4"), got)

	gens, err := s.Generations(ctx, "frontier")
	require.NoError(t, err)
	require.Len(t, gens, 4)
	assert.Equal(t, 4096, gens[0].BitCount)
	assert.Equal(t, int64(2), gens[0].Size)
	assert.Equal(t, "run-1", gens[0].RunID)
	assert.Equal(t, 3, gens[0].CreatedAt.Minute())

	n, err := s.Prune(ctx, "frontier", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	gens, err = s.Generations(ctx, "frontier")
	require.NoError(t, err)
	require.Len(t, gens, 2)

	got, err = s.Load(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)

	n, err = s.Prune(ctx, "frontier", 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNop(t *testing.T) {
	var s Store = Nop{}
	require.NoError(t, s.Save(context.Background(), "x", []byte{1}, Meta{}))
	_, err := s.Load(context.Background(), "x")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMinioObjectKeyAndErrors(t *testing.T) {
	s, err := NewMinioStore("localhost:9000", "ak", "sk", "crawl", "crawldedup", false)
	require.NoError(t, err)
	assert.Equal(t, "crawldedup/frontier.bloom", s.ObjectKey("frontier"))

	err = mapMinioErr(minio.ErrorResponse{Code: "NoSuchKey"}, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	other := minio.ErrorResponse{Code: "AccessDenied"}
	assert.NotErrorIs(t, mapMinioErr(other, "k"), ErrNotFound)

	opts := putOptions(Meta{RunID: "r", HashFunctionCount: 5, BitCount: 64, Truthiness: 0.5})
	assert.Equal(t, "5", opts.UserTags["k"])
	assert.Equal(t, "64", opts.UserTags["bits"])
	assert.Equal(t, "r", opts.UserMetadata["run-id"])
}
