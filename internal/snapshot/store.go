package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by Load when no snapshot exists under the name.
	ErrNotFound = errors.New("snapshot: not found")

	// ErrCorrupt is returned when a stored snapshot cannot be decoded.
	ErrCorrupt = errors.New("snapshot: corrupt")
)

// Meta describes the filter inside a snapshot blob.
type Meta struct {
	RunID             string
	HashFunctionCount int
	BitCount          int
	Truthiness        float64
	CreatedAt         time.Time
}

// Store persists encoded snapshots by name.
type Store interface {
	Save(ctx context.Context, name string, blob []byte, meta Meta) error
	Load(ctx context.Context, name string) ([]byte, error)
	Close() error
}

// Pruner is implemented by stores that keep several generations per name.
type Pruner interface {
	Prune(ctx context.Context, name string, keep int) (int64, error)
}

// Nop never persists anything.
type Nop struct{}

func (Nop) Save(context.Context, string, []byte, Meta) error { return nil }

func (Nop) Load(_ context.Context, name string) ([]byte, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

func (Nop) Close() error { return nil }
