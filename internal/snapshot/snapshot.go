// Package snapshot persists Bloom filters across process restarts.
//
// A snapshot blob is a filter serialization, optionally framed and compressed
// by Encode. Blobs written by other tools in the bare serialization format load
// unchanged.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/luhtaf/crawldedup/internal/bloom"
	"github.com/luhtaf/crawldedup/internal/config"
	"github.com/luhtaf/crawldedup/internal/dedupe"
	"github.com/luhtaf/crawldedup/internal/log"
)

// Open returns the store selected by cfg.Snapshot.Backend.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.Snapshot.Backend {
	case "file":
		return NewFileStore(cfg.Snapshot.FileDir)
	case "sqlite":
		return OpenSQLite(cfg.Snapshot.SQLitePath)
	case "minio":
		s, err := NewMinioStore(cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.Bucket, cfg.S3.Prefix, cfg.S3.UseSSL)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("snapshot: unknown backend %q", cfg.Snapshot.Backend)
	}
}

// Restore loads and decodes the filter stored under name. A missing snapshot
// is reported as ErrNotFound; undecodable data as ErrCorrupt.
func Restore(ctx context.Context, s Store, name string) (*bloom.Filter, error) {
	blob, err := s.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	data, err := Decode(blob)
	if err != nil {
		return nil, err
	}
	f, err := bloom.FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return f, nil
}

// LoadOrNew restores the filter under name, or builds a fresh one from
// cfg.Filter when none has been saved yet. Any other failure is returned so the
// caller does not silently forget what it has seen.
func LoadOrNew(ctx context.Context, s Store, cfg config.Config) (*bloom.Filter, bool, error) {
	f, err := Restore(ctx, s, cfg.Snapshot.Name)
	if err == nil {
		return f, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	f, err = NewFilter(cfg.Filter)
	return f, false, err
}

// NewFilter builds an empty filter from cfg.
func NewFilter(cfg config.FilterCfg) (*bloom.Filter, error) {
	if cfg.ErrorRate > 0 {
		return bloom.NewWithErrorRate(cfg.Capacity, cfg.ErrorRate)
	}
	return bloom.New(cfg.Capacity)
}

// Persist encodes the guarded filter and saves it, retrying with linear
// backoff. Stores that keep generations are pruned to cfg.Retention.
func Persist(ctx context.Context, s Store, g *dedupe.Guard, cfg config.SnapshotCfg, runID string) error {
	stats := g.Stats()
	blob, err := Encode(g.Snapshot(), cfg.Compress)
	if err != nil {
		return err
	}
	meta := Meta{
		RunID:             runID,
		HashFunctionCount: stats.HashFunctionCount,
		BitCount:          stats.BitCount,
		Truthiness:        stats.Truthiness,
		CreatedAt:         time.Now(),
	}

	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		if lastErr = s.Save(ctx, cfg.Name, blob, meta); lastErr == nil {
			log.L.Infow("snapshot_saved",
				"event", "snapshot_saved",
				"component", "crawldedup",
				"name", cfg.Name,
				"size", humanize.Bytes(uint64(len(blob))),
				"truthiness", stats.Truthiness,
				"added", stats.Added,
				"attempt", attempt,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			break
		}
		if attempt == attempts {
			break
		}
		d := config.BackoffDuration(cfg.BackoffMS, attempt)
		log.L.Warnw("snapshot_retry",
			"event", "snapshot_retry",
			"component", "crawldedup",
			"name", cfg.Name,
			"attempt", attempt,
			"delay", d.String(),
			"err", lastErr,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	if lastErr != nil {
		return fmt.Errorf("snapshot %s: %w", cfg.Name, lastErr)
	}

	if p, ok := s.(Pruner); ok && cfg.Retention > 0 {
		n, err := p.Prune(ctx, cfg.Name, cfg.Retention)
		if err != nil {
			log.L.Warnw("snapshot_prune", "name", cfg.Name, "err", err)
		} else if n > 0 {
			log.L.Debugw("snapshot_prune", "name", cfg.Name, "deleted", n)
		}
	}
	return nil
}
