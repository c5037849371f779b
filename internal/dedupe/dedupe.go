package dedupe

import (
	"sync"

	"github.com/luhtaf/crawldedup/internal/bloom"
)

// Guard is a Bloom filter shared by the crawl workers. The filter itself is
// single-owner; Guard serializes every access to it.
type Guard struct {
	mu      sync.Mutex
	f       *bloom.Filter
	added   int64
	skipped int64
}

// Stats is a point-in-time reading of a Guard.
type Stats struct {
	Added             int64   `json:"added"`
	Skipped           int64   `json:"skipped"`
	BitCount          int     `json:"bit_count"`
	HashFunctionCount int     `json:"hash_function_count"`
	Truthiness        float64 `json:"truthiness"`
}

// NewGuard wraps f. The caller must not use f directly afterwards.
func NewGuard(f *bloom.Filter) *Guard { return &Guard{f: f} }

// Seen reports whether key may have been marked.
func (g *Guard) Seen(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.f.Contains(key)
}

// Mark records key as seen.
func (g *Guard) Mark(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.f.Add(key)
}

// CheckAndMark marks key and reports whether it was new. Of several concurrent
// callers with the same key exactly one gets true.
func (g *Guard) CheckAndMark(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.f.Contains(key) {
		g.skipped++
		return false
	}
	g.f.Add(key)
	g.added++
	return true
}

// CheckAndCommit runs commit for key if it is new and marks key only when
// commit succeeds. commit runs under the guard's lock, so it must not call back
// into the Guard. A failed commit leaves key unmarked and returns its error.
func (g *Guard) CheckAndCommit(key string, commit func() error) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.f.Contains(key) {
		g.skipped++
		return false, nil
	}
	if err := commit(); err != nil {
		return false, err
	}
	g.f.Add(key)
	g.added++
	return true, nil
}

// Snapshot serializes the filter.
func (g *Guard) Snapshot() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.f.Serialize()
}

// Truthiness returns the fraction of filter bits set.
func (g *Guard) Truthiness() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.f.Truthiness()
}

// Stats returns counters for this process lifetime and filter shape.
func (g *Guard) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{
		Added:             g.added,
		Skipped:           g.skipped,
		BitCount:          g.f.BitCount(),
		HashFunctionCount: g.f.HashFunctionCount(),
		Truthiness:        g.f.Truthiness(),
	}
}
