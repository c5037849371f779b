package queue

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one newly discovered key handed downstream.
type Entry struct {
	URL          string    `json:"url"`
	Source       string    `json:"source,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Writer appends entries as JSON lines. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	c   io.Closer
	enc *json.Encoder
	n   int64
}

// Open appends to the file at path, or writes to stdout when path is "-".
func Open(path string) (*Writer, error) {
	if path == "-" || path == "" {
		return NewWriter(os.Stdout, nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return NewWriter(f, f), nil
}

// NewWriter wraps w; c, if non-nil, is closed by Close.
func NewWriter(w io.Writer, c io.Closer) *Writer {
	return &Writer{w: w, c: c, enc: json.NewEncoder(w)}
}

// Enqueue writes e.
func (q *Writer) Enqueue(e Entry) error {
	if e.DiscoveredAt.IsZero() {
		e.DiscoveredAt = time.Now().UTC()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.enc.Encode(e); err != nil {
		return err
	}
	q.n++
	return nil
}

// Count returns the number of entries written.
func (q *Writer) Count() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Close closes the underlying file, if any.
func (q *Writer) Close() error {
	if q.c == nil {
		return nil
	}
	return q.c.Close()
}
