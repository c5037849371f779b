package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/luhtaf/crawldedup/internal/config"
	"github.com/luhtaf/crawldedup/internal/log"
	"github.com/luhtaf/crawldedup/internal/page"
)

// Reader tails a JSON-lines page feed and emits successfully fetched pages.
type Reader struct {
	cfg config.FeedCfg
	out chan page.Page
}

// NewReader constructs a Reader.
func NewReader(cfg config.FeedCfg) *Reader {
	return &Reader{cfg: cfg, out: make(chan page.Page, 1024)}
}

// Pages returns the consumer channel. It is closed when the reader stops.
func (r *Reader) Pages() <-chan page.Page { return r.out }

// Start begins tailing the feed from EOF, or from the first line when
// FromStart is set. Sends block when consumers fall behind.
func (r *Reader) Start(ctx context.Context) error {
	f, err := os.Open(r.cfg.Path)
	if err != nil {
		return err
	}
	if !r.cfg.FromStart {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return err
		}
	}
	poll := time.Duration(r.cfg.PollMS) * time.Millisecond
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}

	go func() {
		defer close(r.out)
		defer f.Close()

		br := bufio.NewReaderSize(f, 64*1024)
		var partial strings.Builder
		for {
			if ctx.Err() != nil {
				return
			}
			chunk, err := br.ReadString('\n')
			partial.WriteString(chunk)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					log.L.Warnw("feed read", "err", err, "path", r.cfg.Path)
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(poll):
				}
				continue
			}

			line := strings.TrimSpace(partial.String())
			partial.Reset()
			if line == "" {
				continue
			}
			p, ok := r.parseLine(line)
			if !ok {
				continue
			}
			select {
			case r.out <- p:
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (r *Reader) parseLine(line string) (page.Page, bool) {
	var p page.Page
	if err := json.Unmarshal([]byte(line), &p); err != nil {
		log.L.Debugw("feed_skip", "event", "feed_skip", "reason", "decode", "err", err)
		return page.Page{}, false
	}
	if p.URL == "" || !p.OK() {
		log.L.Debugw("feed_skip", "event", "feed_skip", "reason", "status", "url", p.URL, "status", p.Status)
		return page.Page{}, false
	}
	if p.FetchedAt.IsZero() {
		p.FetchedAt = time.Now()
	}
	return p, true
}
