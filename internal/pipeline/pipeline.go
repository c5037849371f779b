package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/luhtaf/crawldedup/internal/dedupe"
	"github.com/luhtaf/crawldedup/internal/log"
	"github.com/luhtaf/crawldedup/internal/page"
	"github.com/luhtaf/crawldedup/internal/queue"
)

// Enqueuer receives keys that have not been seen before.
type Enqueuer interface {
	Enqueue(e queue.Entry) error
}

// Pipeline moves links from fetched pages to the downstream queue, dropping
// keys the guard has already seen.
type Pipeline struct {
	Guard   *dedupe.Guard
	Queue   Enqueuer
	Workers int

	// Checkpoint, if set, is called every Interval and once more on shutdown.
	Checkpoint func(ctx context.Context) error
	Interval   time.Duration
}

// Offer enqueues key if it is new. Keys are normalized first; keys that fail
// normalization are dropped. A key is marked seen only after the queue accepts
// it, so a failed enqueue can be retried.
func (p *Pipeline) Offer(key, source string) (bool, error) {
	norm, err := page.Normalize(key)
	if err != nil {
		log.L.Debugw("key_invalid", "event", "key_invalid", "key", key, "err", err)
		return false, nil
	}
	ok, err := p.Guard.CheckAndCommit(norm, func() error {
		return p.Queue.Enqueue(queue.Entry{URL: norm, Source: source})
	})
	if err != nil {
		return false, err
	}
	if !ok {
		log.L.Debugw("skip_duplicate", "event", "skip_duplicate", "component", "crawldedup", "url", norm)
		return false, nil
	}
	log.L.Debugw("key_enqueued", "event", "key_enqueued", "component", "crawldedup", "url", norm, "source", source)
	return true, nil
}

// Process offers every link found on pg and returns how many were new.
func (p *Pipeline) Process(pg page.Page) (int, error) {
	if !pg.IsHTML() {
		return 0, nil
	}
	var added int
	for _, link := range page.ExtractLinks(pg) {
		ok, err := p.Offer(link, pg.URL)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	log.L.Debugw("page_processed", "event", "page_processed", "url", pg.URL, "new_links", added)
	return added, nil
}

// Run processes pages until the channel closes or ctx is cancelled. A queue
// write failure stops the pipeline.
func (p *Pipeline) Run(ctx context.Context, pages <-chan page.Page) error {
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for {
				select {
				case <-gctx.Done():
					return nil
				case pg, ok := <-pages:
					if !ok {
						return nil
					}
					if _, err := p.Process(pg); err != nil {
						return err
					}
				}
			}
		})
	}
	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()

	if p.Checkpoint != nil {
		g.Go(func() error {
			var tick <-chan time.Time
			if p.Interval > 0 {
				t := time.NewTicker(p.Interval)
				defer t.Stop()
				tick = t.C
			}
			for {
				select {
				case <-tick:
					if err := p.Checkpoint(gctx); err != nil {
						log.L.Warnw("checkpoint", "err", err)
					}
				case <-workersDone:
					// Final checkpoint must outlive the cancelled run context.
					return p.Checkpoint(context.WithoutCancel(ctx))
				}
			}
		})
	}
	return g.Wait()
}
