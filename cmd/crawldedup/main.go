package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/luhtaf/crawldedup/internal/config"
	"github.com/luhtaf/crawldedup/internal/dedupe"
	"github.com/luhtaf/crawldedup/internal/feed"
	"github.com/luhtaf/crawldedup/internal/log"
	"github.com/luhtaf/crawldedup/internal/pipeline"
	"github.com/luhtaf/crawldedup/internal/queue"
	"github.com/luhtaf/crawldedup/internal/snapshot"
)

const usage = `usage: crawldedup <seed|run|stats> [flags] [urls...]

  seed   build a fresh filter, enqueue the seed URLs and save a snapshot
  run    tail the page feed and enqueue links not seen before
  stats  print the saved filter's shape and saturation
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd := os.Args[1]

	fs := pflag.NewFlagSet(cmd, pflag.ExitOnError)
	cfgPath := fs.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file")
	seedsPath := fs.String("seeds", "", "file with one seed URL per line (seed only)")
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load(*cfgPath, fs)
	if err != nil {
		panic(err)
	}
	if err := log.InitWithConfig(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "seed":
		err = seed(ctx, cfg, *seedsPath, fs.Args())
	case "run":
		err = run(ctx, cfg)
	case "stats":
		err = stats(ctx, cfg, os.Stdout)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.L.Fatalw(cmd, "err", err)
	}
}

func readSeeds(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var seeds []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, line)
	}
	return seeds, s.Err()
}

// seed always starts from an empty filter; an existing snapshot is replaced.
func seed(ctx context.Context, cfg config.Config, seedsPath string, args []string) error {
	seeds := args
	if seedsPath != "" {
		fromFile, err := readSeeds(seedsPath)
		if err != nil {
			return err
		}
		seeds = append(seeds, fromFile...)
	}

	store, err := snapshot.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	q, err := queue.Open(cfg.Queue.Path)
	if err != nil {
		return err
	}
	defer q.Close()

	f, err := snapshot.NewFilter(cfg.Filter)
	if err != nil {
		return err
	}
	guard := dedupe.NewGuard(f)
	p := &pipeline.Pipeline{Guard: guard, Queue: q}

	var added int
	for _, s := range seeds {
		ok, err := p.Offer(s, "seed")
		if err != nil {
			return err
		}
		if ok {
			added++
		}
	}
	log.L.Infow("seeded",
		"event", "seeded",
		"component", "crawldedup",
		"seeds", len(seeds),
		"enqueued", added,
		"bits", f.BitCount(),
		"k", f.HashFunctionCount(),
	)
	return snapshot.Persist(ctx, store, guard, cfg.Snapshot, "seed")
}

func run(ctx context.Context, cfg config.Config) error {
	runID := uuid.NewString()
	log.L = log.L.With("run_id", runID)

	store, err := snapshot.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	f, restored, err := snapshot.LoadOrNew(ctx, store, cfg)
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", cfg.Snapshot.Name, err)
	}
	log.L.Infow("filter_ready",
		"event", "filter_ready",
		"component", "crawldedup",
		"restored", restored,
		"bits", f.BitCount(),
		"k", f.HashFunctionCount(),
		"truthiness", f.Truthiness(),
	)

	q, err := queue.Open(cfg.Queue.Path)
	if err != nil {
		return err
	}
	defer q.Close()

	r := feed.NewReader(cfg.Feed)
	if err := r.Start(ctx); err != nil {
		return fmt.Errorf("feed reader: %w", err)
	}

	guard := dedupe.NewGuard(f)
	p := &pipeline.Pipeline{
		Guard:    guard,
		Queue:    q,
		Workers:  cfg.Workers.Count,
		Interval: cfg.SnapshotInterval(),
		Checkpoint: func(ctx context.Context) error {
			return snapshot.Persist(ctx, store, guard, cfg.Snapshot, runID)
		},
	}
	log.L.Infow("starting workers", "n", cfg.Workers.Count, "feed", cfg.Feed.Path)

	err = p.Run(ctx, r.Pages())
	st := guard.Stats()
	log.L.Infow("shutting down",
		"added", st.Added,
		"skipped", st.Skipped,
		"truthiness", st.Truthiness,
		"enqueued", q.Count(),
	)
	return err
}

func stats(ctx context.Context, cfg config.Config, w io.Writer) error {
	store, err := snapshot.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := snapshot.Restore(ctx, store, cfg.Snapshot.Name)
	if errors.Is(err, snapshot.ErrNotFound) {
		fmt.Fprintf(w, "no snapshot named %q\n", cfg.Snapshot.Name)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "name:        %s\n", cfg.Snapshot.Name)
	fmt.Fprintf(w, "k:           %d\n", f.HashFunctionCount())
	fmt.Fprintf(w, "bits:        %d\n", f.BitCount())
	fmt.Fprintf(w, "size:        %s\n", humanize.IBytes(uint64(f.BitCount()/8)))
	fmt.Fprintf(w, "truthiness:  %.6f\n", f.Truthiness())
	fmt.Fprintf(w, "fp@capacity: %.6g\n", f.EstimatedFalsePositiveRate(cfg.Filter.Capacity))

	if sq, ok := store.(*snapshot.SQLiteStore); ok {
		gens, err := sq.Generations(ctx, cfg.Snapshot.Name)
		if err != nil {
			return err
		}
		for _, g := range gens {
			fmt.Fprintf(w, "generation %d: %s run=%s truthiness=%.6f %s\n",
				g.ID, g.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), g.RunID, g.Truthiness, humanize.Bytes(uint64(g.Size)))
		}
	}
	return nil
}
