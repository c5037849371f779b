package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FilterCfg sizes a fresh Bloom filter.
type FilterCfg struct {
	Capacity  int     `mapstructure:"capacity"`
	ErrorRate float64 `mapstructure:"error_rate"` // 0 derives 1/capacity
}

// FeedCfg points at the JSON-lines page feed.
type FeedCfg struct {
	Path      string `mapstructure:"path"`
	FromStart bool   `mapstructure:"from_start"`
	PollMS    int    `mapstructure:"poll_ms"`
}

// QueueCfg is the downstream sink for new keys.
type QueueCfg struct {
	Path string `mapstructure:"path"` // "-" is stdout
}

// WorkersCfg controls link extraction concurrency.
type WorkersCfg struct {
	Count int `mapstructure:"count"`
}

// SnapshotCfg controls filter persistence.
type SnapshotCfg struct {
	Backend    string `mapstructure:"backend"` // file|minio|sqlite|none
	Name       string `mapstructure:"name"`
	IntervalS  int    `mapstructure:"interval_s"`
	Compress   string `mapstructure:"compress"` // none|zstd
	FileDir    string `mapstructure:"file_dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
	Retention  int    `mapstructure:"retention"`
	MaxRetries int    `mapstructure:"max_retries"`
	BackoffMS  int    `mapstructure:"backoff_ms"`
}

// S3Cfg config.
type S3Cfg struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// LoggingCfg controls output formatting and level.
type LoggingCfg struct {
	Level  string `mapstructure:"level"`  // debug|info|warn|error
	Format string `mapstructure:"format"` // json|console
}

// Config is the root configuration.
type Config struct {
	Filter   FilterCfg   `mapstructure:"filter"`
	Feed     FeedCfg     `mapstructure:"feed"`
	Queue    QueueCfg    `mapstructure:"queue"`
	Workers  WorkersCfg  `mapstructure:"workers"`
	Snapshot SnapshotCfg `mapstructure:"snapshot"`
	S3       S3Cfg       `mapstructure:"s3"`
	Logging  LoggingCfg  `mapstructure:"logging"`
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"capacity":         "filter.capacity",
	"error-rate":       "filter.error_rate",
	"feed":             "feed.path",
	"from-start":       "feed.from_start",
	"queue":            "queue.path",
	"workers":          "workers.count",
	"snapshot-backend": "snapshot.backend",
	"snapshot-name":    "snapshot.name",
	"log-level":        "logging.level",
	"log-format":       "logging.format",
}

// RegisterFlags adds the overridable settings to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Int("capacity", 0, "expected number of distinct keys for a fresh filter")
	fs.Float64("error-rate", 0, "target false positive rate (0 derives 1/capacity)")
	fs.String("feed", "", "JSON-lines page feed to tail")
	fs.Bool("from-start", false, "read the feed from the beginning instead of EOF")
	fs.String("queue", "", "downstream queue file, - for stdout")
	fs.Int("workers", 0, "number of link extraction workers")
	fs.String("snapshot-backend", "", "file|minio|sqlite|none")
	fs.String("snapshot-name", "", "snapshot name")
	fs.String("log-level", "", "debug|info|warn|error")
	fs.String("log-format", "", "json|console")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("filter.capacity", 1_000_000)
	v.SetDefault("filter.error_rate", 0.0)

	v.SetDefault("feed.path", "./data/pages.jsonl")
	v.SetDefault("feed.from_start", false)
	v.SetDefault("feed.poll_ms", 200)

	v.SetDefault("queue.path", "-")
	v.SetDefault("workers.count", 4)

	v.SetDefault("snapshot.backend", "file")
	v.SetDefault("snapshot.name", "frontier")
	v.SetDefault("snapshot.interval_s", 60)
	v.SetDefault("snapshot.compress", "none")
	v.SetDefault("snapshot.file_dir", "./data/snapshots")
	v.SetDefault("snapshot.sqlite_path", "./data/crawldedup.db")
	v.SetDefault("snapshot.retention", 3)
	v.SetDefault("snapshot.max_retries", 5)
	v.SetDefault("snapshot.backoff_ms", 500)

	v.SetDefault("s3.prefix", "crawldedup")
	v.SetDefault("s3.use_ssl", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads config from an optional YAML file, CRAWLDEDUP_* env vars and the
// flags in fs that were set explicitly, in increasing precedence.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CRAWLDEDUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var c Config
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, err
		}
	}
	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return c, err
				}
			}
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Filter.Capacity < 1 {
		return fmt.Errorf("filter.capacity must be positive, got %d", c.Filter.Capacity)
	}
	if c.Filter.ErrorRate < 0 || c.Filter.ErrorRate >= 1 {
		return fmt.Errorf("filter.error_rate must be in [0, 1), got %g", c.Filter.ErrorRate)
	}
	switch c.Snapshot.Backend {
	case "file", "minio", "sqlite", "none":
	default:
		return fmt.Errorf("unknown snapshot.backend %q", c.Snapshot.Backend)
	}
	switch c.Snapshot.Compress {
	case "none", "zstd":
	default:
		return fmt.Errorf("unknown snapshot.compress %q", c.Snapshot.Compress)
	}
	return nil
}

// SnapshotInterval returns the periodic snapshot interval, zero when disabled.
func (c Config) SnapshotInterval() time.Duration {
	if c.Snapshot.IntervalS <= 0 {
		return 0
	}
	return time.Duration(c.Snapshot.IntervalS) * time.Second
}

// BackoffDuration computes a linear backoff.
func BackoffDuration(ms int, attempt int) time.Duration {
	if ms <= 0 {
		ms = 250
	}
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(ms*attempt) * time.Millisecond
}
