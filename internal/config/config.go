// Package config loads ragindex configuration from defaults, an optional
// YAML file, a .env file and RAGINDEX_ environment variables, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dshills/ragindex/internal/chunker"
	"github.com/dshills/ragindex/internal/embedder"
	"github.com/dshills/ragindex/internal/indexer"
	"github.com/dshills/ragindex/internal/searcher"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates sections: RAGINDEX_EMBEDDING__PROVIDER sets embedding.provider.
const EnvPrefix = "RAGINDEX_"

// DefaultPath is the config file read when no path is given
const DefaultPath = "ragindex.yml"

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// Storage backends
const (
	BackendSQLite  = "sqlite"
	BackendChromem = "chromem"
)

// Config is the top-level ragindex configuration
type Config struct {
	Storage   StorageConfig   `koanf:"storage"`
	Embedding embedder.Config `koanf:"embedding"`
	Chunking  chunker.Options `koanf:"chunking"`
	Indexing  IndexingConfig  `koanf:"indexing"`
	Search    SearchConfig    `koanf:"search"`
	Log       LogConfig       `koanf:"log"`
}

// StorageConfig selects where records live
type StorageConfig struct {
	Backend   string `koanf:"backend"`    // sqlite | chromem
	Path      string `koanf:"path"`       // SQLite file; keyword index for both backends
	VectorDir string `koanf:"vector_dir"` // chromem directory, empty for in-memory
	Compress  bool   `koanf:"compress"`   // gzip chromem files
}

// IndexingConfig tunes the pipeline and the CLI file walker
type IndexingConfig struct {
	Workers        int           `koanf:"workers"`
	EmbedBatchSize int           `koanf:"embed_batch_size"`
	MaxRetries     int           `koanf:"max_retries"`
	InitialBackoff time.Duration `koanf:"initial_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff"`
	Include        []string      `koanf:"include"`
	Exclude        []string      `koanf:"exclude"`
}

// SearchConfig holds default search options and the result cache
type SearchConfig struct {
	Defaults  searcher.Options `koanf:"defaults"`
	CacheSize int              `koanf:"cache_size"`
	CacheTTL  time.Duration    `koanf:"cache_ttl"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // text | json
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Path:    "ragindex.db",
		},
		Embedding: embedder.Config{
			CacheSize:         embedder.DefaultCacheSize,
			RequestsPerSecond: 10,
			Burst:             10,
			BreakerFailures:   5,
			BreakerTimeout:    30 * time.Second,
		},
		Chunking: chunker.DefaultOptions(),
		Indexing: IndexingConfig{
			Workers:        indexer.DefaultWorkers,
			EmbedBatchSize: embedder.DefaultBatchSize,
			MaxRetries:     embedder.MaxRetries,
			InitialBackoff: time.Duration(embedder.InitialBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(embedder.MaxBackoffMs) * time.Millisecond,
			Include:        []string{"**/*.md", "**/*.markdown", "**/*.txt"},
			Exclude:        []string{"**/node_modules/**", "**/vendor/**", "**/.git/**"},
		},
		Search: SearchConfig{
			Defaults:  searcher.DefaultOptions(),
			CacheSize: searcher.DefaultCacheSize,
			CacheTTL:  searcher.DefaultCacheTTL,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration. An empty path reads DefaultPath when it exists;
// an explicit path must exist.
func Load(path string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	k := koanf.New(".")
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if explicit || !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

// envKey maps RAGINDEX_SEARCH__CACHE_TTL to search.cache_ttl
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks that values are consistent before anything is wired
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendChromem:
	default:
		return fmt.Errorf("%w: storage.backend %q must be sqlite or chromem", ErrInvalidConfig, c.Storage.Backend)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path is required", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case "", embedder.ProviderOpenAI, embedder.ProviderJina, embedder.ProviderLocal:
	default:
		return fmt.Errorf("%w: embedding.provider %q", ErrInvalidConfig, c.Embedding.Provider)
	}
	if c.Embedding.RequestsPerSecond < 0 || c.Embedding.Burst < 0 {
		return fmt.Errorf("%w: embedding rate limits must not be negative", ErrInvalidConfig)
	}

	if err := c.Chunking.Validate(); err != nil {
		return fmt.Errorf("%w: chunking: %w", ErrInvalidConfig, err)
	}

	idx := c.Indexing
	if idx.Workers <= 0 {
		return fmt.Errorf("%w: indexing.workers must be positive", ErrInvalidConfig)
	}
	if idx.EmbedBatchSize <= 0 || idx.EmbedBatchSize > embedder.MaxBatchSize {
		return fmt.Errorf("%w: indexing.embed_batch_size must be in 1..%d", ErrInvalidConfig, embedder.MaxBatchSize)
	}
	if idx.MaxRetries < 0 {
		return fmt.Errorf("%w: indexing.max_retries must not be negative", ErrInvalidConfig)
	}
	if idx.InitialBackoff <= 0 || idx.MaxBackoff < idx.InitialBackoff {
		return fmt.Errorf("%w: indexing backoff must satisfy 0 < initial_backoff <= max_backoff", ErrInvalidConfig)
	}

	opts := c.Search.Defaults
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("%w: search.defaults: %w", ErrInvalidConfig, err)
	}
	if c.Search.CacheSize < 0 || c.Search.CacheTTL < 0 {
		return fmt.Errorf("%w: search cache settings must not be negative", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// Retry converts the indexing backoff settings for the pipeline
func (c *Config) Retry() embedder.RetryConfig {
	return embedder.RetryConfig{
		MaxRetries: c.Indexing.MaxRetries,
		BaseDelay:  c.Indexing.InitialBackoff,
		MaxDelay:   c.Indexing.MaxBackoff,
		Multiplier: embedder.BackoffMultiplier,
	}
}
