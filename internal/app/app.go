// Package app wires configuration into the embedder, stores, indexing
// pipeline and searcher shared by the MCP server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/ragindex/internal/config"
	"github.com/dshills/ragindex/internal/embedder"
	"github.com/dshills/ragindex/internal/indexer"
	"github.com/dshills/ragindex/internal/searcher"
	"github.com/dshills/ragindex/internal/storage"
)

// App owns every long-lived component. Close releases them.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Embedder embedder.Embedder
	Store    storage.VectorStore
	Keyword  storage.KeywordIndex
	Pipeline *indexer.Pipeline
	Searcher *searcher.Searcher

	closers []io.Closer
}

// Info describes the active providers for status reports
type Info struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	Dimension     int    `json:"dimension"`
	VectorBackend string `json:"vectorBackend"`
	KeywordIndex  string `json:"keywordBackend"`
	SQLiteDriver  string `json:"sqliteDriver"`
}

// ProjectStatus is indexer.Status plus the active providers
type ProjectStatus struct {
	*indexer.Status
	Info
}

// Option adjusts how New wires components
type Option func(*options)

type options struct {
	onFileDone func(indexer.FileResult)
}

// WithFileProgress reports every file a batch finishes, for progress output
func WithFileProgress(fn func(indexer.FileResult)) Option {
	return func(o *options) { o.onFileDone = fn }
}

type backendNamer interface {
	Backend() string
}

// New validates cfg and builds the component graph. With the sqlite backend
// one database serves vectors and keywords; with chromem the SQLite file at
// storage.path holds the keyword index only.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	a := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	emb, err := embedder.New(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	a.Embedder = emb
	a.closers = append(a.closers, emb)

	if err := ensureParent(cfg.Storage.Path); err != nil {
		return nil, err
	}
	sqlStore, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Storage.Path, err)
	}
	a.closers = append(a.closers, sqlStore)
	a.Keyword = sqlStore

	switch cfg.Storage.Backend {
	case config.BackendChromem:
		vec, err := storage.NewChromemStore(cfg.Storage.VectorDir, cfg.Storage.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening vector store: %w", err)
		}
		a.closers = append(a.closers, vec)
		a.Store = vec
	default:
		a.Store = sqlStore
	}

	a.Searcher, err = searcher.New(emb, a.Store, a.Keyword, searcher.Config{
		CacheSize: cfg.Search.CacheSize,
		CacheTTL:  cfg.Search.CacheTTL,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating searcher: %w", err)
	}

	a.Pipeline, err = indexer.New(emb, a.Store, a.Keyword, indexer.Config{
		Workers:        cfg.Indexing.Workers,
		EmbedBatchSize: cfg.Indexing.EmbedBatchSize,
		Retry:          cfg.Retry(),
		Logger:         logger,
		OnFileDone:     o.onFileDone,
		OnChange:       a.Searcher.InvalidateCache,
	})
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}

	logger.Info("ragindex ready",
		"provider", emb.Provider(),
		"model", emb.Model(),
		"backend", cfg.Storage.Backend,
		"path", cfg.Storage.Path)
	ok = true
	return a, nil
}

func ensureParent(path string) error {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

// Info reports the active providers
func (a *App) Info() Info {
	info := Info{SQLiteDriver: storage.DriverName}
	if a.Embedder != nil {
		info.Provider = a.Embedder.Provider()
		info.Model = a.Embedder.Model()
		info.Dimension = a.Embedder.Dimension()
	}
	if b, ok := a.Store.(backendNamer); ok {
		info.VectorBackend = b.Backend()
	}
	if b, ok := a.Keyword.(backendNamer); ok {
		info.KeywordIndex = b.Backend()
	}
	return info
}

// Status combines the pipeline's project status with provider info
func (a *App) Status(ctx context.Context, projectID string) (*ProjectStatus, error) {
	st, err := a.Pipeline.GetStatus(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &ProjectStatus{Status: st, Info: a.Info()}, nil
}

// Close releases components in reverse creation order
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
