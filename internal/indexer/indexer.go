package indexer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/ragindex/internal/chunker"
	"github.com/dshills/ragindex/internal/embedder"
	"github.com/dshills/ragindex/internal/storage"
	"github.com/dshills/ragindex/pkg/types"
)

// DefaultWorkers bounds concurrent files in a batch
const DefaultWorkers = 10

// GlobalProjectID is the project id recorded on records in the global collection
const GlobalProjectID = "global"

var (
	// ErrInvalidInput is returned for a missing project id or file path
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotConfigured is returned when a required collaborator is missing
	ErrNotConfigured = errors.New("indexer not configured")
	// ErrEmbedding marks per-file failures caused by the embedding provider
	ErrEmbedding = errors.New("embedding failed")
	// ErrStore marks vector store or keyword index failures; these abort a batch
	ErrStore = errors.New("store failed")
	// ErrNothingEmbedded is returned when every file of a batch failed to embed
	ErrNothingEmbedded = errors.New("no file could be embedded")
)

// Config contains configuration for the pipeline
type Config struct {
	Workers        int                  // Concurrent files per batch (default: DefaultWorkers)
	EmbedBatchSize int                  // Texts per embedding call (default: embedder.DefaultBatchSize)
	Retry          embedder.RetryConfig // Backoff for rate-limited embedding calls
	Logger         *slog.Logger

	// OnFileDone is called once per file of a batch, serialized
	OnFileDone func(FileResult)
	// OnChange is called after any write that changes a collection
	OnChange func(projectID string)
}

// FileInput is one file handed to a batch
type FileInput struct {
	Path    string `json:"filePath"`
	Content string `json:"content"`
}

// FileResult reports the outcome of one file in a batch
type FileResult struct {
	FilePath string
	Chunks   int
	Err      error
}

// FileError is a per-file failure, reported as data
type FileError struct {
	FilePath string `json:"filePath"`
	Error    string `json:"error"`
	Err      error  `json:"-"`
}

// IndexFileResult is the outcome of IndexFile
type IndexFileResult struct {
	ChunksIndexed int `json:"chunksIndexed"`
}

// BatchResult is the outcome of IndexBatch and ReindexProject.
// Errors lists failed files in input order; successful files are committed.
type BatchResult struct {
	TotalFiles   int           `json:"totalFiles"`
	IndexedFiles int           `json:"indexedFiles"`
	TotalChunks  int           `json:"totalChunks"`
	Errors       []FileError   `json:"errors"`
	Duration     time.Duration `json:"-"`
	DurationMs   int64         `json:"durationMs"`
}

// Status is a read-only snapshot of a project's index
type Status struct {
	ProjectID     string     `json:"projectId"`
	Exists        bool       `json:"exists"`
	DocumentCount int        `json:"documentCount"`
	IsIndexing    bool       `json:"isIndexing"`
	LastIndexedAt *time.Time `json:"lastIndexedAt,omitempty"`
}

// Pipeline turns file content into stored, searchable records:
// chunk -> embed -> replace the file's records in the stores.
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	store    storage.VectorStore
	keyword  storage.KeywordIndex // nil when store also serves keyword search
	tracker  *Tracker
	cfg      Config
	logger   *slog.Logger
}

// New creates a pipeline. keyword may be nil or the same value as store.
func New(emb embedder.Embedder, store storage.VectorStore, keyword storage.KeywordIndex, cfg Config) (*Pipeline, error) {
	if emb == nil {
		return nil, fmt.Errorf("%w: embedding provider is required", ErrNotConfigured)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrNotConfigured)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.EmbedBatchSize <= 0 || cfg.EmbedBatchSize > embedder.MaxBatchSize {
		cfg.EmbedBatchSize = embedder.DefaultBatchSize
	}
	if cfg.Retry.BaseDelay <= 0 {
		onRetry := cfg.Retry.OnRetry
		cfg.Retry = embedder.DefaultRetryConfig()
		cfg.Retry.OnRetry = onRetry
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if keyword != nil {
		if vs, ok := keyword.(storage.VectorStore); ok && vs == store {
			keyword = nil
		}
	}

	return &Pipeline{
		chunker:  chunker.New(),
		embedder: emb,
		store:    store,
		keyword:  keyword,
		tracker:  NewTracker(),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Tracker exposes the in-flight tracker
func (p *Pipeline) Tracker() *Tracker {
	return p.tracker
}

func validateIDs(projectID, filePath string) error {
	if strings.TrimSpace(projectID) == "" {
		return fmt.Errorf("%w: project id is required", ErrInvalidInput)
	}
	if filePath != "" && strings.TrimSpace(filePath) == "" {
		return fmt.Errorf("%w: file path is blank", ErrInvalidInput)
	}
	return nil
}

func validateOptions(opts *chunker.Options) error {
	if opts == nil {
		return nil
	}
	// empty content still goes through option validation
	if _, err := chunker.New().Chunk("", opts); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// IndexFile chunks, embeds and stores one file, replacing its previous records.
// Either all of the file's chunks are written or none are.
func (p *Pipeline) IndexFile(ctx context.Context, projectID, filePath, content string, opts *chunker.Options) (*IndexFileResult, error) {
	if err := validateIDs(projectID, filePath); err != nil {
		return nil, err
	}
	if filePath == "" {
		return nil, fmt.Errorf("%w: file path is required", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, err := p.indexOne(ctx, projectID, storage.ProjectCollection(projectID), FileInput{Path: filePath, Content: content}, opts)
	if err != nil {
		return nil, err
	}
	p.changed(projectID)
	return &IndexFileResult{ChunksIndexed: n}, nil
}

// IndexGlobalFile stores shared reference material in the global collection
func (p *Pipeline) IndexGlobalFile(ctx context.Context, filePath, content string, opts *chunker.Options) (*IndexFileResult, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("%w: file path is required", ErrInvalidInput)
	}
	n, err := p.indexOne(ctx, GlobalProjectID, storage.GlobalCollection, FileInput{Path: filePath, Content: content}, opts)
	if err != nil {
		return nil, err
	}
	p.changed(GlobalProjectID)
	return &IndexFileResult{ChunksIndexed: n}, nil
}

// IndexBatch indexes files with bounded concurrency. Per-file failures are
// returned in BatchResult.Errors; a store failure aborts the batch with an error.
// If every file failed in the embedding provider the result is returned
// together with ErrNothingEmbedded.
func (p *Pipeline) IndexBatch(ctx context.Context, projectID string, files []FileInput, opts *chunker.Options) (*BatchResult, error) {
	if err := validateIDs(projectID, ""); err != nil {
		return nil, err
	}
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	done := p.tracker.Begin(projectID)
	defer done()

	return p.indexFiles(ctx, projectID, files, opts)
}

// ReindexProject clears the project collection and indexes files into it
func (p *Pipeline) ReindexProject(ctx context.Context, projectID string, files []FileInput, opts *chunker.Options) (*BatchResult, error) {
	if err := validateIDs(projectID, ""); err != nil {
		return nil, err
	}
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	done := p.tracker.Begin(projectID)
	defer done()

	collection := storage.ProjectCollection(projectID)
	removed, err := p.store.Delete(ctx, collection, storage.Filter{})
	if err != nil {
		return nil, fmt.Errorf("%w: clear %s: %w", ErrStore, collection, err)
	}
	if p.keyword != nil {
		if _, err := p.keyword.Delete(ctx, collection, storage.Filter{}); err != nil {
			return nil, fmt.Errorf("%w: clear keyword index %s: %w", ErrStore, collection, err)
		}
	}
	p.logger.Info("cleared project collection", "project", projectID, "records", removed)
	p.changed(projectID)

	return p.indexFiles(ctx, projectID, files, opts)
}

// RemoveFile deletes every record of filePath, whatever the old chunk count.
// It returns the number of records removed from the vector store.
func (p *Pipeline) RemoveFile(ctx context.Context, projectID, filePath string) (int, error) {
	if err := validateIDs(projectID, filePath); err != nil {
		return 0, err
	}
	if filePath == "" {
		return 0, fmt.Errorf("%w: file path is required", ErrInvalidInput)
	}

	collection := storage.ProjectCollection(projectID)
	filter := storage.Filter{FilePath: filePath}
	n, err := p.store.Delete(ctx, collection, filter)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if p.keyword != nil {
		if _, err := p.keyword.Delete(ctx, collection, filter); err != nil {
			return n, fmt.Errorf("%w: keyword index: %w", ErrStore, err)
		}
	}

	p.logger.Info("removed file", "project", projectID, "file", filePath, "records", n)
	if n > 0 {
		p.changed(projectID)
	}
	return n, nil
}

// GetStatus returns a read-only snapshot of the project's index
func (p *Pipeline) GetStatus(ctx context.Context, projectID string) (*Status, error) {
	if err := validateIDs(projectID, ""); err != nil {
		return nil, err
	}

	collection := storage.ProjectCollection(projectID)
	status := &Status{
		ProjectID:  projectID,
		IsIndexing: p.tracker.IsIndexing(projectID),
	}

	exists, err := p.store.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	status.Exists = exists

	if exists {
		stats, err := p.store.Stats(ctx, collection)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrStore, err)
		}
		if stats != nil {
			status.DocumentCount = stats.RecordCount
			if !stats.UpdatedAt.IsZero() {
				t := stats.UpdatedAt
				status.LastIndexedAt = &t
			}
		}
	}
	if status.LastIndexedAt == nil {
		if t, ok := p.tracker.LastIndexed(projectID); ok {
			status.LastIndexedAt = &t
		}
	}
	return status, nil
}

// DeleteProject drops the project collection from every store
func (p *Pipeline) DeleteProject(ctx context.Context, projectID string) error {
	if err := validateIDs(projectID, ""); err != nil {
		return err
	}
	collection := storage.ProjectCollection(projectID)
	if err := p.store.DropCollection(ctx, collection); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	if p.keyword != nil {
		if err := p.keyword.DropCollection(ctx, collection); err != nil {
			return fmt.Errorf("%w: keyword index: %w", ErrStore, err)
		}
	}
	p.tracker.Forget(projectID)
	p.logger.Info("deleted project", "project", projectID)
	p.changed(projectID)
	return nil
}

// indexFiles runs the batch. Files that have started run to completion on a
// context detached from cancellation; cancellation stops scheduling new ones.
func (p *Pipeline) indexFiles(ctx context.Context, projectID string, files []FileInput, opts *chunker.Options) (*BatchResult, error) {
	start := time.Now()
	collection := storage.ProjectCollection(projectID)
	result := &BatchResult{TotalFiles: len(files), Errors: []FileError{}}

	type outcome struct {
		index  int
		chunks int
		err    error
	}
	var (
		mu       sync.Mutex
		outcomes []outcome
	)
	record := func(o outcome) {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, o)
		if p.cfg.OnFileDone != nil {
			p.cfg.OnFileDone(FileResult{FilePath: files[o.index].Path, Chunks: o.chunks, Err: o.err})
		}
	}

	sem := semaphore.NewWeighted(int64(p.cfg.Workers))
	g, gctx := errgroup.WithContext(ctx)
	scheduled := 0

	for i := range files {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		scheduled++
		g.Go(func() error {
			defer sem.Release(1)
			if gctx.Err() != nil && ctx.Err() == nil {
				// another file hit a store failure
				return nil
			}

			n, err := p.indexOne(context.WithoutCancel(ctx), projectID, collection, files[i], opts)
			if errors.Is(err, ErrStore) {
				return err
			}
			record(outcome{index: i, chunks: n, err: err})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		p.logger.Error("batch aborted", "project", projectID, "err", err)
		if len(outcomes) > 0 {
			p.changed(projectID)
		}
		return nil, err
	}

	for i := scheduled; i < len(files); i++ {
		record(outcome{index: i, err: fmt.Errorf("not started: %w", ctx.Err())})
	}

	sort.Slice(outcomes, func(a, b int) bool { return outcomes[a].index < outcomes[b].index })
	embedFailures := 0
	for _, o := range outcomes {
		if o.err != nil {
			result.Errors = append(result.Errors, FileError{
				FilePath: files[o.index].Path,
				Error:    o.err.Error(),
				Err:      o.err,
			})
			if errors.Is(o.err, ErrEmbedding) {
				embedFailures++
			}
			continue
		}
		result.IndexedFiles++
		result.TotalChunks += o.chunks
	}
	result.Duration = time.Since(start)
	result.DurationMs = result.Duration.Milliseconds()

	if result.IndexedFiles > 0 {
		p.changed(projectID)
	}
	p.logger.Info("batch indexed",
		"project", projectID,
		"files", result.TotalFiles,
		"indexed", result.IndexedFiles,
		"failed", len(result.Errors),
		"chunks", result.TotalChunks,
		"duration", result.Duration)

	if err := ctx.Err(); err != nil && scheduled < len(files) {
		return result, err
	}
	if result.IndexedFiles == 0 && embedFailures > 0 && embedFailures == len(result.Errors) {
		return result, fmt.Errorf("%w: %w", ErrNothingEmbedded, result.Errors[0].Err)
	}
	return result, nil
}

// indexOne chunks, embeds and writes a single file. All embeddings are
// computed before anything is written; the write itself ignores cancellation.
func (p *Pipeline) indexOne(ctx context.Context, projectID, collection string, file FileInput, opts *chunker.Options) (int, error) {
	start := time.Now()
	logger := p.logger.With("project", projectID, "file", file.Path)

	if strings.TrimSpace(file.Path) == "" {
		return 0, fmt.Errorf("%w: file path is required", ErrInvalidInput)
	}
	chunked, err := p.chunker.Chunk(file.Content, opts)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	vectors, err := p.embedChunks(ctx, logger, chunked.Chunks)
	if err != nil {
		logger.Warn("embedding failed", "err", err)
		return 0, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	records := buildRecords(projectID, file.Path, chunked.Chunks, vectors)
	if err := p.replace(context.WithoutCancel(ctx), collection, file.Path, records); err != nil {
		logger.Error("store write failed", "err", err)
		return 0, err
	}

	p.tracker.Touch(projectID)
	logger.Debug("file indexed", "chunks", len(records), "duration", time.Since(start))
	return len(records), nil
}

// embedChunks embeds chunk contents in provider-sized batches, retrying only rate limits
func (p *Pipeline) embedChunks(ctx context.Context, logger *slog.Logger, chunks []types.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	retry := p.cfg.Retry
	userNotify := retry.OnRetry
	attempt := 0
	retry.OnRetry = func(err error, wait time.Duration) {
		attempt++
		logger.Warn("embedding rate limited, backing off", "attempt", attempt, "wait", wait, "err", err)
		if userNotify != nil {
			userNotify(err, wait)
		}
	}

	for start := 0; start < len(chunks); start += p.cfg.EmbedBatchSize {
		end := start + p.cfg.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}

		resp, err := embedder.RetryRateLimited(ctx, retry, func(ctx context.Context) (*embedder.BatchEmbeddingResponse, error) {
			return p.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d texts", embedder.ErrProviderFailed, len(resp.Embeddings), len(texts))
		}
		for _, emb := range resp.Embeddings {
			if emb == nil || len(emb.Vector) == 0 {
				return nil, fmt.Errorf("%w: empty embedding", embedder.ErrProviderFailed)
			}
			vectors = append(vectors, emb.Vector)
		}
	}
	return vectors, nil
}

// replace swaps the file's records in the vector store and the keyword index
func (p *Pipeline) replace(ctx context.Context, collection, filePath string, records []types.Record) error {
	if r, ok := p.store.(storage.FileReplacer); ok {
		if err := r.ReplaceFile(ctx, collection, filePath, records); err != nil {
			return fmt.Errorf("%w: %w", ErrStore, err)
		}
	} else {
		if _, err := p.store.Delete(ctx, collection, storage.Filter{FilePath: filePath}); err != nil {
			return fmt.Errorf("%w: %w", ErrStore, err)
		}
		if err := p.store.Upsert(ctx, collection, records); err != nil {
			return fmt.Errorf("%w: %w", ErrStore, err)
		}
	}

	if p.keyword == nil {
		return nil
	}
	// the keyword index needs text and metadata only
	textOnly := make([]types.Record, len(records))
	for i, r := range records {
		r.Vector = nil
		textOnly[i] = r
	}
	if r, ok := p.keyword.(storage.FileReplacer); ok {
		if err := r.ReplaceFile(ctx, collection, filePath, textOnly); err != nil {
			return fmt.Errorf("%w: keyword index: %w", ErrStore, err)
		}
		return nil
	}
	if _, err := p.keyword.Delete(ctx, collection, storage.Filter{FilePath: filePath}); err != nil {
		return fmt.Errorf("%w: keyword index: %w", ErrStore, err)
	}
	if err := p.keyword.Index(ctx, collection, textOnly); err != nil {
		return fmt.Errorf("%w: keyword index: %w", ErrStore, err)
	}
	return nil
}

func (p *Pipeline) changed(projectID string) {
	if p.cfg.OnChange != nil {
		p.cfg.OnChange(projectID)
	}
}

// buildRecords pairs chunks with their vectors under deterministic ids
func buildRecords(projectID, filePath string, chunks []types.Chunk, vectors [][]float32) []types.Record {
	records := make([]types.Record, len(chunks))
	for i, c := range chunks {
		records[i] = types.Record{
			ID:      types.RecordID(projectID, filePath, c.Index),
			Vector:  vectors[i],
			Content: c.Content,
			Metadata: types.Metadata{
				ProjectID:     projectID,
				FilePath:      filePath,
				ChunkIndex:    c.Index,
				StartLine:     c.StartLine,
				EndLine:       c.EndLine,
				HasCode:       c.HasCode,
				ChunkType:     c.ChunkType,
				ParentHeading: c.ParentHeading,
				ContentHash:   hex.EncodeToString(c.ContentHash[:]),
			},
		}
	}
	return records
}
