package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/ragindex/internal/embedder"
	"github.com/dshills/ragindex/internal/storage"
	"github.com/dshills/ragindex/pkg/types"
)

const (
	DefaultVectorWeight  = 0.7
	DefaultKeywordWeight = 0.3
	DefaultMinScore      = 0.1
	DefaultLimit         = 10
	MaxLimit             = 100
	DefaultRRFK          = 60

	// overFetch multiplies Limit for each retrieval method
	overFetch = 3
)

var (
	// ErrNoSearchMethod is returned when both vector and keyword search are disabled
	ErrNoSearchMethod = errors.New("at least one of vector or keyword search must be enabled")
	// ErrEmptyQuery is returned for a blank query
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrInvalidOptions is returned for out-of-range option values
	ErrInvalidOptions = errors.New("invalid search options")
	// ErrSearchFailed is returned when every enabled method failed
	ErrSearchFailed = errors.New("all search methods failed")
)

// Options controls one hybrid search. Start from DefaultOptions.
type Options struct {
	VectorWeight  float64 `json:"vectorWeight" koanf:"vector_weight"`
	KeywordWeight float64 `json:"keywordWeight" koanf:"keyword_weight"`
	MinScore      float64 `json:"minScore" koanf:"min_score"` // floor on the normalized score
	Limit         int     `json:"limit" koanf:"limit"`
	UseVector     bool    `json:"useVector" koanf:"use_vector"`
	UseKeyword    bool    `json:"useKeyword" koanf:"use_keyword"`
	RRFK          float64 `json:"rrfK" koanf:"rrf_k"`
	IncludeGlobal bool    `json:"includeGlobal" koanf:"include_global"`
	UseCache      bool    `json:"useCache" koanf:"use_cache"`
}

// DefaultOptions returns the standard hybrid configuration
func DefaultOptions() Options {
	return Options{
		VectorWeight:  DefaultVectorWeight,
		KeywordWeight: DefaultKeywordWeight,
		MinScore:      DefaultMinScore,
		Limit:         DefaultLimit,
		UseVector:     true,
		UseKeyword:    true,
		RRFK:          DefaultRRFK,
	}
}

// Validate fills zero Limit and RRFK and rejects inconsistent values
func (o *Options) Validate() error {
	if !o.UseVector && !o.UseKeyword {
		return ErrNoSearchMethod
	}
	if o.Limit == 0 {
		o.Limit = DefaultLimit
	}
	if o.RRFK == 0 {
		o.RRFK = DefaultRRFK
	}
	switch {
	case o.Limit < 0:
		return fmt.Errorf("%w: limit %d", ErrInvalidOptions, o.Limit)
	case o.RRFK < 0 || math.IsNaN(o.RRFK):
		return fmt.Errorf("%w: rrfK %v", ErrInvalidOptions, o.RRFK)
	case o.VectorWeight < 0 || o.KeywordWeight < 0:
		return fmt.Errorf("%w: weights must not be negative", ErrInvalidOptions)
	case o.MinScore < 0 || o.MinScore > 1:
		return fmt.Errorf("%w: minScore %v outside [0,1]", ErrInvalidOptions, o.MinScore)
	}
	if o.enabledWeight() <= 0 {
		return fmt.Errorf("%w: enabled methods have zero total weight", ErrInvalidOptions)
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	return nil
}

func (o *Options) enabledWeight() float64 {
	var w float64
	if o.UseVector {
		w += o.VectorWeight
	}
	if o.UseKeyword {
		w += o.KeywordWeight
	}
	return w
}

// fusionWeights returns the weights of the methods that actually returned a list.
// A failed method contributes nothing, so its weight is left out of normalization.
// When the surviving method was given zero weight it ranks alone with weight 1.
func fusionWeights(o *Options, vectorOK, keywordOK bool) (float64, float64) {
	var vw, kw float64
	if o.UseVector && vectorOK {
		vw = o.VectorWeight
	}
	if o.UseKeyword && keywordOK {
		kw = o.KeywordWeight
	}
	if vw+kw > 0 {
		return vw, kw
	}
	if vectorOK {
		vw = 1
	}
	if keywordOK {
		kw = 1
	}
	return vw, kw
}

// Stats is diagnostic output for one search
type Stats struct {
	VectorResultCount   int    `json:"vectorResultCount"`
	KeywordResultCount  int    `json:"keywordResultCount"`
	CombinedResultCount int    `json:"combinedResultCount"`
	SearchTimeMs        int64  `json:"searchTimeMs"`
	VectorAvailable     bool   `json:"vectorAvailable"`
	KeywordAvailable    bool   `json:"keywordAvailable"`
	VectorError         string `json:"vectorError,omitempty"`
	KeywordError        string `json:"keywordError,omitempty"`
	CacheHit            bool   `json:"cacheHit"`
}

// Response is the result of a search
type Response struct {
	Results []types.SearchResult `json:"results"`
	Query   string               `json:"query"`
	Stats   Stats                `json:"stats"`
}

// Config configures a Searcher
type Config struct {
	CacheSize int           // Result cache entries; 0 uses DefaultCacheSize
	CacheTTL  time.Duration // Result cache lifetime; 0 uses DefaultCacheTTL
	Logger    *slog.Logger
}

// Searcher runs hybrid vector + keyword searches over project collections
type Searcher struct {
	embedder embedder.Embedder
	store    storage.VectorStore
	keyword  storage.KeywordIndex
	cache    *resultCache
	logger   *slog.Logger
}

// New creates a Searcher. emb may be nil, in which case vector search is
// reported unavailable; keyword may be nil, in which case keyword search is.
func New(emb embedder.Embedder, store storage.VectorStore, keyword storage.KeywordIndex, cfg Config) (*Searcher, error) {
	if store == nil && keyword == nil {
		return nil, fmt.Errorf("%w: no vector store or keyword index", ErrNoSearchMethod)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		embedder: emb,
		store:    store,
		keyword:  keyword,
		cache:    newResultCache(cfg.CacheSize, cfg.CacheTTL),
		logger:   logger,
	}, nil
}

// InvalidateCache drops cached responses. Any write may change any
// project's results once global documents are involved, so all entries go.
func (s *Searcher) InvalidateCache(projectID string) {
	if n := s.cache.purge(); n > 0 {
		s.logger.Debug("search cache purged", "project", projectID, "entries", n)
	}
}

// methodResult is the outcome of one retrieval method
type methodResult struct {
	items []types.ScoredRecord
	err   error
	ran   bool
}

// Search runs the enabled retrieval methods concurrently over the project
// collection (and the global one when requested) and fuses them with RRF.
// A method that fails is recorded in Stats; only when every enabled method
// fails is an error returned.
func (s *Searcher) Search(ctx context.Context, projectID, query string, opts *Options) (*Response, error) {
	start := time.Now()

	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrInvalidOptions)
	}

	var key cacheKey
	if o.UseCache {
		key = newCacheKey(projectID, query, o)
		if cached, ok := s.cache.get(key); ok {
			cached.Stats.CacheHit = true
			cached.Stats.SearchTimeMs = time.Since(start).Milliseconds()
			return cached, nil
		}
	}

	collections := []string{storage.ProjectCollection(projectID)}
	if o.IncludeGlobal {
		collections = append(collections, storage.GlobalCollection)
	}
	fetch := o.Limit * overFetch

	var (
		vec, kw methodResult
		g       errgroup.Group
	)
	if o.UseVector {
		vec.ran = true
		g.Go(func() error {
			vec.items, vec.err = s.vectorSearch(ctx, query, collections, fetch)
			return nil
		})
	}
	if o.UseKeyword {
		kw.ran = true
		g.Go(func() error {
			kw.items, kw.err = s.keywordSearch(ctx, query, collections, fetch)
			return nil
		})
	}
	_ = g.Wait()

	stats := Stats{
		VectorAvailable:  vec.ran && vec.err == nil,
		KeywordAvailable: kw.ran && kw.err == nil,
	}
	if vec.err != nil {
		stats.VectorError = vec.err.Error()
		s.logger.Warn("vector search unavailable", "project", projectID, "err", vec.err)
	}
	if kw.err != nil {
		stats.KeywordError = kw.err.Error()
		s.logger.Warn("keyword search unavailable", "project", projectID, "err", kw.err)
	}
	if !stats.VectorAvailable && !stats.KeywordAvailable {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, errors.Join(vec.err, kw.err))
	}

	stats.VectorResultCount = len(vec.items)
	stats.KeywordResultCount = len(kw.items)

	vectorWeight, keywordWeight := fusionWeights(&o, stats.VectorAvailable, stats.KeywordAvailable)
	combined := fuseRRF(o.RRFK,
		rankedList{weight: vectorWeight, items: vec.items},
		rankedList{weight: keywordWeight, items: kw.items},
	)
	stats.CombinedResultCount = len(combined)

	maxScore := maxRRFScore(o.RRFK, vectorWeight, keywordWeight)
	results := make([]types.SearchResult, 0, o.Limit)
	for _, f := range combined {
		score := f.score / maxScore
		if score < o.MinScore {
			// sorted descending, nothing further qualifies
			break
		}
		results = append(results, types.SearchResult{
			ID:          f.record.ID,
			Content:     f.record.Content,
			Score:       score,
			RawScore:    f.score,
			Metadata:    f.record.Metadata,
			VectorRank:  f.vectorRank,
			KeywordRank: f.keywordRank,
		})
		if len(results) == o.Limit {
			break
		}
	}

	stats.SearchTimeMs = time.Since(start).Milliseconds()
	resp := &Response{Results: results, Query: query, Stats: stats}

	s.logger.Debug("search complete",
		"project", projectID,
		"vector", stats.VectorResultCount,
		"keyword", stats.KeywordResultCount,
		"results", len(results),
		"duration", time.Since(start))

	// degraded responses are not cached so a recovered provider is used at once
	if o.UseCache && stats.VectorError == "" && stats.KeywordError == "" {
		s.cache.put(key, resp)
	}
	return resp, nil
}

// vectorSearch embeds the query once and queries each collection
func (s *Searcher) vectorSearch(ctx context.Context, query string, collections []string, topK int) ([]types.ScoredRecord, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", embedder.ErrProviderUnavailable)
	}
	if s.store == nil {
		return nil, errors.New("no vector store configured")
	}

	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	lists := make([][]types.ScoredRecord, 0, len(collections))
	for _, col := range collections {
		recs, err := s.store.Query(ctx, col, emb.Vector, topK, nil)
		if err != nil {
			return nil, fmt.Errorf("vector query %s: %w", col, err)
		}
		lists = append(lists, recs)
	}
	return mergeByScore(topK, lists...), nil
}

// keywordSearch runs the lexical query against each collection
func (s *Searcher) keywordSearch(ctx context.Context, query string, collections []string, topK int) ([]types.ScoredRecord, error) {
	if s.keyword == nil {
		return nil, errors.New("no keyword index configured")
	}

	lists := make([][]types.ScoredRecord, 0, len(collections))
	for _, col := range collections {
		recs, err := s.keyword.Search(ctx, col, query, topK)
		if err != nil {
			return nil, fmt.Errorf("keyword search %s: %w", col, err)
		}
		lists = append(lists, recs)
	}
	return mergeByScore(topK, lists...), nil
}
