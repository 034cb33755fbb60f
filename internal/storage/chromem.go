package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/dshills/ragindex/pkg/types"
)

// errNoEmbeddingFunc is returned if chromem ever asks us to embed text:
// records always arrive with precomputed vectors.
var errNoEmbeddingFunc = errors.New("chromem: embeddings must be precomputed")

func precomputedOnly(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// ChromemStore implements VectorStore using chromem-go, either in memory or
// persisted to a directory. It has no lexical search; pair it with a
// SQLiteStore as the KeywordIndex.
type ChromemStore struct {
	db *chromem.DB

	mu      sync.Mutex // serializes writes so delete counts are exact
	created map[string]time.Time
	updated map[string]time.Time
	dims    map[string]int // 0 when unknown (collection loaded from disk)
}

var _ VectorStore = (*ChromemStore)(nil)

// NewChromemStore opens a chromem database. An empty path keeps everything in memory.
func NewChromemStore(path string, compress bool) (*ChromemStore, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	s := &ChromemStore{
		db:      db,
		created: make(map[string]time.Time),
		updated: make(map[string]time.Time),
		dims:    make(map[string]int),
	}
	now := time.Now()
	for name := range db.ListCollections() {
		s.created[name] = now
		s.updated[name] = now
	}
	return s, nil
}

// Backend names this store
func (s *ChromemStore) Backend() string {
	return "chromem"
}

// Close is a no-op; persistent databases write through on every change
func (s *ChromemStore) Close() error {
	return nil
}

func (s *ChromemStore) collection(name string) *chromem.Collection {
	return s.db.GetCollection(name, precomputedOnly)
}

// Upsert adds records, replacing any with the same id
func (s *ChromemStore) Upsert(ctx context.Context, collection string, records []types.Record) error {
	if collection == "" {
		return ErrInvalidCollection
	}
	dim, err := validateRecords(records, false)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if current := s.dims[collection]; current != 0 && dim != 0 && current != dim {
		return fmt.Errorf("%w: collection %s stores %d, got %d", ErrDimensionMismatch, collection, current, dim)
	}

	col, err := s.db.GetOrCreateCollection(collection, nil, precomputedOnly)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	now := time.Now()
	if _, ok := s.created[collection]; !ok {
		s.created[collection] = now
	}
	if len(records) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Content,
			Embedding: vec,
			Metadata:  metadataToMap(r.Metadata),
		}
	}

	// AddDocuments overwrites by id
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("chromem add: %w", err)
	}
	s.dims[collection] = dim
	s.updated[collection] = now
	return nil
}

// Query returns the nearest records by cosine similarity
func (s *ChromemStore) Query(ctx context.Context, collection string, vector []float32, topK int, filter *Filter) ([]types.ScoredRecord, error) {
	col := s.collection(collection)
	if col == nil || topK <= 0 || len(vector) == 0 {
		return []types.ScoredRecord{}, nil
	}

	// mismatched vectors cannot be compared; match SQLiteStore and return nothing
	s.mu.Lock()
	dim := s.dims[collection]
	s.mu.Unlock()
	if dim != 0 && dim != len(vector) {
		return []types.ScoredRecord{}, nil
	}

	// chromem-go requires nResults <= collection size
	n := topK
	if count := col.Count(); count == 0 {
		return []types.ScoredRecord{}, nil
	} else if n > count {
		n = count
	}

	results, err := col.QueryEmbedding(ctx, vector, n, buildWhereClause(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]types.ScoredRecord, len(results))
	for i, r := range results {
		out[i] = types.ScoredRecord{
			ID:       r.ID,
			Content:  r.Content,
			Score:    float64(r.Similarity),
			Metadata: mapToMetadata(r.Metadata),
		}
	}
	sortScored(out)
	return out, nil
}

// Delete removes matching records. An empty filter empties the collection.
func (s *ChromemStore) Delete(ctx context.Context, collection string, filter Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(collection)
	if col == nil {
		return 0, nil
	}
	before := col.Count()
	if before == 0 {
		return 0, nil
	}

	if filter.IsEmpty() {
		// chromem refuses an unconditional delete; recreate the collection instead
		if err := s.db.DeleteCollection(collection); err != nil {
			return 0, fmt.Errorf("chromem drop: %w", err)
		}
		if _, err := s.db.CreateCollection(collection, nil, precomputedOnly); err != nil {
			return 0, fmt.Errorf("chromem recreate: %w", err)
		}
		s.updated[collection] = time.Now()
		return before, nil
	}

	if err := col.Delete(ctx, buildWhereClause(&filter), nil); err != nil {
		return 0, fmt.Errorf("chromem delete: %w", err)
	}
	n := before - col.Count()
	if n > 0 {
		s.updated[collection] = time.Now()
	}
	return n, nil
}

// CollectionExists reports whether the collection has been created
func (s *ChromemStore) CollectionExists(_ context.Context, collection string) (bool, error) {
	return s.collection(collection) != nil, nil
}

// DropCollection deletes the collection. Dropping a missing collection is not an error.
func (s *ChromemStore) DropCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collection(collection) == nil {
		return nil
	}
	if err := s.db.DeleteCollection(collection); err != nil {
		return fmt.Errorf("chromem drop: %w", err)
	}
	delete(s.created, collection)
	delete(s.updated, collection)
	delete(s.dims, collection)
	return nil
}

// Stats returns the document count and the in-process write timestamps
func (s *ChromemStore) Stats(_ context.Context, collection string) (*CollectionStats, error) {
	col := s.collection(collection)
	if col == nil {
		return nil, fmt.Errorf("collection %s: %w", collection, ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return &CollectionStats{
		Name:        collection,
		RecordCount: col.Count(),
		CreatedAt:   s.created[collection],
		UpdatedAt:   s.updated[collection],
	}, nil
}

// metadataToMap converts Metadata to a flat map[string]string for chromem
func metadataToMap(m types.Metadata) map[string]string {
	return map[string]string{
		"project_id":     m.ProjectID,
		"file_path":      m.FilePath,
		"chunk_index":    strconv.Itoa(m.ChunkIndex),
		"start_line":     strconv.Itoa(m.StartLine),
		"end_line":       strconv.Itoa(m.EndLine),
		"has_code":       strconv.FormatBool(m.HasCode),
		"chunk_type":     string(m.ChunkType),
		"parent_heading": m.ParentHeading,
		"content_hash":   m.ContentHash,
	}
}

// mapToMetadata converts a flat map[string]string back to Metadata
func mapToMetadata(m map[string]string) types.Metadata {
	chunkIndex, _ := strconv.Atoi(m["chunk_index"])
	startLine, _ := strconv.Atoi(m["start_line"])
	endLine, _ := strconv.Atoi(m["end_line"])
	hasCode, _ := strconv.ParseBool(m["has_code"])

	return types.Metadata{
		ProjectID:     m["project_id"],
		FilePath:      m["file_path"],
		ChunkIndex:    chunkIndex,
		StartLine:     startLine,
		EndLine:       endLine,
		HasCode:       hasCode,
		ChunkType:     types.ChunkType(m["chunk_type"]),
		ParentHeading: m["parent_heading"],
		ContentHash:   m["content_hash"],
	}
}

// buildWhereClause converts a Filter to a chromem where clause
func buildWhereClause(filter *Filter) map[string]string {
	if filter == nil || filter.IsEmpty() {
		return nil
	}

	where := make(map[string]string)
	if filter.ProjectID != "" {
		where["project_id"] = filter.ProjectID
	}
	if filter.FilePath != "" {
		where["file_path"] = filter.FilePath
	}
	if filter.ChunkType != "" {
		where["chunk_type"] = string(filter.ChunkType)
	}
	return where
}
