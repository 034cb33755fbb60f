package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/ragindex/pkg/types"
)

var (
	// ErrNotFound is returned when a requested collection doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidCollection is returned for an empty collection name
	ErrInvalidCollection = errors.New("invalid collection name")
	// ErrDimensionMismatch is returned when vectors in one write disagree on dimension
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// GlobalCollection holds cross-project reference material
const GlobalCollection = "global_docs"

// ProjectCollection returns the collection that scopes one project's records
func ProjectCollection(projectID string) string {
	return fmt.Sprintf("project_%s_docs", projectID)
}

// Filter selects records by metadata. Zero fields match everything.
type Filter struct {
	ProjectID string
	FilePath  string
	ChunkType types.ChunkType
}

// IsEmpty reports whether the filter matches every record
func (f Filter) IsEmpty() bool {
	return f.ProjectID == "" && f.FilePath == "" && f.ChunkType == ""
}

// Matches reports whether md satisfies the filter
func (f Filter) Matches(md types.Metadata) bool {
	if f.ProjectID != "" && md.ProjectID != f.ProjectID {
		return false
	}
	if f.FilePath != "" && md.FilePath != f.FilePath {
		return false
	}
	if f.ChunkType != "" && md.ChunkType != f.ChunkType {
		return false
	}
	return true
}

// CollectionStats is a read-only snapshot of one collection
type CollectionStats struct {
	Name        string
	RecordCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time // last successful write
}

// VectorStore persists records with their vectors, scoped by collection.
// Collections are created lazily on the first Upsert.
type VectorStore interface {
	Upsert(ctx context.Context, collection string, records []types.Record) error
	// Query returns up to topK records ordered by similarity, highest first.
	// A missing collection yields no results and no error.
	Query(ctx context.Context, collection string, vector []float32, topK int, filter *Filter) ([]types.ScoredRecord, error)
	Delete(ctx context.Context, collection string, filter Filter) (int, error)
	CollectionExists(ctx context.Context, collection string) (bool, error)
	DropCollection(ctx context.Context, collection string) error
	Stats(ctx context.Context, collection string) (*CollectionStats, error)
	Close() error
}

// KeywordIndex answers lexical queries over record content
type KeywordIndex interface {
	Index(ctx context.Context, collection string, records []types.Record) error
	// Search returns up to topK records ordered by lexical relevance, best first.
	Search(ctx context.Context, collection string, text string, topK int) ([]types.ScoredRecord, error)
	Delete(ctx context.Context, collection string, filter Filter) (int, error)
	DropCollection(ctx context.Context, collection string) error
}

// FileReplacer is implemented by backends that can swap all records of one
// file in a single transaction.
type FileReplacer interface {
	ReplaceFile(ctx context.Context, collection, filePath string, records []types.Record) error
}

// validateRecords checks ids and paths and that all vectors share one dimension.
// Records without a vector are allowed when allowEmpty is set.
func validateRecords(records []types.Record, allowEmpty bool) (int, error) {
	dim := 0
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		n := len(records[i].Vector)
		if n == 0 {
			if !allowEmpty {
				return 0, fmt.Errorf("record %s: %w", records[i].ID, types.ErrEmptyVector)
			}
			continue
		}
		if dim == 0 {
			dim = n
		} else if n != dim {
			return 0, fmt.Errorf("%w: %d and %d", ErrDimensionMismatch, dim, n)
		}
	}
	return dim, nil
}
