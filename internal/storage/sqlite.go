package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dshills/ragindex/pkg/types"
)

// SQLiteStore implements VectorStore, KeywordIndex and FileReplacer on one
// SQLite database: vectors are stored as blobs next to the record content and
// an FTS5 table indexes the content for bm25 ranking.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ VectorStore  = (*SQLiteStore)(nil)
	_ KeywordIndex = (*SQLiteStore)(nil)
	_ FileReplacer = (*SQLiteStore)(nil)
)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Single connection: one writer, and ":memory:" stays one database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies migrations
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Backend names the driver build in use
func (s *SQLiteStore) Backend() string {
	return "sqlite (" + BuildMode + ")"
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withTx runs fn in a transaction. Inside fn only q may touch the database:
// the pool has a single connection and the transaction holds it.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Collection operations

// ensureCollectionWithQuerier creates the collection if missing and pins its vector dimension
func (s *SQLiteStore) ensureCollectionWithQuerier(ctx context.Context, q querier, name string, dim int) error {
	if name == "" {
		return ErrInvalidCollection
	}
	now := time.Now().UnixNano()
	if _, err := q.ExecContext(ctx, `
		INSERT INTO collections (name, dimension, created_at, updated_at)
		VALUES (?, 0, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, now, now); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	if dim == 0 {
		return nil
	}

	var current int
	if err := q.QueryRowContext(ctx, "SELECT dimension FROM collections WHERE name = ?", name).Scan(&current); err != nil {
		return fmt.Errorf("failed to read collection: %w", err)
	}
	switch {
	case current == 0:
		_, err := q.ExecContext(ctx, "UPDATE collections SET dimension = ? WHERE name = ?", dim, name)
		return err
	case current != dim:
		return fmt.Errorf("%w: collection %s stores %d, got %d", ErrDimensionMismatch, name, current, dim)
	}
	return nil
}

func (s *SQLiteStore) touchCollectionWithQuerier(ctx context.Context, q querier, name string) error {
	_, err := q.ExecContext(ctx, "UPDATE collections SET updated_at = ? WHERE name = ?", time.Now().UnixNano(), name)
	return err
}

// CollectionExists reports whether the collection has been created
func (s *SQLiteStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM collections WHERE name = ?", collection).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DropCollection deletes the collection and every record in it. Dropping a
// missing collection is not an error.
func (s *SQLiteStore) DropCollection(ctx context.Context, collection string) error {
	return s.withTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, "DELETE FROM records WHERE collection = ?", collection); err != nil {
			return fmt.Errorf("failed to delete records: %w", err)
		}
		if _, err := q.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", collection); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
		return nil
	})
}

// Stats returns the record count and timestamps of a collection
func (s *SQLiteStore) Stats(ctx context.Context, collection string) (*CollectionStats, error) {
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM collections WHERE name = ?", collection,
	).Scan(&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("collection %s: %w", collection, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	stats := &CollectionStats{
		Name:      collection,
		CreatedAt: time.Unix(0, createdAt),
		UpdatedAt: time.Unix(0, updatedAt),
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE collection = ?", collection,
	).Scan(&stats.RecordCount); err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	return stats, nil
}

// Record operations

// upsertRecordsWithQuerier writes records keyed by (collection, id). A record
// without a vector keeps the vector already stored under its id.
func (s *SQLiteStore) upsertRecordsWithQuerier(ctx context.Context, q querier, collection string, records []types.Record) error {
	query := `
		INSERT INTO records (collection, id, project_id, file_path, chunk_index, start_line, end_line,
			has_code, chunk_type, parent_heading, content, content_hash, vector, dimension)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			project_id = excluded.project_id,
			file_path = excluded.file_path,
			chunk_index = excluded.chunk_index,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			has_code = excluded.has_code,
			chunk_type = excluded.chunk_type,
			parent_heading = excluded.parent_heading,
			content = excluded.content,
			content_hash = excluded.content_hash,
			vector = CASE WHEN excluded.dimension > 0 THEN excluded.vector ELSE records.vector END,
			dimension = CASE WHEN excluded.dimension > 0 THEN excluded.dimension ELSE records.dimension END
	`
	for i := range records {
		r := &records[i]
		var blob []byte
		if len(r.Vector) > 0 {
			blob = serializeVector(r.Vector)
		}
		md := r.Metadata
		if _, err := q.ExecContext(ctx, query,
			collection, r.ID, md.ProjectID, md.FilePath, md.ChunkIndex, md.StartLine, md.EndLine,
			md.HasCode, string(md.ChunkType), md.ParentHeading, r.Content, md.ContentHash,
			blob, len(r.Vector),
		); err != nil {
			return fmt.Errorf("failed to upsert record %s: %w", r.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) write(ctx context.Context, collection string, records []types.Record, allowEmpty bool, filePath string) error {
	dim, err := validateRecords(records, allowEmpty)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(q querier) error {
		if err := s.ensureCollectionWithQuerier(ctx, q, collection, dim); err != nil {
			return err
		}
		if filePath != "" {
			if _, err := s.deleteWithQuerier(ctx, q, collection, Filter{FilePath: filePath}); err != nil {
				return err
			}
		}
		if err := s.upsertRecordsWithQuerier(ctx, q, collection, records); err != nil {
			return err
		}
		return s.touchCollectionWithQuerier(ctx, q, collection)
	})
}

// Upsert inserts or replaces records; every record must carry a vector
func (s *SQLiteStore) Upsert(ctx context.Context, collection string, records []types.Record) error {
	return s.write(ctx, collection, records, false, "")
}

// Index makes records searchable by keyword. Vectors are optional here.
func (s *SQLiteStore) Index(ctx context.Context, collection string, records []types.Record) error {
	return s.write(ctx, collection, records, true, "")
}

// ReplaceFile deletes every record of filePath in the collection and writes
// records in the same transaction.
func (s *SQLiteStore) ReplaceFile(ctx context.Context, collection, filePath string, records []types.Record) error {
	if filePath == "" {
		return types.ErrMissingPath
	}
	for i := range records {
		if records[i].Metadata.FilePath != filePath {
			return fmt.Errorf("record %s belongs to %s, not %s", records[i].ID, records[i].Metadata.FilePath, filePath)
		}
	}
	return s.write(ctx, collection, records, true, filePath)
}

func (s *SQLiteStore) deleteWithQuerier(ctx context.Context, q querier, collection string, filter Filter) (int, error) {
	query, args := applyFilter("DELETE FROM records WHERE collection = ?", []interface{}{collection}, &filter, "")
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Delete removes records matching filter and returns how many were removed.
// An empty filter removes every record but keeps the collection.
func (s *SQLiteStore) Delete(ctx context.Context, collection string, filter Filter) (int, error) {
	var n int
	err := s.withTx(ctx, func(q querier) error {
		var err error
		if n, err = s.deleteWithQuerier(ctx, q, collection, filter); err != nil {
			return err
		}
		if n > 0 {
			return s.touchCollectionWithQuerier(ctx, q, collection)
		}
		return nil
	})
	return n, err
}

// Search operations

// Query ranks records by cosine similarity to vector
func (s *SQLiteStore) Query(ctx context.Context, collection string, vector []float32, topK int, filter *Filter) ([]types.ScoredRecord, error) {
	return searchVector(ctx, s.db, collection, vector, topK, filter)
}

// Search ranks records by bm25 over their content and parent heading
func (s *SQLiteStore) Search(ctx context.Context, collection, text string, topK int) ([]types.ScoredRecord, error) {
	return searchText(ctx, s.db, collection, text, topK)
}
