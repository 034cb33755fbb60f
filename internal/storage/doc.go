// Package storage holds indexed records: chunk text, vectors and citation
// metadata, grouped into collections.
//
// A collection scopes one project ("project_{id}_docs") or the shared
// reference namespace ("global_docs"). Collections are created by the first
// write and removed by DropCollection.
//
// # Backends
//
// SQLiteStore keeps everything in one SQLite file. Vectors are stored as
// little-endian float32 blobs next to the content, and an FTS5
// external-content table mirrors the content for bm25 keyword ranking. It
// implements VectorStore, KeywordIndex and FileReplacer.
//
// ChromemStore keeps vectors in chromem-go, in memory or under a directory.
// It only implements VectorStore; pair it with a SQLiteStore for keyword
// search.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Building with the
// sqlite_vec tag switches to mattn/go-sqlite3 and lets vector ranking run in
// SQL through vec_distance_cosine when the extension is loaded:
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec,sqlite_fts5" ./...
//
// # Usage
//
//	store, err := storage.NewSQLiteStore("ragindex.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	col := storage.ProjectCollection("42")
//	err = store.ReplaceFile(ctx, col, "docs/intro.md", records)
//	hits, err := store.Query(ctx, col, queryVector, 30, nil)
//	words, err := store.Search(ctx, col, "token bucket", 30)
//
// # Schema
//
// Migrations are versioned with semantic versions and applied in order on
// open. RollbackMigration undoes the most recent one.
package storage
