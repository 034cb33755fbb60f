package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/dshills/ragindex/pkg/types"
)

// recordColumns is the column list scanned by scanRecord, in order
const recordColumns = `r.id, r.project_id, r.file_path, r.chunk_index, r.start_line, r.end_line,
	r.has_code, r.chunk_type, r.parent_heading, r.content, r.content_hash`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord reads recordColumns followed by any extra destinations
func scanRecord(row rowScanner, extra ...interface{}) (types.ScoredRecord, error) {
	var (
		rec       types.ScoredRecord
		chunkType string
	)
	dest := []interface{}{
		&rec.ID, &rec.Metadata.ProjectID, &rec.Metadata.FilePath, &rec.Metadata.ChunkIndex,
		&rec.Metadata.StartLine, &rec.Metadata.EndLine, &rec.Metadata.HasCode,
		&chunkType, &rec.Metadata.ParentHeading, &rec.Content, &rec.Metadata.ContentHash,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return rec, err
	}
	rec.Metadata.ChunkType = types.ChunkType(chunkType)
	return rec, nil
}

// applyFilter adds metadata conditions for filter; prefix qualifies the records columns
func applyFilter(query string, args []interface{}, filter *Filter, prefix string) (string, []interface{}) {
	if filter == nil {
		return query, args
	}
	if filter.ProjectID != "" {
		query += " AND " + prefix + "project_id = ?"
		args = append(args, filter.ProjectID)
	}
	if filter.FilePath != "" {
		query += " AND " + prefix + "file_path = ?"
		args = append(args, filter.FilePath)
	}
	if filter.ChunkType != "" {
		query += " AND " + prefix + "chunk_type = ?"
		args = append(args, string(filter.ChunkType))
	}
	return query, args
}

// searchVector performs vector similarity search using cosine similarity
func searchVector(ctx context.Context, q querier, collection string, queryVector []float32, limit int, filter *Filter) ([]types.ScoredRecord, error) {
	if limit <= 0 || len(queryVector) == 0 {
		return []types.ScoredRecord{}, nil
	}
	// Use SQL-side distance when sqlite-vec is compiled in; a driver without
	// the function errors at prepare time and we compute in Go instead.
	if VectorExtensionAvailable {
		if results, err := searchVectorOptimized(ctx, q, collection, queryVector, limit, filter); err == nil {
			return results, nil
		}
	}
	return searchVectorFallback(ctx, q, collection, queryVector, limit, filter)
}

// searchVectorOptimized uses sqlite-vec's vec_distance_cosine (lower is better)
func searchVectorOptimized(ctx context.Context, q querier, collection string, queryVector []float32, limit int, filter *Filter) ([]types.ScoredRecord, error) {
	query := `
		SELECT ` + recordColumns + `,
			1.0 - vec_distance_cosine(r.vector, ?) AS similarity
		FROM records r
		WHERE r.collection = ? AND r.dimension = ?
	`
	args := []interface{}{serializeVector(queryVector), collection, len(queryVector)}
	query, args = applyFilter(query, args, filter, "r.")
	query += " ORDER BY similarity DESC, r.id LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.ScoredRecord, 0, limit)
	for rows.Next() {
		var score float64
		rec, err := scanRecord(rows, &score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		rec.Score = score
		results = append(results, rec)
	}
	return results, rows.Err()
}

// searchVectorFallback loads candidate vectors and ranks them in Go
func searchVectorFallback(ctx context.Context, q querier, collection string, queryVector []float32, limit int, filter *Filter) ([]types.ScoredRecord, error) {
	query := `
		SELECT ` + recordColumns + `, r.vector
		FROM records r
		WHERE r.collection = ? AND r.dimension = ?
	`
	args := []interface{}{collection, len(queryVector)}
	query, args = applyFilter(query, args, filter, "r.")

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []types.ScoredRecord
	for rows.Next() {
		var blob []byte
		rec, err := scanRecord(rows, &blob)
		if err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		rec.Score = cosineSimilarity(queryVector, deserializeVector(blob))
		candidates = append(candidates, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortScored(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	if candidates == nil {
		candidates = []types.ScoredRecord{}
	}
	return candidates, nil
}

// searchText performs BM25 full-text search using FTS5
func searchText(ctx context.Context, q querier, collection, text string, limit int) ([]types.ScoredRecord, error) {
	sanitized := sanitizeFTSQuery(text)
	if sanitized == "" || limit <= 0 {
		return []types.ScoredRecord{}, nil
	}

	// bm25 is lower-is-better; negate so higher scores rank first
	query := `
		SELECT ` + recordColumns + `, -bm25(records_fts, 1.0, 0.5) AS score
		FROM records_fts
		INNER JOIN records r ON r.seq = records_fts.rowid
		WHERE records_fts MATCH ? AND r.collection = ?
		ORDER BY score DESC, r.id
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, sanitized, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.ScoredRecord, 0, limit)
	for rows.Next() {
		var score float64
		rec, err := scanRecord(rows, &score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan text result: %w", err)
		}
		rec.Score = score
		results = append(results, rec)
	}
	return results, rows.Err()
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortScored orders by score descending, then id ascending
func sortScored(records []types.ScoredRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		return records[i].ID < records[j].ID
	})
}

var ftsTokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

const maxFTSTokens = 64

// sanitizeFTSQuery turns free text into an FTS5 query: every word token is
// quoted, so operators and syntax characters in the input are inert, and the
// tokens are OR-ed so a partial match still ranks.
func sanitizeFTSQuery(query string) string {
	tokens := ftsTokenPattern.FindAllString(query, maxFTSTokens)
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + tok + `"`
	}
	return strings.Join(quoted, " OR ")
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
