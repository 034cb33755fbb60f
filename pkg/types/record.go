package types

import (
	"fmt"

	"github.com/google/uuid"
)

// RecordNamespace is the UUIDv5 namespace for record ids. Changing it orphans every stored record.
var RecordNamespace = uuid.MustParse("6f3c2a8e-5d1b-4c7e-9a2f-0b8d4e6c1a37")

// RecordID derives the deterministic id of a chunk record.
// The same (projectID, filePath, chunkIndex) always yields the same id.
func RecordID(projectID, filePath string, chunkIndex int) string {
	name := fmt.Sprintf("%s:%s:%d", projectID, filePath, chunkIndex)
	return uuid.NewSHA1(RecordNamespace, []byte(name)).String()
}

// Metadata is the payload stored alongside every record
type Metadata struct {
	ProjectID     string    `json:"projectId"`
	FilePath      string    `json:"filePath"`
	ChunkIndex    int       `json:"chunkIndex"`
	StartLine     int       `json:"startLine"`
	EndLine       int       `json:"endLine"`
	HasCode       bool      `json:"hasCode"`
	ChunkType     ChunkType `json:"chunkType,omitempty"`
	ParentHeading string    `json:"parentHeading,omitempty"`
	ContentHash   string    `json:"contentHash,omitempty"`
}

// Record is the persisted unit in the vector store and keyword index
type Record struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata Metadata
}

// Validate checks the fields every store requires
func (r *Record) Validate() error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if r.Metadata.ProjectID == "" {
		return ErrMissingProject
	}
	if r.Metadata.FilePath == "" {
		return ErrMissingPath
	}
	return nil
}

// ScoredRecord is a record returned by a store query, ranked by Score (higher is better)
type ScoredRecord struct {
	ID       string
	Content  string
	Score    float64
	Metadata Metadata
}
