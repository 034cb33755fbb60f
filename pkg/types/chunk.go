package types

import (
	"crypto/sha256"
	"errors"
	"strings"
)

// ChunkType classifies the structure a chunk was cut from
type ChunkType string

const (
	ChunkHeadingSection ChunkType = "heading-section"
	ChunkParagraph      ChunkType = "paragraph"
	ChunkCodeBlock      ChunkType = "code-block"
	ChunkMixed          ChunkType = "mixed"
)

// Chunk is a contiguous slice of a source document prepared for embedding and retrieval.
// Offsets are byte offsets into the original document: Content == doc[StartOffset:EndOffset].
type Chunk struct {
	Index         int
	Content       string
	StartOffset   int
	EndOffset     int
	StartLine     int // 1-based, inclusive
	EndLine       int // 1-based, inclusive
	ParentHeading string
	ChunkType     ChunkType
	HasCode       bool
	ContentHash   [32]byte
}

// ComputeContentHash computes the SHA-256 hash of the chunk content
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Content))
}

// ValidateChunkType checks if the chunk type is valid
func (c *Chunk) ValidateChunkType() error {
	switch c.ChunkType {
	case ChunkHeadingSection, ChunkParagraph, ChunkCodeBlock, ChunkMixed:
		return nil
	default:
		return errors.New("invalid chunk type")
	}
}

// Validate performs structural validation of the chunk
func (c *Chunk) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return ErrEmptyContent
	}
	if c.Index < 0 {
		return errors.New("chunk index must be non-negative")
	}
	if c.EndOffset <= c.StartOffset {
		return errors.New("end offset must be after start offset")
	}
	if c.StartLine <= 0 || c.StartLine > c.EndLine {
		return errors.New("invalid line range")
	}
	return c.ValidateChunkType()
}

// LineAt returns the 1-based line number containing byte offset off.
func LineAt(doc string, off int) int {
	if off > len(doc) {
		off = len(doc)
	}
	if off < 0 {
		off = 0
	}
	return strings.Count(doc[:off], "\n") + 1
}
