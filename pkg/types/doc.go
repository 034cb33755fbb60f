// Package types provides shared type definitions for ragindex.
//
// Chunk is produced by the chunker and carries byte offsets into the source
// document together with the structural classification used for citation:
//
//	chunk := types.Chunk{
//	    Index:         0,
//	    Content:       "# Install\n\nRun make.",
//	    ParentHeading: "Install",
//	    ChunkType:     types.ChunkHeadingSection,
//	}
//
// Record is the persisted unit shared by the vector store and the keyword
// index. Its id is derived from (projectID, filePath, chunkIndex) with
// RecordID, so re-indexing a file replaces its records instead of
// duplicating them:
//
//	id := types.RecordID("acme", "docs/setup.md", 0)
//
// SearchResult is what the hybrid searcher returns after rank fusion.
package types
