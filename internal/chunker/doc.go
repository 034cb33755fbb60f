// Package chunker splits documents (code, Markdown, prose) into retrieval chunks.
//
// Chunking runs in two passes. The structural pass scans the document line by
// line into blocks: fenced code blocks, ATX headings and blank-line separated
// text. The size pass then groups blocks into candidate units according to the
// strategy, splits units larger than MaxChunkSize and merges units smaller
// than MinChunkSize into their neighbours.
//
// # Basic Usage
//
//	c := chunker.New()
//	res, err := c.Chunk(content, nil) // hybrid strategy, default sizes
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, ch := range res.Chunks {
//	    fmt.Printf("#%d %s lines %d-%d under %q\n",
//	        ch.Index, ch.ChunkType, ch.StartLine, ch.EndLine, ch.ParentHeading)
//	}
//
// # Strategies
//
//   - heading: one unit per heading section
//   - paragraph: one unit per blank-line separated paragraph
//   - code-aware: paragraphs, with fenced code pulled out as its own unit
//   - hybrid: heading sections with code pulled out; oversized sections fall
//     back to paragraphs and then to hard splits
//
// Code blocks are never cut. A code block larger than MaxChunkSize becomes a
// single oversized chunk. Prose with no usable boundary is hard split into
// balanced windows that share OverlapSize bytes with their neighbour.
//
// # Offsets
//
// All sizes and offsets are byte offsets into the original string and every
// chunk satisfies Content == content[StartOffset:EndOffset]. Hard splits
// never land inside a multi-byte UTF-8 sequence.
package chunker
