package chunker

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dshills/ragindex/pkg/types"
)

// Strategy selects how a document is split into candidate chunks
type Strategy string

const (
	StrategyHeading   Strategy = "heading"
	StrategyParagraph Strategy = "paragraph"
	StrategyCodeAware Strategy = "code-aware"
	StrategyHybrid    Strategy = "hybrid"
)

const (
	DefaultMaxChunkSize = 4000
	DefaultMinChunkSize = 500
	DefaultOverlapSize  = 200
)

// ErrInvalidOptions is returned when chunk size options are inconsistent
var ErrInvalidOptions = errors.New("invalid chunk options")

// Options configures chunking. Sizes are in bytes of UTF-8 text.
// Zero sizes and an empty strategy take the defaults; a defaulted overlap is
// reduced below MinChunkSize when needed. A negative OverlapSize disables overlap.
type Options struct {
	MaxChunkSize       int      `koanf:"max_chunk_size"`
	MinChunkSize       int      `koanf:"min_chunk_size"`
	OverlapSize        int      `koanf:"overlap_size"`
	Strategy           Strategy `koanf:"strategy"`
	SeparateCodeBlocks bool     `koanf:"separate_code_blocks"`
}

// DefaultOptions returns the general-purpose hybrid configuration
func DefaultOptions() Options {
	return Options{
		MaxChunkSize:       DefaultMaxChunkSize,
		MinChunkSize:       DefaultMinChunkSize,
		OverlapSize:        DefaultOverlapSize,
		Strategy:           StrategyHybrid,
		SeparateCodeBlocks: true,
	}
}

// ParseStrategy converts a strategy name, accepting "" as hybrid
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(name); s {
	case "":
		return StrategyHybrid, nil
	case StrategyHeading, StrategyParagraph, StrategyCodeAware, StrategyHybrid:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidOptions, name)
	}
}

func (o Options) withDefaults() Options {
	if o.MaxChunkSize == 0 {
		o.MaxChunkSize = DefaultMaxChunkSize
	}
	if o.MinChunkSize == 0 {
		o.MinChunkSize = DefaultMinChunkSize
		if o.MinChunkSize >= o.MaxChunkSize {
			o.MinChunkSize = o.MaxChunkSize / 2
		}
	}
	switch {
	case o.OverlapSize < 0:
		o.OverlapSize = 0
	case o.OverlapSize == 0:
		o.OverlapSize = DefaultOverlapSize
		if o.OverlapSize >= o.MinChunkSize {
			o.OverlapSize = o.MinChunkSize / 2
		}
	}
	if o.Strategy == "" {
		o.Strategy = StrategyHybrid
	}
	return o
}

// Validate enforces 0 <= overlap < min < max and a known strategy
func (o Options) Validate() error {
	if o.OverlapSize < 0 || o.MinChunkSize <= 0 || o.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: sizes must be positive", ErrInvalidOptions)
	}
	if o.OverlapSize >= o.MinChunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than min %d", ErrInvalidOptions, o.OverlapSize, o.MinChunkSize)
	}
	if o.MinChunkSize >= o.MaxChunkSize {
		return fmt.Errorf("%w: min %d must be smaller than max %d", ErrInvalidOptions, o.MinChunkSize, o.MaxChunkSize)
	}
	_, err := ParseStrategy(string(o.Strategy))
	return err
}

// Result is the output of a chunking call
type Result struct {
	Chunks     []types.Chunk
	ChunkCount int
	Strategy   Strategy
}

// Chunker splits documents into retrieval chunks. It holds no state and is safe for concurrent use.
type Chunker struct{}

// New creates a new Chunker instance
func New() *Chunker {
	return &Chunker{}
}

// Chunk splits content into ordered chunks. A nil opts uses DefaultOptions.
// The only error is an invalid option set.
func (c *Chunker) Chunk(content string, opts *Options) (*Result, error) {
	o := DefaultOptions()
	if opts != nil {
		o = opts.withDefaults()
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	result := &Result{Chunks: []types.Chunk{}, Strategy: o.Strategy}

	blocks := scan(content)
	if len(blocks) == 0 {
		return result, nil
	}

	s := &sizer{doc: content, blocks: blocks, opts: o}

	var pieces []piece
	if c.fitsWhole(s) {
		pieces = []piece{{start: blocks[0].start, end: blocks[len(blocks)-1].end}}
	} else {
		pieces = s.merge(s.split(s.units()))
	}

	result.Chunks = make([]types.Chunk, 0, len(pieces))
	for i, p := range pieces {
		result.Chunks = append(result.Chunks, c.buildChunk(s, i, p))
	}
	result.ChunkCount = len(result.Chunks)
	return result, nil
}

// fitsWhole reports whether the document is short enough to stay a single chunk.
// Heading strategies still split at a heading that follows other content.
func (c *Chunker) fitsWhole(s *sizer) bool {
	first, last := s.blocks[0], s.blocks[len(s.blocks)-1]
	if last.end-first.start > s.opts.MaxChunkSize {
		return false
	}
	if s.opts.Strategy != StrategyHeading && s.opts.Strategy != StrategyHybrid {
		return true
	}
	for _, b := range s.blocks[1:] {
		if b.kind == blockHeading {
			return false
		}
	}
	return true
}

func (c *Chunker) buildChunk(s *sizer, index int, p piece) types.Chunk {
	chunk := types.Chunk{
		Index:       index,
		Content:     s.doc[p.start:p.end],
		StartOffset: p.start,
		EndOffset:   p.end,
		StartLine:   types.LineAt(s.doc, p.start),
		EndLine:     types.LineAt(s.doc, p.end-1),
	}

	// blocks overlapping [p.start, p.end)
	lo := sort.Search(len(s.blocks), func(i int) bool { return s.blocks[i].end > p.start })
	var hasCode, hasProse bool
	for i := lo; i < len(s.blocks) && s.blocks[i].start < p.end; i++ {
		b := s.blocks[i]
		if chunk.ParentHeading == "" {
			chunk.ParentHeading = b.heading
		}
		if b.kind == blockCode {
			hasCode = true
		} else {
			hasProse = true
		}
	}

	startsWithHeading := lo < len(s.blocks) && s.blocks[lo].kind == blockHeading && s.blocks[lo].start >= p.start
	switch {
	case hasCode && !hasProse:
		chunk.ChunkType = types.ChunkCodeBlock
	case hasCode:
		chunk.ChunkType = types.ChunkMixed
	case startsWithHeading:
		chunk.ChunkType = types.ChunkHeadingSection
	default:
		chunk.ChunkType = types.ChunkParagraph
	}
	chunk.HasCode = hasCode
	chunk.ComputeContentHash()
	return chunk
}
