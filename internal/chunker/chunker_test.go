package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ragindex/pkg/types"
)

func TestNew(t *testing.T) {
	c := New()
	assert.NotNil(t, c)
}

func TestChunk_Empty(t *testing.T) {
	c := New()

	for _, input := range []string{"", "   ", "\n\n\t\n"} {
		res, err := c.Chunk(input, nil)
		require.NoError(t, err)
		assert.Empty(t, res.Chunks)
		assert.Equal(t, 0, res.ChunkCount)
		assert.Equal(t, StrategyHybrid, res.Strategy)
	}
}

func TestChunk_ShortParagraph(t *testing.T) {
	input := "The quick brown fox jumps over dogs"
	require.Len(t, input, 35)

	res, err := New().Chunk(input, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.ChunkCount)

	ch := res.Chunks[0]
	assert.Equal(t, 0, ch.Index)
	assert.Equal(t, input, ch.Content)
	assert.Equal(t, 0, ch.StartOffset)
	assert.Equal(t, len(input), ch.EndOffset)
	assert.Equal(t, types.ChunkParagraph, ch.ChunkType)
	assert.False(t, ch.HasCode)
	assert.Empty(t, ch.ParentHeading)
	assert.Equal(t, 1, ch.StartLine)
	assert.Equal(t, 1, ch.EndLine)
}

func TestChunk_ShortDocumentStartingWithHeading(t *testing.T) {
	input := "# Setup\n\nRun the installer and follow the prompts."

	res, err := New().Chunk(input, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.ChunkCount)
	assert.Equal(t, types.ChunkHeadingSection, res.Chunks[0].ChunkType)
	assert.Equal(t, "Setup", res.Chunks[0].ParentHeading)
	assert.Equal(t, input, res.Chunks[0].Content)
}

func TestChunk_TwoHeadingSections(t *testing.T) {
	sectionA := "# A\n\n" + sentence('a', 295)
	sectionB := "# B\n\n" + sentence('b', 295)
	input := sectionA + "\n\n" + sectionB

	res, err := New().Chunk(input, &Options{MinChunkSize: 100, SeparateCodeBlocks: true})
	require.NoError(t, err)
	require.Equal(t, 2, res.ChunkCount)

	assert.Equal(t, "A", res.Chunks[0].ParentHeading)
	assert.Equal(t, "B", res.Chunks[1].ParentHeading)
	assert.Equal(t, sectionA, res.Chunks[0].Content)
	assert.Equal(t, sectionB, res.Chunks[1].Content)
	assert.Equal(t, types.ChunkHeadingSection, res.Chunks[0].ChunkType)
	assert.Equal(t, 0, res.Chunks[0].Index)
	assert.Equal(t, 1, res.Chunks[1].Index)
}

func TestChunk_SmallSectionsMergeForward(t *testing.T) {
	input := "# A\n\nshort\n\n# B\n\n" + sentence('b', 400) + "\n\n# C\n\n" + sentence('c', 400)

	opts := &Options{MaxChunkSize: 1000, MinChunkSize: 100, OverlapSize: 10, Strategy: StrategyHeading}
	res, err := New().Chunk(input, opts)
	require.NoError(t, err)
	require.Equal(t, 2, res.ChunkCount)

	assert.True(t, strings.HasPrefix(res.Chunks[0].Content, "# A"))
	assert.Contains(t, res.Chunks[0].Content, "# B")
	assert.Equal(t, "A", res.Chunks[0].ParentHeading)
	assert.Equal(t, "C", res.Chunks[1].ParentHeading)
}

func TestChunk_TrailingSmallSectionMergesBackward(t *testing.T) {
	input := "# A\n\n" + sentence('a', 400) + "\n\n# B\n\ntail"

	opts := &Options{MaxChunkSize: 1000, MinChunkSize: 100, OverlapSize: 10, Strategy: StrategyHeading}
	res, err := New().Chunk(input, opts)
	require.NoError(t, err)
	require.Equal(t, 1, res.ChunkCount)
	assert.Equal(t, input, res.Chunks[0].Content)
}

func TestChunk_HardSplitWithOverlap(t *testing.T) {
	input := strings.Repeat("x", 10000)

	res, err := New().Chunk(input, nil)
	require.NoError(t, err)
	require.Equal(t, 3, res.ChunkCount)

	for i, ch := range res.Chunks {
		assert.LessOrEqual(t, len(ch.Content), DefaultMaxChunkSize)
		if i > 0 {
			prev := res.Chunks[i-1]
			assert.Equal(t, DefaultOverlapSize, prev.EndOffset-ch.StartOffset, "chunk %d overlap", i)
		}
	}
	assert.Equal(t, 0, res.Chunks[0].StartOffset)
	assert.Equal(t, len(input), res.Chunks[2].EndOffset)
}

func TestChunk_HardSplitRespectsRuneBoundaries(t *testing.T) {
	input := strings.Repeat("héllo wörld ", 800)

	res, err := New().Chunk(input, &Options{MaxChunkSize: 1001, MinChunkSize: 300, OverlapSize: 77})
	require.NoError(t, err)
	require.Greater(t, res.ChunkCount, 1)

	for _, ch := range res.Chunks {
		assert.True(t, utf8.ValidString(ch.Content), "chunk %d is not valid UTF-8", ch.Index)
		assert.Equal(t, input[ch.StartOffset:ch.EndOffset], ch.Content)
	}
}

func TestChunk_HardSplitCoversMultibyteText(t *testing.T) {
	doc := strings.Repeat("日本語のテキスト", 500)

	for _, overlap := range []int{-1, 1, 3, 50} {
		for maxSize := 600; maxSize < 700; maxSize++ {
			name := fmt.Sprintf("overlap=%d/max=%d", overlap, maxSize)
			opts := &Options{MaxChunkSize: maxSize, MinChunkSize: 100, OverlapSize: overlap, Strategy: StrategyParagraph}
			res, err := New().Chunk(doc, opts)
			require.NoError(t, err, name)
			require.Greater(t, res.ChunkCount, 1, name)

			assert.Equal(t, 0, res.Chunks[0].StartOffset, name)
			assert.Equal(t, len(doc), res.Chunks[res.ChunkCount-1].EndOffset, name)
			for i, ch := range res.Chunks {
				assert.True(t, utf8.ValidString(ch.Content), "%s: chunk %d is not valid UTF-8", name, i)
				assert.LessOrEqual(t, len(ch.Content), maxSize, "%s: chunk %d", name, i)
				if i > 0 {
					prev := res.Chunks[i-1]
					assert.LessOrEqual(t, ch.StartOffset, prev.EndOffset, "%s: gap before chunk %d", name, i)
					assert.Greater(t, ch.StartOffset, prev.StartOffset, name)
				}
			}
			assert.Equal(t, doc, reconstruct(doc, res.Chunks), name)
		}
	}
}

func TestChunk_UndersizedSectionMergesIntoNeighbourThatFits(t *testing.T) {
	sectionA := "# A\n\n" + sentence('a', 495)
	sectionB := "# B\n\n" + sentence('b', 195)
	sectionC := "# C\n\n" + sentence('c', 745)
	input := sectionA + "\n\n" + sectionB + "\n\n" + sectionC

	opts := &Options{MaxChunkSize: 800, MinChunkSize: 300, OverlapSize: 50, Strategy: StrategyHeading}
	res, err := New().Chunk(input, opts)
	require.NoError(t, err)
	require.Equal(t, 2, res.ChunkCount)

	assert.Equal(t, sectionA+"\n\n"+sectionB, res.Chunks[0].Content)
	assert.Equal(t, sectionC, res.Chunks[1].Content)
	for _, ch := range res.Chunks {
		assert.LessOrEqual(t, len(ch.Content), opts.MaxChunkSize)
	}
}

func TestChunk_UndersizedSectionPrefersMinimumOverMaximum(t *testing.T) {
	sectionA := "# A\n\n" + sentence('a', 695)
	sectionB := "# B\n\n" + sentence('b', 195)
	sectionC := "# C\n\n" + sentence('c', 695)
	input := sectionA + "\n\n" + sectionB + "\n\n" + sectionC

	opts := &Options{MaxChunkSize: 800, MinChunkSize: 300, OverlapSize: 50, Strategy: StrategyHeading}
	res, err := New().Chunk(input, opts)
	require.NoError(t, err)
	require.Equal(t, 2, res.ChunkCount)

	assert.Equal(t, sectionA, res.Chunks[0].Content)
	assert.Equal(t, sectionB+"\n\n"+sectionC, res.Chunks[1].Content)
}

func TestChunk_CodeBlockKeptWhole(t *testing.T) {
	code := "```go\n" + strings.Repeat("fmt.Println(\"line\")\n\n", 30) + "```"
	input := "# Example\n\n" + sentence('p', 150) + "\n\n" + code + "\n\n" + sentence('q', 150)

	opts := &Options{MaxChunkSize: 300, MinChunkSize: 60, OverlapSize: 10, Strategy: StrategyHybrid, SeparateCodeBlocks: true}
	res, err := New().Chunk(input, opts)
	require.NoError(t, err)

	var codeChunk *types.Chunk
	for i := range res.Chunks {
		if res.Chunks[i].Content == code {
			codeChunk = &res.Chunks[i]
		}
	}
	require.NotNil(t, codeChunk, "expected a chunk holding the whole fence")
	assert.Equal(t, types.ChunkCodeBlock, codeChunk.ChunkType)
	assert.True(t, codeChunk.HasCode)
	assert.Greater(t, len(codeChunk.Content), opts.MaxChunkSize)
	assert.Equal(t, "Example", codeChunk.ParentHeading)

	for _, ch := range res.Chunks {
		if ch.Index != codeChunk.Index {
			assert.NotContains(t, ch.Content, "```")
			assert.False(t, ch.HasCode)
		}
	}
}

func TestChunk_CodeAwareSeparatesSmallCodeBlocks(t *testing.T) {
	code := "~~~\nmake build\n~~~"
	input := sentence('a', 600) + "\n\n" + code + "\n\n" + sentence('b', 600)

	opts := &Options{MaxChunkSize: 1000, MinChunkSize: 100, OverlapSize: 10, Strategy: StrategyCodeAware, SeparateCodeBlocks: true}
	res, err := New().Chunk(input, opts)
	require.NoError(t, err)
	require.Equal(t, 3, res.ChunkCount)
	assert.Equal(t, code, res.Chunks[1].Content)
	assert.Equal(t, types.ChunkCodeBlock, res.Chunks[1].ChunkType)
}

func TestChunk_CodeInlineWhenNotSeparated(t *testing.T) {
	code := "```\nx := 1\n```"
	input := sentence('a', 600) + "\n\n" + code + "\n\n" + sentence('b', 600)

	opts := &Options{MaxChunkSize: 2000, MinChunkSize: 100, OverlapSize: 10, Strategy: StrategyCodeAware}
	res, err := New().Chunk(input, opts)
	require.NoError(t, err)
	require.Equal(t, 1, res.ChunkCount)
	assert.Equal(t, types.ChunkMixed, res.Chunks[0].ChunkType)
	assert.True(t, res.Chunks[0].HasCode)
}

func TestChunk_UnclosedFenceDegradesToText(t *testing.T) {
	input := "```go\nfunc main() {\n\nstill open"

	res, err := New().Chunk(input, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.ChunkCount)
	assert.False(t, res.Chunks[0].HasCode)
	assert.Equal(t, types.ChunkParagraph, res.Chunks[0].ChunkType)
}

func TestChunk_Invariants(t *testing.T) {
	docs := map[string]string{
		"markdown":  markdownDoc(),
		"prose":     proseDoc(40, 180),
		"one-line":  strings.Repeat("word ", 3000),
		"code-only": "```\n" + strings.Repeat("code line\n", 700) + "```",
		"cjk":       strings.Repeat("日本語のテキスト", 500),
		"cjk-paras": strings.Repeat(strings.Repeat("文書の段落です。", 40)+"\n\n", 12),
	}
	strategies := []Strategy{StrategyHeading, StrategyParagraph, StrategyCodeAware, StrategyHybrid}

	for name, doc := range docs {
		for _, strategy := range strategies {
			t.Run(fmt.Sprintf("%s/%s", name, strategy), func(t *testing.T) {
				opts := &Options{MaxChunkSize: 1200, MinChunkSize: 300, OverlapSize: 50, Strategy: strategy, SeparateCodeBlocks: true}
				res, err := New().Chunk(doc, opts)
				require.NoError(t, err)
				require.NotEmpty(t, res.Chunks)
				assert.Equal(t, len(res.Chunks), res.ChunkCount)

				prevStart := -1
				for i, ch := range res.Chunks {
					assert.Equal(t, i, ch.Index)
					assert.Equal(t, doc[ch.StartOffset:ch.EndOffset], ch.Content)
					assert.Greater(t, ch.EndOffset, ch.StartOffset)
					assert.GreaterOrEqual(t, ch.StartOffset, prevStart)
					assert.NoError(t, ch.Validate())
					prevStart = ch.StartOffset
				}

				assert.Equal(t, stripSpace(doc), stripSpace(reconstruct(doc, res.Chunks)))
			})
		}
	}
}

func TestChunk_MinimumSize(t *testing.T) {
	for _, strategy := range []Strategy{StrategyHeading, StrategyParagraph} {
		t.Run(string(strategy), func(t *testing.T) {
			opts := &Options{MaxChunkSize: 1200, MinChunkSize: 300, OverlapSize: 50, Strategy: strategy}
			res, err := New().Chunk(markdownDoc(), opts)
			require.NoError(t, err)
			require.Greater(t, res.ChunkCount, 1)

			for _, ch := range res.Chunks {
				if ch.HasCode {
					continue
				}
				assert.GreaterOrEqual(t, len(ch.Content), opts.MinChunkSize, "chunk %d", ch.Index)
			}
		})
	}
}

func TestChunk_Deterministic(t *testing.T) {
	doc := markdownDoc()
	first, err := New().Chunk(doc, nil)
	require.NoError(t, err)
	second, err := New().Chunk(doc, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestChunk_LineNumbers(t *testing.T) {
	input := "# One\n\n" + sentence('a', 300) + "\n\n# Two\n\n" + sentence('b', 300)

	res, err := New().Chunk(input, &Options{MinChunkSize: 100})
	require.NoError(t, err)
	require.Equal(t, 2, res.ChunkCount)
	assert.Equal(t, 1, res.Chunks[0].StartLine)
	assert.Equal(t, 3, res.Chunks[0].EndLine)
	assert.Equal(t, 5, res.Chunks[1].StartLine)
	assert.Equal(t, 7, res.Chunks[1].EndLine)
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    Options
		wantErr bool
	}{
		{
			name: "zero value takes defaults",
			opts: Options{},
			want: Options{MaxChunkSize: 4000, MinChunkSize: 500, OverlapSize: 200, Strategy: StrategyHybrid},
		},
		{
			name: "defaulted overlap shrinks below min",
			opts: Options{MinChunkSize: 100},
			want: Options{MaxChunkSize: 4000, MinChunkSize: 100, OverlapSize: 50, Strategy: StrategyHybrid},
		},
		{
			name: "negative overlap disables overlap",
			opts: Options{OverlapSize: -1},
			want: Options{MaxChunkSize: 4000, MinChunkSize: 500, OverlapSize: 0, Strategy: StrategyHybrid},
		},
		{
			name:    "explicit overlap above min",
			opts:    Options{MinChunkSize: 100, OverlapSize: 150},
			wantErr: true,
		},
		{
			name:    "min above max",
			opts:    Options{MaxChunkSize: 400, MinChunkSize: 500},
			wantErr: true,
		},
		{
			name:    "unknown strategy",
			opts:    Options{Strategy: "sentence"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.opts.withDefaults()
			err := got.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOptions)
				_, chunkErr := New().Chunk("text", &tt.opts)
				assert.ErrorIs(t, chunkErr, ErrInvalidOptions)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAtxHeading(t *testing.T) {
	tests := []struct {
		line  string
		title string
		ok    bool
	}{
		{"# Title", "Title", true},
		{"### Deep  ", "Deep", true},
		{"## Closed ##", "Closed", true},
		{"# C#", "C#", true},
		{"#", "", true},
		{"   # Indented", "Indented", true},
		{"    # Code", "", false},
		{"#NoSpace", "", false},
		{"####### Seven", "", false},
		{"plain", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			title, ok := atxHeading(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.title, title)
		})
	}
}

func TestScan(t *testing.T) {
	doc := "intro line\nsecond line\n\n# Head\n```sh\necho hi\n\n```\nafter"
	blocks := scan(doc)
	require.Len(t, blocks, 4)

	assert.Equal(t, blockText, blocks[0].kind)
	assert.Equal(t, "intro line\nsecond line", doc[blocks[0].start:blocks[0].end])

	assert.Equal(t, blockHeading, blocks[1].kind)
	assert.True(t, blocks[1].gapBefore)
	assert.Equal(t, "Head", blocks[1].heading)

	assert.Equal(t, blockCode, blocks[2].kind)
	assert.Equal(t, "```sh\necho hi\n\n```", doc[blocks[2].start:blocks[2].end])
	assert.False(t, blocks[2].gapBefore)

	assert.Equal(t, blockText, blocks[3].kind)
	assert.Equal(t, "Head", blocks[3].heading)
}

// sentence returns n bytes of space separated words built from ch
func sentence(ch byte, n int) string {
	var b strings.Builder
	for b.Len() < n {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.Repeat(string(ch), 6))
	}
	return b.String()[:n]
}

func proseDoc(paragraphs, size int) string {
	parts := make([]string, paragraphs)
	for i := range parts {
		parts[i] = sentence(byte('a'+i%26), size)
	}
	return strings.Join(parts, "\n\n")
}

func markdownDoc() string {
	var b strings.Builder
	b.WriteString("Preamble before any heading.\n\n")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, "## Section %d\n\n", i)
		for p := 0; p <= i%4; p++ {
			b.WriteString(sentence(byte('a'+p), 120+i*90))
			b.WriteString("\n\n")
		}
		if i%3 == 0 {
			b.WriteString("```go\nfunc f() {}\n```\n\n")
		}
	}
	return b.String()
}

func reconstruct(doc string, chunks []types.Chunk) string {
	var b strings.Builder
	prevEnd := 0
	for _, ch := range chunks {
		start := ch.StartOffset
		if start < prevEnd {
			start = prevEnd
		}
		if start < ch.EndOffset {
			b.WriteString(doc[start:ch.EndOffset])
		}
		if ch.EndOffset > prevEnd {
			prevEnd = ch.EndOffset
		}
	}
	return b.String()
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
