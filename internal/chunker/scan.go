package chunker

import "strings"

type blockKind int

const (
	blockText blockKind = iota
	blockHeading
	blockCode
)

// block is a structural element of the document. Blank lines are separators, never blocks.
type block struct {
	kind      blockKind
	start     int    // byte offset of the first line
	end       int    // byte offset just past the last non-newline byte
	heading   string // heading in force at this block (its own title for heading blocks)
	gapBefore bool   // one or more blank lines precede this block
}

// line is a byte range excluding the line terminator
type line struct {
	start, end int
}

func splitLines(doc string) []line {
	lines := make([]line, 0, strings.Count(doc, "\n")+1)
	start := 0
	for start < len(doc) {
		i := strings.IndexByte(doc[start:], '\n')
		end := len(doc)
		next := len(doc)
		if i >= 0 {
			end = start + i
			next = end + 1
		}
		if end > start && doc[end-1] == '\r' {
			end--
		}
		lines = append(lines, line{start: start, end: end})
		start = next
	}
	return lines
}

// scan performs the structural pass: fenced code, ATX headings and blank-line separated text.
// An unclosed fence is treated as ordinary text.
func scan(doc string) []block {
	lines := splitLines(doc)
	blocks := make([]block, 0, len(lines)/2+1)

	heading := ""
	gap := false
	inText := false

	for i := 0; i < len(lines); i++ {
		ln := lines[i]
		text := doc[ln.start:ln.end]

		if strings.TrimSpace(text) == "" {
			gap = true
			inText = false
			continue
		}

		if ch, n, ok := fenceOpen(text); ok {
			if j := findFenceClose(doc, lines, i+1, ch, n); j >= 0 {
				blocks = append(blocks, block{
					kind:      blockCode,
					start:     ln.start,
					end:       lines[j].end,
					heading:   heading,
					gapBefore: gap,
				})
				i = j
				gap = false
				inText = false
				continue
			}
		}

		if title, ok := atxHeading(text); ok {
			heading = title
			blocks = append(blocks, block{
				kind:      blockHeading,
				start:     ln.start,
				end:       ln.end,
				heading:   title,
				gapBefore: gap,
			})
			gap = false
			inText = false
			continue
		}

		if inText {
			blocks[len(blocks)-1].end = ln.end
			continue
		}

		blocks = append(blocks, block{
			kind:      blockText,
			start:     ln.start,
			end:       ln.end,
			heading:   heading,
			gapBefore: gap,
		})
		gap = false
		inText = true
	}

	return blocks
}

// indentation strips up to three leading spaces; ok is false for deeper indentation
func indentation(text string) (string, bool) {
	for i := 0; i < 4 && i < len(text); i++ {
		if text[i] != ' ' {
			return text[i:], true
		}
	}
	if len(text) < 4 {
		return "", true
	}
	return text, false
}

// fenceOpen reports whether text opens a fenced code block
func fenceOpen(text string) (byte, int, bool) {
	t, ok := indentation(text)
	if !ok || len(t) < 3 || (t[0] != '`' && t[0] != '~') {
		return 0, 0, false
	}
	ch := t[0]
	n := 0
	for n < len(t) && t[n] == ch {
		n++
	}
	if n < 3 {
		return 0, 0, false
	}
	if ch == '`' && strings.IndexByte(t[n:], '`') >= 0 {
		return 0, 0, false
	}
	return ch, n, true
}

// findFenceClose returns the index of the line closing a fence opened with n ch characters, or -1
func findFenceClose(doc string, lines []line, from int, ch byte, n int) int {
	for j := from; j < len(lines); j++ {
		t, ok := indentation(doc[lines[j].start:lines[j].end])
		if !ok {
			continue
		}
		k := 0
		for k < len(t) && t[k] == ch {
			k++
		}
		if k >= n && strings.TrimSpace(t[k:]) == "" {
			return j
		}
	}
	return -1
}

// atxHeading parses "# Title" style headings (levels 1-6) and returns the title text
func atxHeading(text string) (string, bool) {
	t, ok := indentation(text)
	if !ok || len(t) == 0 || t[0] != '#' {
		return "", false
	}
	level := 0
	for level < len(t) && t[level] == '#' {
		level++
	}
	if level > 6 {
		return "", false
	}
	rest := t[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}

	title := strings.TrimSpace(rest)
	closed := strings.TrimRight(title, "#")
	switch {
	case closed == "":
		title = ""
	case closed != title && (strings.HasSuffix(closed, " ") || strings.HasSuffix(closed, "\t")):
		title = strings.TrimSpace(closed)
	}
	return title, true
}
