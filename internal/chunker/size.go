package chunker

import "unicode/utf8"

// unit is a candidate chunk: the half-open block range [bi, bj)
type unit struct {
	bi, bj int
	code   bool // a separated code block, never merged or split
}

// piece is a byte range that becomes one chunk
type piece struct {
	start, end int
	code       bool
}

func (p piece) size() int { return p.end - p.start }

// sizer runs the size-correction pass over structural units
type sizer struct {
	doc    string
	blocks []block
	opts   Options
}

func (s *sizer) span(bi, bj int) (int, int) {
	return s.blocks[bi].start, s.blocks[bj-1].end
}

// units groups blocks into candidate chunks according to the strategy
func (s *sizer) units() []unit {
	splitHeading := s.opts.Strategy == StrategyHeading || s.opts.Strategy == StrategyHybrid
	separateCode := s.opts.SeparateCodeBlocks &&
		(s.opts.Strategy == StrategyHybrid || s.opts.Strategy == StrategyCodeAware)

	out := make([]unit, 0, len(s.blocks))
	start := 0
	for i, b := range s.blocks {
		if separateCode && b.kind == blockCode {
			if i > start {
				out = append(out, unit{bi: start, bj: i})
			}
			out = append(out, unit{bi: i, bj: i + 1, code: true})
			start = i + 1
			continue
		}

		boundary := b.gapBefore
		if splitHeading {
			boundary = b.kind == blockHeading
		}
		if boundary && i > start {
			out = append(out, unit{bi: start, bj: i})
			start = i
		}
	}
	if start < len(s.blocks) {
		out = append(out, unit{bi: start, bj: len(s.blocks)})
	}
	return out
}

// split turns every unit into one or more pieces no larger than MaxChunkSize,
// except code blocks which are kept whole.
func (s *sizer) split(units []unit) []piece {
	out := make([]piece, 0, len(units))
	for _, u := range units {
		start, end := s.span(u.bi, u.bj)
		if u.code || end-start <= s.opts.MaxChunkSize {
			out = append(out, piece{start: start, end: end, code: u.code})
			continue
		}
		out = append(out, s.pack(s.atoms(u))...)
	}
	return out
}

// atoms breaks an oversized unit into paragraph groups, and oversized groups into their blocks
func (s *sizer) atoms(u unit) []unit {
	var groups []unit
	start := u.bi
	for i := u.bi + 1; i < u.bj; i++ {
		if s.blocks[i].gapBefore {
			groups = append(groups, unit{bi: start, bj: i})
			start = i
		}
	}
	groups = append(groups, unit{bi: start, bj: u.bj})

	out := make([]unit, 0, len(groups))
	for _, g := range groups {
		gs, ge := s.span(g.bi, g.bj)
		if ge-gs <= s.opts.MaxChunkSize || g.bj-g.bi == 1 {
			out = append(out, g)
			continue
		}
		for i := g.bi; i < g.bj; i++ {
			out = append(out, unit{bi: i, bj: i + 1})
		}
	}
	return out
}

func (s *sizer) hasCode(bi, bj int) bool {
	for i := bi; i < bj; i++ {
		if s.blocks[i].kind == blockCode {
			return true
		}
	}
	return false
}

// pack greedily fills pieces up to MaxChunkSize. An oversized code atom stays whole;
// an oversized prose atom is hard split together with the prose collected before it.
func (s *sizer) pack(atoms []unit) []piece {
	var out []piece
	open := false
	var cur piece
	curCode := false

	flush := func() {
		if open {
			out = append(out, cur)
			open = false
		}
	}

	for _, a := range atoms {
		start, end := s.span(a.bi, a.bj)
		atomCode := s.hasCode(a.bi, a.bj)

		if end-start > s.opts.MaxChunkSize {
			if atomCode {
				flush()
				out = append(out, piece{start: start, end: end})
				continue
			}
			regionStart := start
			if open && !curCode {
				regionStart = cur.start
				open = false
			}
			flush()
			out = append(out, s.hardSplit(regionStart, end)...)
			continue
		}

		if open && end-cur.start <= s.opts.MaxChunkSize {
			cur.end = end
			curCode = curCode || atomCode
			continue
		}
		flush()
		cur = piece{start: start, end: end}
		curCode = atomCode
		open = true
	}
	flush()
	return out
}

// hardSplit cuts [start, end) into balanced windows of at most MaxChunkSize bytes,
// consecutive windows sharing OverlapSize bytes. Cuts never land inside a UTF-8 sequence.
// Each window starts at or before the previous window's end, so no byte is skipped.
func (s *sizer) hardSplit(start, end int) []piece {
	maxSize := s.opts.MaxChunkSize
	if end-start <= maxSize {
		return []piece{{start: start, end: end}}
	}
	ov := max(s.opts.OverlapSize, 0)

	var out []piece
	ws := start
	for end-ws > maxSize {
		// balance what is left over the fewest windows that fit
		n := ceilDiv(end-ws-ov, maxSize-ov)
		size := ceilDiv(end-ws+(n-1)*ov, n)

		we := s.runeStart(ws+size, ws)
		if we <= ws {
			we = s.nextRune(ws, end)
		}
		out = append(out, piece{start: ws, end: we})

		next := s.runeStart(we-ov, ws)
		if next <= ws {
			next = we
		}
		ws = next
	}
	return append(out, piece{start: ws, end: end})
}

// runeStart moves off back to the first byte of the rune containing it, not below floor
func (s *sizer) runeStart(off, floor int) int {
	if off >= len(s.doc) {
		return len(s.doc)
	}
	for off > floor && !utf8.RuneStart(s.doc[off]) {
		off--
	}
	return off
}

func (s *sizer) nextRune(off, limit int) int {
	_, w := utf8.DecodeRuneInString(s.doc[off:])
	if w == 0 {
		w = 1
	}
	if off+w > limit {
		return limit
	}
	return off + w
}

// merge folds undersized prose pieces into a neighbour. An undersized piece goes
// back into its predecessor, or forward into its successor, when the result stays
// within MaxChunkSize. When neither fits it still merges forward: MinChunkSize wins
// over MaxChunkSize. Code pieces never merge.
func (s *sizer) merge(pieces []piece) []piece {
	minSize, maxSize := s.opts.MinChunkSize, s.opts.MaxChunkSize
	out := make([]piece, 0, len(pieces))
	for _, p := range pieces {
		if n := len(out); n > 0 && !p.code {
			last := &out[n-1]
			switch {
			case last.code:
			case last.size() < minSize:
				// last could not go back when it was added
				last.end = p.end
				continue
			case p.size() < minSize && p.end-last.start <= maxSize:
				last.end = p.end
				continue
			}
		}
		out = append(out, p)
	}

	if n := len(out); n > 1 {
		last, prev := out[n-1], &out[n-2]
		if last.size() < minSize && !last.code && !prev.code {
			prev.end = last.end
			out = out[:n-1]
		}
	}
	return out
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
