package searcher

import (
	"sort"

	"github.com/dshills/ragindex/pkg/types"
)

// rankedList is one retrieval method's output in its own order, best first
type rankedList struct {
	weight float64
	items  []types.ScoredRecord
}

// fused is one id after Reciprocal Rank Fusion
type fused struct {
	record      types.ScoredRecord
	score       float64
	vectorRank  int
	keywordRank int
}

// fuseRRF combines vector and keyword lists with Reciprocal Rank Fusion.
// Each list contributes weight/(k+rank) per id, rank starting at 1 in the
// list's own order. An id repeated within one list only counts at its best
// rank. Output is sorted by score descending, ties by id ascending.
func fuseRRF(k float64, vector, keyword rankedList) []fused {
	byID := make(map[string]*fused, len(vector.items)+len(keyword.items))
	order := make([]*fused, 0, len(vector.items)+len(keyword.items))

	add := func(list rankedList, setRank func(f *fused, rank int) bool) {
		for i, item := range list.items {
			rank := i + 1
			f, ok := byID[item.ID]
			if !ok {
				f = &fused{record: item}
				byID[item.ID] = f
				order = append(order, f)
			}
			if setRank(f, rank) {
				f.score += list.weight / (k + float64(rank))
			}
		}
	}

	add(vector, func(f *fused, rank int) bool {
		if f.vectorRank != 0 {
			return false
		}
		f.vectorRank = rank
		return true
	})
	add(keyword, func(f *fused, rank int) bool {
		if f.keywordRank != 0 {
			return false
		}
		f.keywordRank = rank
		return true
	})

	out := make([]fused, len(order))
	for i, f := range order {
		out[i] = *f
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].record.ID < out[j].record.ID
	})
	return out
}

// maxRRFScore is the score of an id ranked first by every enabled method
func maxRRFScore(k float64, weights ...float64) float64 {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	return sum / (k + 1)
}

// mergeByScore merges per-collection lists of one method into a single list,
// best score first, ties by id, keeping the first occurrence of an id
func mergeByScore(limit int, lists ...[]types.ScoredRecord) []types.ScoredRecord {
	if len(lists) == 1 {
		if len(lists[0]) > limit {
			return lists[0][:limit]
		}
		return lists[0]
	}

	var merged []types.ScoredRecord
	for _, l := range lists {
		merged = append(merged, l...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})

	seen := make(map[string]struct{}, len(merged))
	out := merged[:0]
	for _, r := range merged {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out
}
