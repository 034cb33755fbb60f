package searcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ragindex/pkg/types"
)

func recs(ids ...string) []types.ScoredRecord {
	out := make([]types.ScoredRecord, len(ids))
	for i, id := range ids {
		out[i] = types.ScoredRecord{ID: id, Content: "content of " + id, Score: 1 - float64(i)*0.1}
	}
	return out
}

func ids(fs []fused) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.record.ID
	}
	return out
}

func TestFuseRRF_BothListsBoost(t *testing.T) {
	out := fuseRRF(60,
		rankedList{weight: 0.7, items: recs("doc1", "doc2")},
		rankedList{weight: 0.3, items: recs("doc2", "doc3")},
	)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"doc2", "doc1", "doc3"}, ids(out))

	assert.InDelta(t, 0.7/62+0.3/61, out[0].score, 1e-12)
	assert.InDelta(t, 0.7/61, out[1].score, 1e-12)
	assert.InDelta(t, 0.3/62, out[2].score, 1e-12)

	assert.Equal(t, 2, out[0].vectorRank)
	assert.Equal(t, 1, out[0].keywordRank)
	assert.Zero(t, out[1].keywordRank)
	assert.Zero(t, out[2].vectorRank)
}

func TestFuseRRF_TieBrokenByID(t *testing.T) {
	out := fuseRRF(60,
		rankedList{weight: 1, items: recs("zeta", "shared")},
		rankedList{weight: 1, items: recs("alpha", "shared")},
	)
	// zeta and alpha both score 1/61
	assert.Equal(t, []string{"shared", "alpha", "zeta"}, ids(out))
	assert.Equal(t, out[1].score, out[2].score)
}

func TestFuseRRF_DuplicateCountsBestRank(t *testing.T) {
	out := fuseRRF(60,
		rankedList{weight: 1, items: recs("a", "b", "a")},
		rankedList{weight: 1, items: nil},
	)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].record.ID)
	assert.InDelta(t, 1.0/61, out[0].score, 1e-12)
	assert.Equal(t, 1, out[0].vectorRank)
}

func TestFuseRRF_SingleListKeepsOrder(t *testing.T) {
	out := fuseRRF(60,
		rankedList{weight: 0.7, items: nil},
		rankedList{weight: 0.3, items: recs("c", "a", "b")},
	)
	assert.Equal(t, []string{"c", "a", "b"}, ids(out))

	empty := fuseRRF(60, rankedList{weight: 1}, rankedList{weight: 1})
	assert.Empty(t, empty)
}

func TestFuseRRF_Monotonic(t *testing.T) {
	// adding a keyword hit never lowers an id's score
	base := fuseRRF(60,
		rankedList{weight: 0.7, items: recs("a", "b", "c")},
		rankedList{weight: 0.3, items: nil},
	)
	boosted := fuseRRF(60,
		rankedList{weight: 0.7, items: recs("a", "b", "c")},
		rankedList{weight: 0.3, items: recs("c")},
	)
	scoreOf := func(fs []fused, id string) float64 {
		for _, f := range fs {
			if f.record.ID == id {
				return f.score
			}
		}
		return 0
	}
	for _, id := range []string{"a", "b", "c"} {
		assert.GreaterOrEqual(t, scoreOf(boosted, id), scoreOf(base, id), id)
	}
	assert.Greater(t, scoreOf(boosted, "c"), scoreOf(base, "c"))
}

func TestMaxRRFScore(t *testing.T) {
	assert.InDelta(t, 1.0/61, maxRRFScore(60, 0.7, 0.3), 1e-12)
	assert.InDelta(t, 0.3/11, maxRRFScore(10, 0, 0.3), 1e-12)
}

func TestMergeByScore(t *testing.T) {
	a := []types.ScoredRecord{{ID: "p1", Score: 0.9}, {ID: "p2", Score: 0.5}}
	b := []types.ScoredRecord{{ID: "g1", Score: 0.7}, {ID: "g2", Score: 0.5}, {ID: "p1", Score: 0.1}}

	merged := mergeByScore(10, a, b)
	got := make([]string, len(merged))
	for i, r := range merged {
		got[i] = r.ID
	}
	assert.Equal(t, []string{"p1", "g1", "g2", "p2"}, got)

	assert.Len(t, mergeByScore(2, a, b), 2)
	assert.Len(t, mergeByScore(1, a), 1)
}
