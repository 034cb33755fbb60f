package searcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/ragindex/pkg/types"
)

func TestResultCache_Expiry(t *testing.T) {
	c := newResultCache(10, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	key := newCacheKey("p1", "q", DefaultOptions())
	c.put(key, &Response{Query: "q", Results: []types.SearchResult{{ID: "a"}}})

	got, ok := c.get(key)
	assert.True(t, ok)
	assert.Equal(t, "a", got.Results[0].ID)

	now = now.Add(2 * time.Minute)
	_, ok = c.get(key)
	assert.False(t, ok)
	assert.Zero(t, c.size(), "expired entry is removed on read")
}

func TestResultCache_Eviction(t *testing.T) {
	c := newResultCache(2, time.Minute)
	for _, q := range []string{"a", "b", "c"} {
		c.put(newCacheKey("p1", q, DefaultOptions()), &Response{Query: q})
	}
	assert.Equal(t, 2, c.size())
	_, ok := c.get(newCacheKey("p1", "a", DefaultOptions()))
	assert.False(t, ok, "oldest entry evicted")

	assert.Equal(t, 2, c.purge())
	assert.Zero(t, c.size())
}

func TestCacheKey(t *testing.T) {
	base := DefaultOptions()
	other := base
	other.IncludeGlobal = true
	cached := base
	cached.UseCache = true

	assert.NotEqual(t, newCacheKey("p1", "q", base), newCacheKey("p2", "q", base))
	assert.NotEqual(t, newCacheKey("p1", "q", base), newCacheKey("p1", "q2", base))
	assert.NotEqual(t, newCacheKey("p1", "q", base), newCacheKey("p1", "q", other))
	assert.Equal(t, newCacheKey("p1", "q", base), newCacheKey("p1", "q", cached))
}
