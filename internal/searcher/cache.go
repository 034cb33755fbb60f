package searcher

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/ragindex/pkg/types"
)

const (
	DefaultCacheSize = 1000
	DefaultCacheTTL  = 5 * time.Minute
)

type cacheKey [32]byte

// cacheEntry is a cached response with its expiration time
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// resultCache is an LRU of search responses whose entries expire after ttl
type resultCache struct {
	mu  sync.Mutex
	lru *lru.Cache[cacheKey, *cacheEntry]
	ttl time.Duration
	now func() time.Time
}

func newResultCache(size int, ttl time.Duration) *resultCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c, err := lru.New[cacheKey, *cacheEntry](size)
	if err != nil {
		// only fails for a non-positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &resultCache{lru: c, ttl: ttl, now: time.Now}
}

func newCacheKey(projectID, query string, o Options) cacheKey {
	// UseCache is not part of the key
	data := fmt.Sprintf("%s|%s|%.6f|%.6f|%.6f|%d|%t|%t|%.6f|%t",
		projectID, query,
		o.VectorWeight, o.KeywordWeight, o.MinScore, o.Limit,
		o.UseVector, o.UseKeyword, o.RRFK, o.IncludeGlobal)
	return sha256.Sum256([]byte(data))
}

// get returns a copy of a live entry
func (c *resultCache) get(key cacheKey) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.lru.Remove(key)
		return nil, false
	}
	return copyResponse(entry.response), true
}

func (c *resultCache) put(key cacheKey, resp *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, &cacheEntry{
		response:  copyResponse(resp),
		expiresAt: c.now().Add(c.ttl),
	})
}

// purge empties the cache and returns how many entries it held
func (c *resultCache) purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.lru.Len()
	c.lru.Purge()
	return n
}

func (c *resultCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// copyResponse copies the result slice; SearchResult holds no references
func copyResponse(src *Response) *Response {
	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	copy(dst.Results, src.Results)
	return &dst
}
