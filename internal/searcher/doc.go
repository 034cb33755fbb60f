// Package searcher implements hybrid documentation search combining vector
// similarity and keyword matching.
//
// # Basic Usage
//
//	s, err := searcher.New(emb, store, store, searcher.Config{})
//	if err != nil {
//	    return err
//	}
//
//	opts := searcher.DefaultOptions()
//	opts.IncludeGlobal = true
//	resp, err := s.Search(ctx, "42", "token bucket refill", &opts)
//	for _, r := range resp.Results {
//	    fmt.Printf("%.2f %s:%d-%d\n", r.Score, r.Metadata.FilePath,
//	        r.Metadata.StartLine, r.Metadata.EndLine)
//	}
//
// # Ranking
//
// Vector and keyword retrieval run concurrently, each fetching three times
// Limit candidates. Their lists are merged with Reciprocal Rank Fusion: an
// id at rank r in a list contributes weight/(RRFK + r), and contributions are
// summed across lists. Ids found by both methods therefore rank above ids
// found by one. Equal scores are ordered by id.
//
// Score is the fused sum divided by the best attainable sum (first in every
// enabled list), so it lies in [0, 1] whatever the weights. MinScore is
// compared against Score; RawScore keeps the unnormalized sum.
//
// # Degradation
//
// When the embedding provider or a store fails, the method is skipped and
// the failure is reported in Stats (VectorAvailable, VectorError, and the
// keyword equivalents). Search only returns an error when every enabled
// method failed. A project with no collection yet returns no results.
//
// # Caching
//
// With Options.UseCache, responses are kept in an LRU for Config.CacheTTL.
// Degraded responses are never cached. InvalidateCache empties it; the
// indexer calls it after every write.
package searcher
