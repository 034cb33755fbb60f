// Package embedder turns chunk text into dense vectors.
//
// Three providers are available: Jina AI and OpenAI over HTTP, and a local
// feature-hashing provider that needs no network and is used for tests and
// offline indexing. Every provider shares an LRU cache keyed by the SHA-256
// of the input text.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "local"}, logger)
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: []string{chunk1.Content, chunk2.Content},
//	})
//
// Embeddings in a batch response are returned in input order.
//
// # Provider Selection
//
// When Config.Provider is empty the provider is detected from the environment:
//
//  1. JINA_API_KEY set: Jina AI
//  2. OPENAI_API_KEY set: OpenAI
//  3. otherwise: local
//
// # Failure Handling
//
// Providers classify failures. HTTP 429 maps to ErrRateLimited, 5xx and
// transport errors map to ErrProviderUnavailable. New wraps the provider in a
// Guarded embedder that applies a token-bucket limiter and a circuit breaker;
// an open breaker fails fast with ErrProviderUnavailable.
//
// RetryRateLimited retries only rate-limited calls with exponential backoff:
//
//	resp, err := embedder.RetryRateLimited(ctx, embedder.DefaultRetryConfig(),
//	    func(ctx context.Context) (*embedder.BatchEmbeddingResponse, error) {
//	        return emb.GenerateBatch(ctx, req)
//	    })
package embedder
