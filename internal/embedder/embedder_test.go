package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "empty string",
			text: "",
			want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name: "simple text",
			text: "hello world",
			want: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeHash(tt.text); got != tt.want {
				t.Errorf("ComputeHash() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateRequest(t *testing.T) {
	if err := ValidateRequest(EmbeddingRequest{Text: "ok"}); err != nil {
		t.Errorf("ValidateRequest() unexpected error = %v", err)
	}
	if err := ValidateRequest(EmbeddingRequest{}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("ValidateRequest() error = %v, want %v", err, ErrEmptyText)
	}
}

func TestValidateBatchRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     BatchEmbeddingRequest
		wantErr error
	}{
		{name: "valid", req: BatchEmbeddingRequest{Texts: []string{"a", "b"}}},
		{name: "no texts", req: BatchEmbeddingRequest{}, wantErr: ErrInvalidInput},
		{name: "empty text", req: BatchEmbeddingRequest{Texts: []string{"a", ""}}, wantErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchRequest(tt.req)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCache(t *testing.T) {
	t.Run("basic operations", func(t *testing.T) {
		cache := NewCache(3)

		_, ok := cache.Get("nonexistent")
		assert.False(t, ok)

		cache.Set("hash1", &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3, Hash: "hash1"})
		got, ok := cache.Get("hash1")
		require.True(t, ok)
		assert.Equal(t, "hash1", got.Hash)
		assert.Equal(t, 1, cache.Size())
	})

	t.Run("eviction on capacity", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set("hash1", &Embedding{Hash: "hash1"})
		cache.Set("hash2", &Embedding{Hash: "hash2"})
		cache.Set("hash3", &Embedding{Hash: "hash3"})

		assert.Equal(t, 2, cache.Size())
		_, ok := cache.Get("hash1")
		assert.False(t, ok, "least recently used entry should be evicted")
		_, ok = cache.Get("hash3")
		assert.True(t, ok)
	})

	t.Run("returned vectors are copies", func(t *testing.T) {
		cache := NewCache(10)
		original := &Embedding{Vector: []float32{1, 2, 3}}
		cache.Set("h", original)
		original.Vector[0] = 99

		got, ok := cache.Get("h")
		require.True(t, ok)
		assert.Equal(t, float32(1), got.Vector[0])

		got.Vector[1] = 42
		again, _ := cache.Get("h")
		assert.Equal(t, float32(2), again.Vector[1])
	})

	t.Run("clear", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set("hash1", &Embedding{Hash: "hash1"})
		cache.Clear()
		assert.Equal(t, 0, cache.Size())
	})
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusServiceUnavailable, ErrProviderUnavailable},
		{http.StatusInternalServerError, ErrProviderUnavailable},
		{http.StatusBadRequest, ErrProviderFailed},
		{http.StatusUnauthorized, ErrProviderFailed},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			err := statusError("test", tt.code, "body")
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.code == http.StatusTooManyRequests, IsRateLimited(err))
		})
	}
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	p := mustNewLocalProvider(t)

	assert.Equal(t, ProviderLocal, p.Provider())
	assert.Equal(t, LocalDimension, p.Dimension())

	t.Run("deterministic and normalized", func(t *testing.T) {
		a, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hybrid search engine"})
		require.NoError(t, err)
		b, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hybrid search engine"})
		require.NoError(t, err)

		assert.Equal(t, a.Vector, b.Vector)
		assert.Len(t, a.Vector, LocalDimension)
		assert.InDelta(t, 1.0, norm(a.Vector), 1e-5)
	})

	t.Run("shared words are closer", func(t *testing.T) {
		q, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "configure the database connection"})
		near, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "database connection pool settings"})
		far, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "rendering sprites on screen"})

		assert.Greater(t, dot(q.Vector, near.Vector), dot(q.Vector, far.Vector))
	})

	t.Run("batch preserves order", func(t *testing.T) {
		resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"one", "two"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 2)

		one, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "one"})
		assert.Equal(t, one.Vector, resp.Embeddings[0].Vector)
	})

	t.Run("empty text", func(t *testing.T) {
		_, err := p.GenerateEmbedding(ctx, EmbeddingRequest{})
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := p.GenerateEmbedding(cctx, EmbeddingRequest{Text: "uncached text"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNormalizeVector(t *testing.T) {
	got := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, got[0], 1e-6)
	assert.InDelta(t, 0.8, got[1], 1e-6)

	zero := NormalizeVector([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}

func mustNewLocalProvider(t *testing.T) *LocalProvider {
	t.Helper()
	p, err := NewLocalProvider(NewCache(100))
	require.NoError(t, err)
	return p
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
