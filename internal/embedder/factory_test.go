package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name      string
		jinaKey   string
		openaiKey string
		want      string
	}{
		{name: "no keys", want: ProviderLocal},
		{name: "jina key", jinaKey: "j", want: ProviderJina},
		{name: "openai key", openaiKey: "o", want: ProviderOpenAI},
		{name: "both keys prefer jina", jinaKey: "j", openaiKey: "o", want: ProviderJina},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvJinaAPIKey, tt.jinaKey)
			t.Setenv(EnvOpenAIAPIKey, tt.openaiKey)
			assert.Equal(t, tt.want, DetectProvider())
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		emb, err := New(Config{Provider: "LOCAL"}, nil)
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, emb.Provider())
		_, guarded := emb.(*Guarded)
		assert.True(t, guarded)
	})

	t.Run("auto-detect without keys", func(t *testing.T) {
		t.Setenv(EnvJinaAPIKey, "")
		t.Setenv(EnvOpenAIAPIKey, "")
		emb, err := New(Config{}, nil)
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, emb.Provider())
	})

	t.Run("openai with explicit key and model", func(t *testing.T) {
		emb, err := New(Config{Provider: ProviderOpenAI, APIKey: "k", Model: "text-embedding-3-large"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "text-embedding-3-large", emb.Model())
		assert.Equal(t, 3072, emb.Dimension())
	})

	t.Run("jina without key", func(t *testing.T) {
		t.Setenv(EnvJinaAPIKey, "")
		_, err := New(Config{Provider: ProviderJina}, nil)
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(Config{Provider: "mystery"}, nil)
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})
}
