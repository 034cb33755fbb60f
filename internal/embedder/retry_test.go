package embedder

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(retries int) RetryConfig {
	return RetryConfig{
		MaxRetries: retries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2,
	}
}

func TestRetryRateLimited(t *testing.T) {
	ctx := context.Background()
	rateLimited := fmt.Errorf("%w: 429", ErrRateLimited)

	t.Run("succeeds after rate limits", func(t *testing.T) {
		attempts := 0
		got, err := RetryRateLimited(ctx, fastRetry(3), func(context.Context) (int, error) {
			attempts++
			if attempts < 3 {
				return 0, rateLimited
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 3, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		attempts := 0
		var waits []time.Duration
		cfg := fastRetry(2)
		cfg.OnRetry = func(err error, wait time.Duration) {
			assert.True(t, IsRateLimited(err))
			waits = append(waits, wait)
		}

		_, err := RetryRateLimited(ctx, cfg, func(context.Context) (int, error) {
			attempts++
			return 0, rateLimited
		})
		assert.True(t, IsRateLimited(err))
		assert.Equal(t, 3, attempts)
		assert.Len(t, waits, 2)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		attempts := 0
		boom := errors.New("boom")
		_, err := RetryRateLimited(ctx, fastRetry(5), func(context.Context) (int, error) {
			attempts++
			return 0, boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, attempts)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		attempts := 0
		cfg := fastRetry(10)
		cfg.BaseDelay = 50 * time.Millisecond
		cfg.MaxDelay = 50 * time.Millisecond

		_, err := RetryRateLimited(cctx, cfg, func(context.Context) (int, error) {
			attempts++
			cancel()
			return 0, rateLimited
		})
		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, MaxRetries, cfg.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, 5*time.Second, cfg.MaxDelay)
	assert.Equal(t, BackoffMultiplier, cfg.Multiplier)
}
