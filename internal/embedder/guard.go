package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// GuardConfig configures client-side admission control around a provider
type GuardConfig struct {
	RequestsPerSecond float64       // <= 0 disables the limiter
	Burst             int           // token bucket size (default 1)
	FailureThreshold  uint32        // consecutive failures that open the breaker (default 5)
	OpenTimeout       time.Duration // time the breaker stays open before probing (default 30s)
	Logger            *slog.Logger
}

// Guarded wraps an Embedder with a token-bucket rate limiter and a circuit breaker.
// Rate-limit rejections and caller errors do not count as breaker failures.
// While the breaker is open calls fail fast with ErrProviderUnavailable.
type Guarded struct {
	inner   Embedder
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewGuarded wraps inner with the configured limiter and breaker
func NewGuarded(inner Embedder, cfg GuardConfig) *Guarded {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "embedder-" + inner.Provider(),
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("embedding circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				IsRateLimited(err) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, ErrInvalidInput) ||
				errors.Is(err, ErrEmptyText) ||
				errors.Is(err, ErrBatchTooLarge)
		},
	}

	return &Guarded{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *Guarded) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.GenerateEmbedding(ctx, req)
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return res.(*Embedding), nil
}

func (g *Guarded) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.GenerateBatch(ctx, req)
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return res.(*BatchEmbeddingResponse), nil
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return err
}

// State returns the breaker state: "closed", "half-open" or "open"
func (g *Guarded) State() string {
	return g.breaker.State().String()
}

func (g *Guarded) Dimension() int {
	return g.inner.Dimension()
}

func (g *Guarded) Provider() string {
	return g.inner.Provider()
}

func (g *Guarded) Model() string {
	return g.inner.Model()
}

func (g *Guarded) Close() error {
	return g.inner.Close()
}
