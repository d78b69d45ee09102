// Package embedding wraps an embedding provider with the process-lifetime
// embedding cache and dimensionality enforcement.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vntravel/internal/cache"
	"github.com/kailas-cloud/vntravel/internal/domain"
)

// DefaultCallTimeout bounds one provider call shared by concurrent callers.
const DefaultCallTimeout = 30 * time.Second

// Adapter implements domain.Embedder on top of a provider and a cache namespace.
type Adapter struct {
	inner       domain.Embedder
	store       *cache.Store[[]float32]
	dimensions  int
	callTimeout time.Duration
	cacheTotal  *prometheus.CounterVec
	logger      *zap.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithCallTimeout overrides DefaultCallTimeout. Non-positive values are ignored.
func WithCallTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.callTimeout = d
		}
	}
}

// NewAdapter creates an adapter. dimensions must be positive.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"); nil disables it.
func NewAdapter(
	inner domain.Embedder,
	store *cache.Store[[]float32],
	dimensions int,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
	opts ...Option,
) (*Adapter, error) {
	if inner == nil || store == nil {
		return nil, domain.InvalidArgument("embedding adapter requires a provider and a cache store")
	}
	if dimensions <= 0 {
		return nil, domain.InvalidArgument("embedding dimensions must be positive, got %d", dimensions)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{
		inner:       inner,
		store:       store,
		dimensions:  dimensions,
		callTimeout: DefaultCallTimeout,
		cacheTotal:  cacheTotal,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Dimensions returns the configured vector length.
func (a *Adapter) Dimensions() int { return a.dimensions }

// Embed returns the cached vector for text or calls the provider once.
// Cache hit: Cached=true and zero token counts. The returned slice is a copy.
//
// Concurrent callers for the same text share one provider call bounded by the
// call timeout; cancelling ctx abandons only this caller's wait.
func (a *Adapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var upstream domain.EmbeddingResult
	start := time.Now()

	vec, hit, err := a.store.GetOrCompute(ctx, text, func(shared context.Context) ([]float32, error) {
		callCtx, cancel := context.WithTimeout(shared, a.callTimeout)
		defer cancel()

		res, err := a.inner.Embed(callCtx, text)
		if err != nil {
			return nil, providerError(err)
		}
		if len(res.Embedding) != a.dimensions {
			return nil, domain.NewDimensionMismatch(a.dimensions, len(res.Embedding))
		}
		upstream = res
		return slices.Clone(res.Embedding), nil
	})
	if err != nil {
		a.logger.Warn("Embedding failed",
			zap.Int("text_len", len(text)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, err
	}

	if hit || upstream.Embedding == nil {
		// Either a map hit or another caller computed it inside singleflight.
		a.incCache("hit")
		return domain.EmbeddingResult{Embedding: slices.Clone(vec), Cached: true}, nil
	}

	a.incCache("miss")
	a.logger.Debug("Embedding computed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(vec)),
		zap.Int("prompt_tokens", upstream.PromptTokens),
		zap.Int("total_tokens", upstream.TotalTokens),
	)
	upstream.Embedding = slices.Clone(vec)
	return upstream, nil
}

// HealthCheck delegates to the provider when it supports it.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	hc, ok := a.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}
	return nil
}

func (a *Adapter) incCache(result string) {
	if a.cacheTotal != nil {
		a.cacheTotal.WithLabelValues(result).Inc()
	}
}

func providerError(err error) error {
	if errors.Is(err, domain.ErrProvider) {
		return fmt.Errorf("embed: %w", err)
	}
	return fmt.Errorf("embed: %w: %w", domain.ErrProvider, err)
}
