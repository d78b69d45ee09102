// Package answer runs the hybrid retrieval pipeline: embed, vector search,
// location extraction, graph search, fusion, prompt, generation.
package answer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vntravel/internal/cache"
	"github.com/kailas-cloud/vntravel/internal/domain"
	"github.com/kailas-cloud/vntravel/internal/usecase/fusion"
)

// Pipeline stage names used in logs and metrics.
const (
	stageEmbed    = "embed"
	stageVector   = "vector_search"
	stageGraph    = "graph_search"
	stageFuse     = "fuse"
	stageGenerate = "generate"
)

// Defaults applied when Config fields are zero.
const (
	DefaultTopK     = 5
	DefaultMaxNodes = 15
	DefaultMaxItems = 20
)

// Timeouts bound each upstream stage. Zero means no extra deadline.
type Timeouts struct {
	Embed    time.Duration
	Vector   time.Duration
	Graph    time.Duration
	Generate time.Duration
}

// Info names the backends for stats output.
type Info struct {
	VectorIndex string
	Graph       string
	Model       string
}

// Config tunes one pipeline instance.
type Config struct {
	TopK     int
	MaxNodes int
	MaxItems int
	Timeouts Timeouts
	Retry    RetryPolicy
	Info     Info
}

// Metrics are optional collectors; nil fields are skipped.
type Metrics struct {
	StageDuration *prometheus.HistogramVec // labels: stage, status
	Degraded      *prometheus.CounterVec   // labels: marker
	AnswerCache   *prometheus.CounterVec   // labels: result
}

// Deps are the capabilities the pipeline drives.
type Deps struct {
	Embedder  domain.Embedder
	Vector    VectorSearcher
	Locations LocationExtractor
	Graph     GraphSearcher
	Generator domain.Generator
}

// Stats is a snapshot for operators.
type Stats struct {
	CachedEmbeddings int
	CachedAnswers    int
	QueriesServed    int64
	CacheHits        int64
	LastLatency      time.Duration
	AvgLatency       time.Duration
	Info             Info
}

// Service answers travel questions. Safe for concurrent use.
type Service struct {
	embed     domain.Embedder
	vector    VectorSearcher
	locations LocationExtractor
	graph     GraphSearcher
	gen       domain.Generator
	cache     *cache.Layer
	cfg       Config
	metrics   Metrics
	logger    *zap.Logger

	mu           sync.Mutex
	served       int64
	hits         int64
	lastLatency  time.Duration
	totalLatency time.Duration
}

// New creates a pipeline over deps and the given cache layer.
func New(deps Deps, layer *cache.Layer, cfg Config, m Metrics, logger *zap.Logger) (*Service, error) {
	if deps.Embedder == nil || deps.Vector == nil || deps.Locations == nil ||
		deps.Graph == nil || deps.Generator == nil {
		return nil, domain.InvalidArgument("answer service requires embedder, vector, locations, graph and generator")
	}
	if layer == nil {
		return nil, domain.InvalidArgument("answer service requires a cache layer")
	}
	if cfg.TopK < 0 || cfg.MaxNodes < 0 || cfg.MaxItems < 0 {
		return nil, domain.InvalidArgument("pipeline bounds must not be negative")
	}
	if cfg.TopK == 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxNodes == 0 {
		cfg.MaxNodes = DefaultMaxNodes
	}
	if cfg.MaxItems == 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embed:     deps.Embedder,
		vector:    deps.Vector,
		locations: deps.Locations,
		graph:     deps.Graph,
		gen:       deps.Generator,
		cache:     layer,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
	}, nil
}

// Answer runs the pipeline for query. A cached answer is returned as the
// same pointer. Vector and graph failures degrade the answer instead of
// failing it; only configuration errors and exhausted generation retries
// are returned.
func (s *Service) Answer(ctx context.Context, query string) (*domain.GeneratedAnswer, error) {
	key := domain.NormalizeQuery(query)
	if key == "" {
		return nil, domain.InvalidArgument("query must not be empty")
	}
	start := time.Now()

	if cached, ok := s.cache.Answers.Get(key); ok {
		s.inc(s.metrics.AnswerCache, "hit")
		s.record(time.Since(start), true)
		s.logger.Debug("Answer served from cache", zap.String("query", key))
		return cached, nil
	}
	s.inc(s.metrics.AnswerCache, "miss")

	ans := &domain.GeneratedAnswer{
		ID:              uuid.NewString(),
		Query:           query,
		NormalizedQuery: key,
		CreatedAt:       start,
	}

	matches, err := s.semanticSearch(ctx, query)
	if err != nil {
		if isConfigError(err) {
			return nil, err
		}
		s.degrade(ans, domain.DegradedVector, err)
		matches = nil
	}

	locs := s.locations.Extract(query, matches)
	ans.Locations = locs.Names()

	var nodes []domain.GraphNode
	err = s.stage(ctx, stageGraph, s.cfg.Timeouts.Graph, func(ctx context.Context) error {
		var gErr error
		nodes, gErr = s.graph.Search(ctx, locs, s.cfg.MaxNodes)
		return gErr
	})
	if err != nil {
		if isConfigError(err) {
			return nil, err
		}
		s.degrade(ans, domain.DegradedGraph, err)
		nodes = nil
	}

	var fc domain.FusedContext
	err = s.stage(ctx, stageFuse, 0, func(context.Context) error {
		var fErr error
		fc, fErr = fusion.Fuse(matches, nodes, s.cfg.MaxItems)
		return fErr
	})
	if err != nil {
		return nil, fmt.Errorf("fuse: %w", err)
	}
	if fc.IsEmpty() {
		s.degrade(ans, domain.DegradedNoContext, nil)
	}

	prompt := BuildPrompt(query, fc)
	res, attempts, err := s.generateWithRetry(ctx, prompt)
	ans.Attempts = attempts
	if err != nil {
		return nil, &domain.GenerationError{Attempts: attempts, ContextEmpty: fc.IsEmpty(), Err: err}
	}

	ans.Text = res.Text
	ans.Model = res.Model
	ans.Context = fc
	ans.VectorCount = len(matches)
	ans.GraphCount = len(nodes)
	ans.Summary = Summarize(matches)
	if len(matches) > 0 {
		ans.TopScore = matches[0].Score
	}
	ans.Duration = time.Since(start)

	if !ans.IsDegraded() {
		s.cache.Answers.Put(key, ans)
	}
	s.record(ans.Duration, false)

	s.logger.Info("Answer generated",
		zap.String("answer_id", ans.ID),
		zap.Strings("locations", ans.Locations),
		zap.Int("vector_matches", ans.VectorCount),
		zap.Int("graph_nodes", ans.GraphCount),
		zap.Int("context_items", fc.Len()),
		zap.Int("attempts", attempts),
		zap.Any("degraded", ans.Degraded),
		zap.Duration("duration", ans.Duration),
	)
	return ans, nil
}

// semanticSearch embeds the query and runs the vector retriever. Embedding
// failures are reported like vector failures.
func (s *Service) semanticSearch(ctx context.Context, query string) ([]domain.VectorMatch, error) {
	var emb domain.EmbeddingResult
	err := s.stage(ctx, stageEmbed, s.cfg.Timeouts.Embed, func(ctx context.Context) error {
		var eErr error
		emb, eErr = s.embed.Embed(ctx, query)
		return eErr
	})
	if err != nil {
		return nil, err
	}

	var matches []domain.VectorMatch
	err = s.stage(ctx, stageVector, s.cfg.Timeouts.Vector, func(ctx context.Context) error {
		var vErr error
		matches, vErr = s.vector.Search(ctx, emb.Embedding, s.cfg.TopK)
		return vErr
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Semantic search", zap.String("summary", Summarize(matches)))
	return matches, nil
}

// stage runs fn under an optional timeout and records its duration.
func (s *Service) stage(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(ctx)

	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
	}
	if s.metrics.StageDuration != nil {
		s.metrics.StageDuration.WithLabelValues(name, status).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (s *Service) degrade(ans *domain.GeneratedAnswer, marker domain.DegradedMarker, cause error) {
	ans.Degraded = append(ans.Degraded, marker)
	s.inc(s.metrics.Degraded, string(marker))
	fields := []zap.Field{zap.String("answer_id", ans.ID), zap.String("marker", string(marker))}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	s.logger.Warn("Pipeline degraded", fields...)
}

func (s *Service) inc(c *prometheus.CounterVec, label string) {
	if c != nil {
		c.WithLabelValues(label).Inc()
	}
}

func (s *Service) record(d time.Duration, hit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.served++
	if hit {
		s.hits++
	}
	s.lastLatency = d
	s.totalLatency += d
}

// Stats returns cache sizes, counters and timing.
func (s *Service) Stats() Stats {
	cs := s.cache.Stats()
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		CachedEmbeddings: cs.Embeddings,
		CachedAnswers:    cs.Answers,
		QueriesServed:    s.served,
		CacheHits:        s.hits,
		LastLatency:      s.lastLatency,
		Info:             s.cfg.Info,
	}
	if s.served > 0 {
		st.AvgLatency = s.totalLatency / time.Duration(s.served)
	}
	return st
}

// Clear empties both cache namespaces.
func (s *Service) Clear() {
	s.cache.Clear()
	s.logger.Info("Cache cleared")
}

// isConfigError reports errors that must surface instead of degrading.
func isConfigError(err error) bool {
	return errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrDimensionMismatch)
}
