package answer

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/vntravel/internal/domain"
)

// PrewarmOptions bounds a cache pre-warm run.
type PrewarmOptions struct {
	Concurrency int     // parallel queries; default 2
	RatePerSec  float64 // query start rate; 0 = unlimited
}

// PrewarmFailure is one query that could not be answered.
type PrewarmFailure struct {
	Query string
	Err   error
}

// PrewarmReport summarizes a pre-warm run.
type PrewarmReport struct {
	Warmed   int
	Cached   int // already present before the run
	Degraded int // answered but not cacheable
	Failed   []PrewarmFailure
}

// Prewarm answers queries concurrently to fill the cache. Individual
// failures are collected, not returned; only ctx cancellation aborts.
func (s *Service) Prewarm(ctx context.Context, queries []string, opts PrewarmOptions) (PrewarmReport, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}

	var (
		mu     sync.Mutex
		report PrewarmReport
	)
	seen := make(map[string]bool, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, q := range queries {
		key := domain.NormalizeQuery(q)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		if _, ok := s.cache.Answers.Get(key); ok {
			report.Cached++
			continue
		}
		if err := limiter.Wait(gctx); err != nil {
			break
		}

		g.Go(func() error {
			ans, err := s.Answer(gctx, q)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed = append(report.Failed, PrewarmFailure{Query: q, Err: err})
			case ans.IsDegraded():
				report.Degraded++
			default:
				report.Warmed++
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}

	s.logger.Info("Cache pre-warm finished",
		zap.Int("warmed", report.Warmed),
		zap.Int("cached", report.Cached),
		zap.Int("degraded", report.Degraded),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}
