package answer

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vntravel/internal/domain"
)

// RetryPolicy bounds generation retries with exponential backoff.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultRetryPolicy returns 3 attempts starting at 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	return p
}

// delay returns the wait before the given retry (1-based).
func (p RetryPolicy) delay(retry int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(retry-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter && d > 0 {
		// ±25%
		d += (rand.Float64()*2 - 1) * d * 0.25
	}
	return time.Duration(d)
}

// generateWithRetry calls gen until it succeeds, attempts run out or ctx ends.
// Each attempt gets its own timeout. Returns the attempts made.
func (s *Service) generateWithRetry(
	ctx context.Context, prompt domain.Prompt,
) (domain.GenerationResult, int, error) {
	policy := s.cfg.Retry.normalized()

	var lastErr error
	attempt := 0
	for attempt < policy.MaxAttempts {
		if attempt > 0 {
			wait := policy.delay(attempt)
			s.logger.Debug("Retrying generation",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", policy.MaxAttempts),
				zap.Duration("delay", wait),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return domain.GenerationResult{}, attempt, lastErr
			case <-time.After(wait):
			}
		}
		attempt++

		var res domain.GenerationResult
		err := s.stage(ctx, stageGenerate, s.cfg.Timeouts.Generate, func(ctx context.Context) error {
			var genErr error
			res, genErr = s.gen.Generate(ctx, prompt)
			return genErr
		})
		if err == nil {
			return res, attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	s.logger.Warn("Generation retries exhausted",
		zap.Int("attempts", attempt),
		zap.Error(lastErr),
	)
	return domain.GenerationResult{}, attempt, lastErr
}
