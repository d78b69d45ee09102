package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates that some component failed; the pipeline still answers on fallback paths.
	Degraded Status = "degraded"
	// Unhealthy indicates every component failed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used in Report.Checks.
const (
	ComponentVector    = "vector_index"
	ComponentGraph     = "graph"
	ComponentEmbedding = "embedding"
)

const defaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	vector    Pinger
	graph     Pinger
	embedding ProviderChecker
	timeout   time.Duration
}

// New creates a Service. Any checker may be nil and is then skipped.
func New(vector, graph Pinger, embedding ProviderChecker) *Service {
	return &Service{vector: vector, graph: graph, embedding: embedding, timeout: defaultCheckTimeout}
}

// Check runs all component checks in parallel, each bounded by its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	type target struct {
		name string
		fn   func(context.Context) error
	}
	var targets []target
	if s.vector != nil {
		targets = append(targets, target{ComponentVector, s.vector.Ping})
	}
	if s.graph != nil {
		targets = append(targets, target{ComponentGraph, s.graph.Ping})
	}
	if s.embedding != nil {
		targets = append(targets, target{ComponentEmbedding, s.embedding.HealthCheck})
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult, len(targets))
	)
	for _, p := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := p.fn(cctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[p.name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	return Report{Status: aggregate(checks), Checks: checks}
}

func aggregate(checks map[string]CheckResult) Status {
	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}
	switch {
	case failed == 0:
		return Healthy
	case failed == len(checks):
		return Unhealthy
	default:
		return Degraded
	}
}
