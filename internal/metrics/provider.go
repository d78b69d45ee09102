package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vntravel"

// Upstream model provider metrics, shared by embedding and generation calls.
var (
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Model provider calls by operation and outcome",
		},
		[]string{"operation", "provider", "model", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Model provider call latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"operation", "provider", "model"},
	)

	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_tokens_total",
			Help:      "Tokens reported by the model provider",
		},
		[]string{"operation", "provider", "model", "type"},
	)
)

// Provider operations.
const (
	OpEmbed    = "embed"
	OpGenerate = "generate"
)

// Provider call outcomes.
const (
	StatusOK    = "ok"
	StatusError = "error"
	StatusEmpty = "empty"
)

// ProviderCall labels one upstream model call.
type ProviderCall struct {
	Operation string
	Provider  string
	Model     string
}

// Done records the outcome and latency of the call.
func (c ProviderCall) Done(status string, d time.Duration) {
	ProviderRequestsTotal.WithLabelValues(c.Operation, c.Provider, c.Model, status).Inc()
	ProviderRequestDuration.WithLabelValues(c.Operation, c.Provider, c.Model).Observe(d.Seconds())
}

// Tokens adds n tokens of the given kind. Zero is skipped.
func (c ProviderCall) Tokens(kind string, n int) {
	if n > 0 {
		ProviderTokensTotal.WithLabelValues(c.Operation, c.Provider, c.Model, kind).Add(float64(n))
	}
}

var providerOnce sync.Once

// RegisterProviderMetrics registers model provider metrics. Safe to call more than once.
func RegisterProviderMetrics() {
	providerOnce.Do(func() {
		prometheus.MustRegister(ProviderRequestsTotal)
		prometheus.MustRegister(ProviderRequestDuration)
		prometheus.MustRegister(ProviderTokensTotal)
	})
}
