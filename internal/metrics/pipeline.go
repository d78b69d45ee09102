package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Answer pipeline metrics: per-stage timing, degraded answers and the two
// cache namespaces.
var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each answer pipeline stage",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage", "status"},
	)

	DegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_degraded_total",
			Help:      "Answers produced with a degraded retrieval path",
		},
		[]string{"marker"},
	)

	AnswerCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_cache_total",
			Help:      "Query cache lookups",
		},
		[]string{"result"}, // hit, miss
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups",
		},
		[]string{"result"}, // hit, miss
	)
)

var pipelineOnce sync.Once

// RegisterPipelineMetrics registers pipeline and cache metrics. Safe to call more than once.
func RegisterPipelineMetrics() {
	pipelineOnce.Do(func() {
		prometheus.MustRegister(StageDuration)
		prometheus.MustRegister(DegradedTotal)
		prometheus.MustRegister(AnswerCacheTotal)
		prometheus.MustRegister(EmbeddingCacheTotal)
	})
}
