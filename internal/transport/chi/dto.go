package chi

import (
	"time"

	"github.com/kailas-cloud/vntravel/internal/domain"
	answeruc "github.com/kailas-cloud/vntravel/internal/usecase/answer"
)

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest            ErrorCode = "bad_request"
	CodeValidationFailed      ErrorCode = "validation_failed"
	CodeDimensionMismatch     ErrorCode = "embedding_dimension_mismatch"
	CodeProviderError         ErrorCode = "provider_error"
	CodeRetrievalError        ErrorCode = "retrieval_error"
	CodeGenerationUnavailable ErrorCode = "generation_unavailable"
	CodeNoContext             ErrorCode = "no_context_generation_unavailable"
	CodeInternalError         ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Attempts int       `json:"attempts,omitempty"`
}

// AnswerRequest is the body of POST /v1/answers.
type AnswerRequest struct {
	Query string `json:"query"`
}

// ContextItemResponse is one fused context entry.
type ContextItemResponse struct {
	ID         string  `json:"id"`
	Provenance string  `json:"provenance"`
	Score      float64 `json:"score,omitempty"`
	Name       string  `json:"name"`
	Type       string  `json:"type,omitempty"`
	Location   string  `json:"location,omitempty"`
	Group      string  `json:"group,omitempty"`
}

// AnswerResponse is the body of a successful POST /v1/answers.
type AnswerResponse struct {
	ID          string                `json:"id"`
	Query       string                `json:"query"`
	Answer      string                `json:"answer"`
	Footer      string                `json:"footer"`
	Model       string                `json:"model,omitempty"`
	Locations   []string              `json:"locations"`
	Degraded    []string              `json:"degraded,omitempty"`
	VectorCount int                   `json:"vector_count"`
	GraphCount  int                   `json:"graph_count"`
	TopScore    float64               `json:"top_score"`
	Summary     string                `json:"summary,omitempty"`
	Attempts    int                   `json:"attempts"`
	DurationMs  int64                 `json:"duration_ms"`
	CreatedAt   time.Time             `json:"created_at"`
	Context     []ContextItemResponse `json:"context,omitempty"`
}

// PrewarmRequest is the body of POST /v1/prewarm.
type PrewarmRequest struct {
	Queries []string `json:"queries"`
}

// PrewarmFailureResponse is one failed pre-warm query.
type PrewarmFailureResponse struct {
	Query string `json:"query"`
	Error string `json:"error"`
}

// PrewarmResponse reports a pre-warm run.
type PrewarmResponse struct {
	Warmed   int                      `json:"warmed"`
	Cached   int                      `json:"cached"`
	Degraded int                      `json:"degraded"`
	Failed   []PrewarmFailureResponse `json:"failed"`
}

// StatsResponse is the body of GET /v1/stats.
type StatsResponse struct {
	CachedEmbeddings int    `json:"cached_embeddings"`
	CachedAnswers    int    `json:"cached_answers"`
	QueriesServed    int64  `json:"queries_served"`
	CacheHits        int64  `json:"cache_hits"`
	LastLatencyMs    int64  `json:"last_latency_ms"`
	AvgLatencyMs     int64  `json:"avg_latency_ms"`
	VectorIndex      string `json:"vector_index"`
	Graph            string `json:"graph"`
	Model            string `json:"model"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func answerToResponse(a *domain.GeneratedAnswer, withContext bool) AnswerResponse {
	resp := AnswerResponse{
		ID:          a.ID,
		Query:       a.Query,
		Answer:      a.Text,
		Footer:      answeruc.Footer(a),
		Model:       a.Model,
		Locations:   a.Locations,
		VectorCount: a.VectorCount,
		GraphCount:  a.GraphCount,
		TopScore:    a.TopScore,
		Summary:     a.Summary,
		Attempts:    a.Attempts,
		DurationMs:  a.Duration.Milliseconds(),
		CreatedAt:   a.CreatedAt.UTC(),
	}
	if resp.Locations == nil {
		resp.Locations = []string{}
	}
	for _, d := range a.Degraded {
		resp.Degraded = append(resp.Degraded, string(d))
	}
	if withContext {
		resp.Context = make([]ContextItemResponse, len(a.Context.Items))
		for i, it := range a.Context.Items {
			resp.Context[i] = ContextItemResponse{
				ID:         it.ID,
				Provenance: string(it.Provenance),
				Score:      it.Score,
				Name:       it.Name,
				Type:       it.Type,
				Location:   it.Location,
				Group:      it.Group,
			}
		}
	}
	return resp
}

func prewarmToResponse(r answeruc.PrewarmReport) PrewarmResponse {
	resp := PrewarmResponse{
		Warmed:   r.Warmed,
		Cached:   r.Cached,
		Degraded: r.Degraded,
		Failed:   make([]PrewarmFailureResponse, len(r.Failed)),
	}
	for i, f := range r.Failed {
		resp.Failed[i] = PrewarmFailureResponse{Query: f.Query, Error: safeDomainMessage(f.Err)}
	}
	return resp
}

func statsToResponse(s answeruc.Stats) StatsResponse {
	return StatsResponse{
		CachedEmbeddings: s.CachedEmbeddings,
		CachedAnswers:    s.CachedAnswers,
		QueriesServed:    s.QueriesServed,
		CacheHits:        s.CacheHits,
		LastLatencyMs:    s.LastLatency.Milliseconds(),
		AvgLatencyMs:     s.AvgLatency.Milliseconds(),
		VectorIndex:      s.Info.VectorIndex,
		Graph:            s.Info.Graph,
		Model:            s.Info.Model,
	}
}
