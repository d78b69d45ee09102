// Package chi exposes the answer pipeline over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vntravel/internal/domain"
	logpkg "github.com/kailas-cloud/vntravel/internal/logger"
	"github.com/kailas-cloud/vntravel/internal/metrics"
	answeruc "github.com/kailas-cloud/vntravel/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/vntravel/internal/usecase/health"
)

const (
	maxQueryLength   = 2000
	maxPrewarmBatch  = 100
	maxRequestBodyKB = 256
)

// AnswerService is the pipeline surface used by handlers (ISP).
type AnswerService interface {
	Answer(ctx context.Context, query string) (*domain.GeneratedAnswer, error)
	Prewarm(ctx context.Context, queries []string, opts answeruc.PrewarmOptions) (answeruc.PrewarmReport, error)
	Stats() answeruc.Stats
	Clear()
}

// HealthChecker aggregates component health (ISP).
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds HTTP handlers.
type Server struct {
	answers       AnswerService
	health        HealthChecker
	prewarm       answeruc.PrewarmOptions
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. prewarm holds defaults that query
// parameters may override.
func NewServer(answers AnswerService, health HealthChecker, prewarm answeruc.PrewarmOptions, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		answers: answers,
		health:  health,
		prewarm: prewarm,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		generationErrorHandler,
		sentinelHandler(domain.ErrInvalidArgument, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusInternalServerError, CodeDimensionMismatch),
		sentinelHandler(domain.ErrRetrieval, http.StatusBadGateway, CodeRetrievalError),
		sentinelHandler(domain.ErrProvider, http.StatusBadGateway, CodeProviderError),
	}
	return s
}

// Router builds the chi router with the middleware chain and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())
	r.Use(chiMiddleware.RequestSize(maxRequestBodyKB << 10))

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/answers", s.CreateAnswer)
		r.Post("/prewarm", s.Prewarm)
		r.Get("/stats", s.GetStats)
		r.Delete("/cache", s.ClearCache)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// CreateAnswer handles POST /v1/answers[?include_context=true].
func (s *Server) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	var includeContext *bool
	if err := runtime.BindQueryParameter("form", true, false, "include_context", r.URL.Query(), &includeContext); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid format for parameter include_context")
		return
	}

	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query is required")
		return
	}
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("query exceeds %d bytes", maxQueryLength))
		return
	}

	ans, err := s.answers.Answer(r.Context(), query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if ans.IsDegraded() {
		w.Header().Set("X-Degraded", joinMarkers(ans.Degraded))
	}
	writeJSON(w, http.StatusOK, answerToResponse(ans, includeContext != nil && *includeContext))
}

// Prewarm handles POST /v1/prewarm[?concurrency=N&rate=R].
func (s *Server) Prewarm(w http.ResponseWriter, r *http.Request) {
	opts := s.prewarm

	var concurrency *int
	if err := runtime.BindQueryParameter("form", true, false, "concurrency", r.URL.Query(), &concurrency); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid format for parameter concurrency")
		return
	}
	var ratePerSec *float64
	if err := runtime.BindQueryParameter("form", true, false, "rate", r.URL.Query(), &ratePerSec); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid format for parameter rate")
		return
	}
	if concurrency != nil {
		if *concurrency <= 0 {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "concurrency must be positive")
			return
		}
		opts.Concurrency = *concurrency
	}
	if ratePerSec != nil {
		if *ratePerSec < 0 {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "rate must not be negative")
			return
		}
		opts.RatePerSec = *ratePerSec
	}

	var req PrewarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Queries) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "queries must not be empty")
		return
	}
	if len(req.Queries) > maxPrewarmBatch {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("at most %d queries per request", maxPrewarmBatch))
		return
	}

	report, err := s.answers.Prewarm(r.Context(), req.Queries, opts)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prewarmToResponse(report))
}

// GetStats handles GET /v1/stats.
func (s *Server) GetStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statsToResponse(s.answers.Stats()))
}

// ClearCache handles DELETE /v1/cache.
func (s *Server) ClearCache(w http.ResponseWriter, _ *http.Request) {
	s.answers.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	// Degraded still answers on fallback paths.
	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func joinMarkers(markers []domain.DegradedMarker) string {
	parts := make([]string, len(markers))
	for i, m := range markers {
		parts[i] = string(m)
	}
	return strings.Join(parts, ",")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) {
		// The message carries only the reason and attempt count.
		return (&domain.GenerationError{Attempts: genErr.Attempts, ContextEmpty: genErr.ContextEmpty}).Error()
	}
	sentinels := []error{
		domain.ErrInvalidArgument,
		domain.ErrDimensionMismatch,
		domain.ErrRetrieval,
		domain.ErrProvider,
		context.DeadlineExceeded,
		context.Canceled,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// generationErrorHandler maps exhausted generation retries to 503 and tells
// an empty-context failure apart from a plain outage.
func generationErrorHandler(w http.ResponseWriter, err error, msg string) bool {
	var genErr *domain.GenerationError
	if !errors.As(err, &genErr) {
		return false
	}
	code := CodeGenerationUnavailable
	if genErr.ContextEmpty {
		code = CodeNoContext
	}
	writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
		Code:     code,
		Message:  msg,
		Attempts: genErr.Attempts,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
