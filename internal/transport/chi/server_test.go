package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vntravel/internal/domain"
	answeruc "github.com/kailas-cloud/vntravel/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/vntravel/internal/usecase/health"
)

// --- Mocks ---

type mockAnswers struct {
	answer      *domain.GeneratedAnswer
	err         error
	gotQuery    string
	report      answeruc.PrewarmReport
	prewarmErr  error
	gotQueries  []string
	gotOpts     answeruc.PrewarmOptions
	stats       answeruc.Stats
	clearCalled bool
}

func (m *mockAnswers) Answer(_ context.Context, q string) (*domain.GeneratedAnswer, error) {
	m.gotQuery = q
	return m.answer, m.err
}

func (m *mockAnswers) Prewarm(_ context.Context, qs []string, opts answeruc.PrewarmOptions) (answeruc.PrewarmReport, error) {
	m.gotQueries, m.gotOpts = qs, opts
	return m.report, m.prewarmErr
}

func (m *mockAnswers) Stats() answeruc.Stats { return m.stats }
func (m *mockAnswers) Clear() { m.clearCalled = true }

type mockHealth struct{ report healthuc.Report }

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

func sampleAnswer() *domain.GeneratedAnswer {
	return &domain.GeneratedAnswer{
		ID:          "ans-1",
		Query:       "Best activities in Hanoi",
		Text:        "Walk the Old Quarter.",
		Model:       "gpt-4o-mini",
		Locations:   []string{"Hanoi"},
		VectorCount: 5,
		GraphCount:  12,
		TopScore:    0.91,
		Attempts:    1,
		Duration:    1500 * time.Millisecond,
		Context: domain.FusedContext{MaxItems: 20, Items: []domain.ContextItem{
			{ID: "attr_old_quarter", Provenance: domain.ProvenanceBoth, Score: 0.91, Name: "Old Quarter"},
		}},
	}
}

func newTestServer(a *mockAnswers, h *mockHealth) http.Handler {
	if h == nil {
		h = &mockHealth{}
	}
	return NewServer(a, h, answeruc.PrewarmOptions{Concurrency: 2, RatePerSec: 1}, nil).Router()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- Tests ---

func TestCreateAnswer_OK(t *testing.T) {
	a := &mockAnswers{answer: sampleAnswer()}
	rr := do(t, newTestServer(a, nil), http.MethodPost, "/v1/answers", `{"query":"  Best activities in Hanoi "}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if a.gotQuery != "Best activities in Hanoi" {
		t.Errorf("expected trimmed query, got %q", a.gotQuery)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	var resp AnswerResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "Walk the Old Quarter." || resp.DurationMs != 1500 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Footer != "Answer generated using 5 semantic matches and 12 graph connections." {
		t.Errorf("unexpected footer %q", resp.Footer)
	}
	if resp.Context != nil {
		t.Error("context must be omitted unless requested")
	}
}

func TestCreateAnswer_IncludeContext(t *testing.T) {
	a := &mockAnswers{answer: sampleAnswer()}
	h := newTestServer(a, nil)

	rr := do(t, h, http.MethodPost, "/v1/answers?include_context=true", `{"query":"hanoi"}`)
	var resp AnswerResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Context) != 1 || resp.Context[0].Provenance != "semantic+graph" {
		t.Errorf("expected context in response, got %+v", resp.Context)
	}

	rr = do(t, h, http.MethodPost, "/v1/answers?include_context=maybe", `{"query":"hanoi"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad bool, got %d", rr.Code)
	}
}

func TestCreateAnswer_Degraded(t *testing.T) {
	ans := sampleAnswer()
	ans.Degraded = []domain.DegradedMarker{domain.DegradedVector, domain.DegradedGraph}
	rr := do(t, newTestServer(&mockAnswers{answer: ans}, nil), http.MethodPost, "/v1/answers", `{"query":"hanoi"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("degraded answers are still 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-Degraded"); got != "vector_search_failed,graph_search_failed" {
		t.Errorf("unexpected X-Degraded %q", got)
	}
}

func TestCreateAnswer_Validation(t *testing.T) {
	h := newTestServer(&mockAnswers{answer: sampleAnswer()}, nil)
	tests := []struct {
		name string
		body string
		code ErrorCode
	}{
		{"malformed", `{"query":`, CodeBadRequest},
		{"blank", `{"query":"   "}`, CodeValidationFailed},
		{"too long", `{"query":"` + strings.Repeat("a", maxQueryLength+1) + `"}`, CodeValidationFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/v1/answers", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			if got := decodeError(t, rr).Code; got != tc.code {
				t.Errorf("code = %s, want %s", got, tc.code)
			}
		})
	}
}

func TestCreateAnswer_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"generation outage", &domain.GenerationError{Attempts: 3, Err: errors.New("secret upstream body")},
			http.StatusServiceUnavailable, CodeGenerationUnavailable},
		{"no context", &domain.GenerationError{Attempts: 3, ContextEmpty: true, Err: domain.ErrProvider},
			http.StatusServiceUnavailable, CodeNoContext},
		{"invalid", domain.InvalidArgument("bad"), http.StatusBadRequest, CodeValidationFailed},
		{"dimension", domain.NewDimensionMismatch(768, 3), http.StatusInternalServerError, CodeDimensionMismatch},
		{"provider", domain.ErrProvider, http.StatusBadGateway, CodeProviderError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternalError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, newTestServer(&mockAnswers{err: tc.err}, nil), http.MethodPost, "/v1/answers", `{"query":"hanoi"}`)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}
			resp := decodeError(t, rr)
			if resp.Code != tc.code {
				t.Errorf("code = %s, want %s", resp.Code, tc.code)
			}
			if strings.Contains(resp.Message, "secret") {
				t.Errorf("internal detail leaked: %q", resp.Message)
			}
		})
	}
}

func TestCreateAnswer_NoContextMessage(t *testing.T) {
	err := &domain.GenerationError{Attempts: 3, ContextEmpty: true, Err: domain.ErrProvider}
	rr := do(t, newTestServer(&mockAnswers{err: err}, nil), http.MethodPost, "/v1/answers", `{"query":"x"}`)
	resp := decodeError(t, rr)
	if !strings.Contains(resp.Message, "no context found") || resp.Attempts != 3 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestPrewarm(t *testing.T) {
	a := &mockAnswers{report: answeruc.PrewarmReport{
		Warmed: 1,
		Failed: []answeruc.PrewarmFailure{{Query: "hue", Err: &domain.GenerationError{Attempts: 3}}},
	}}
	h := newTestServer(a, nil)

	rr := do(t, h, http.MethodPost, "/v1/prewarm?concurrency=4&rate=2.5", `{"queries":["hanoi","hue"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if a.gotOpts.Concurrency != 4 || a.gotOpts.RatePerSec != 2.5 {
		t.Errorf("query params not applied: %+v", a.gotOpts)
	}
	var resp PrewarmResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Warmed != 1 || len(resp.Failed) != 1 || resp.Failed[0].Query != "hue" {
		t.Errorf("unexpected response %+v", resp)
	}

	do(t, h, http.MethodPost, "/v1/prewarm", `{"queries":["hanoi"]}`)
	if a.gotOpts.Concurrency != 2 || a.gotOpts.RatePerSec != 1 {
		t.Errorf("expected server defaults, got %+v", a.gotOpts)
	}
}

func TestPrewarm_Validation(t *testing.T) {
	h := newTestServer(&mockAnswers{}, nil)
	many := `{"queries":[` + strings.TrimSuffix(strings.Repeat(`"q",`, maxPrewarmBatch+1), ",") + `]}`
	for _, tc := range []struct{ target, body string }{
		{"/v1/prewarm", `{"queries":[]}`},
		{"/v1/prewarm", many},
		{"/v1/prewarm?concurrency=0", `{"queries":["a"]}`},
		{"/v1/prewarm?concurrency=abc", `{"queries":["a"]}`},
		{"/v1/prewarm?rate=-1", `{"queries":["a"]}`},
	} {
		if rr := do(t, h, http.MethodPost, tc.target, tc.body); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.target, rr.Code)
		}
	}
}

func TestStatsAndClear(t *testing.T) {
	a := &mockAnswers{stats: answeruc.Stats{
		CachedEmbeddings: 3, CachedAnswers: 2, QueriesServed: 5, CacheHits: 2,
		LastLatency: 250 * time.Millisecond, AvgLatency: time.Second,
		Info: answeruc.Info{VectorIndex: "vietnam-travel", Graph: "travel", Model: "gpt-4o-mini"},
	}}
	h := newTestServer(a, nil)

	rr := do(t, h, http.MethodGet, "/v1/stats", "")
	var resp StatsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.CachedEmbeddings != 3 || resp.LastLatencyMs != 250 || resp.AvgLatencyMs != 1000 || resp.Graph != "travel" {
		t.Errorf("unexpected stats %+v", resp)
	}

	rr = do(t, h, http.MethodDelete, "/v1/cache", "")
	if rr.Code != http.StatusNoContent || !a.clearCalled {
		t.Errorf("expected 204 and Clear call, got %d (%v)", rr.Code, a.clearCalled)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		h := &mockHealth{report: healthuc.Report{
			Status: tc.status,
			Checks: map[string]healthuc.CheckResult{healthuc.ComponentGraph: healthuc.CheckOK},
		}}
		rr := do(t, newTestServer(&mockAnswers{}, h), http.MethodGet, "/health", "")
		if rr.Code != tc.want {
			t.Errorf("%s: status %d, want %d", tc.status, rr.Code, tc.want)
		}
		var resp HealthResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Status != string(tc.status) || resp.Checks[healthuc.ComponentGraph] != "ok" {
			t.Errorf("unexpected body %+v", resp)
		}
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	h := newTestServer(&mockAnswers{}, nil)
	if rr := do(t, h, http.MethodGet, "/v1/nope", ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/v1/answers", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}

func TestJSONRecoverer(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	h := jsonRecoverer(zapNop())(panicky)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if decodeError(t, rr).Code != CodeInternalError {
		t.Error("expected internal_error code")
	}
}

func zapNop() *zap.Logger { return zap.NewNop() }
