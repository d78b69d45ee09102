package answer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/vntravel/internal/cache"
	"github.com/kailas-cloud/vntravel/internal/domain"
)

// --- Mocks ---

type mockEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}, nil
}

type mockVector struct {
	mu      sync.Mutex
	calls   int
	matches []domain.VectorMatch
	err     error
}

func (m *mockVector) Search(_ context.Context, _ []float32, topK int) ([]domain.VectorMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.matches) > topK {
		return m.matches[:topK], nil
	}
	return m.matches, nil
}

type mockLocations struct {
	mu         sync.Mutex
	gotMatches []domain.VectorMatch
}

func (m *mockLocations) Extract(query string, matches []domain.VectorMatch) domain.LocationSet {
	m.mu.Lock()
	m.gotMatches = matches
	m.mu.Unlock()
	set := domain.NewLocationSet()
	if strings.Contains(strings.ToLower(query), "hanoi") {
		set.Add("Hanoi")
	}
	for _, mt := range matches {
		if loc, ok := mt.Location(); ok {
			set.Add(loc)
		}
	}
	if set.IsEmpty() {
		set.Add("Vietnam")
	}
	return set
}

type mockGraph struct {
	mu     sync.Mutex
	calls  int
	nodes  []domain.GraphNode
	err    error
	block  bool
	gotMax int
}

func (m *mockGraph) Search(ctx context.Context, _ domain.LocationSet, maxNodes int) ([]domain.GraphNode, error) {
	m.mu.Lock()
	m.calls++
	m.gotMax = maxNodes
	block, nodes, err := m.block, m.nodes, m.err
	m.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if len(nodes) > maxNodes {
		return nodes[:maxNodes], nil
	}
	return nodes, nil
}

type mockGenerator struct {
	mu         sync.Mutex
	calls      int
	failFirst  int
	err        error
	lastPrompt domain.Prompt
}

func (m *mockGenerator) Generate(_ context.Context, p domain.Prompt) (domain.GenerationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastPrompt = p
	if m.err != nil || m.calls <= m.failFirst {
		err := m.err
		if err == nil {
			err = domain.ErrProvider
		}
		return domain.GenerationResult{}, err
	}
	return domain.GenerationResult{Text: "Visit the Old Quarter at dawn.", Model: "test-model"}, nil
}

type fixture struct {
	emb   *mockEmbedder
	vec   *mockVector
	locs  *mockLocations
	graph *mockGraph
	gen   *mockGenerator
	layer *cache.Layer
}

func newFixture() *fixture {
	return &fixture{
		emb: &mockEmbedder{},
		vec: &mockVector{matches: []domain.VectorMatch{
			{ID: "attr_old_quarter", Score: 0.91, Metadata: domain.Metadata{"name": "Old Quarter", "type": "Attraction", "city": "Hanoi"}},
			{ID: "attr_temple_literature", Score: 0.84, Metadata: domain.Metadata{"name": "Temple of Literature", "city": "Hanoi"}},
		}},
		locs: &mockLocations{},
		graph: &mockGraph{nodes: []domain.GraphNode{
			{ID: "city_hanoi", Name: "Hanoi", Type: "City", Location: "Hanoi", Primary: true, Anchor: "city_hanoi"},
			{ID: "attr_old_quarter", Name: "Old Quarter", Type: "Attraction", Location: "Hanoi", Primary: true, Anchor: "attr_old_quarter"},
			{ID: "hotel_metropole", Name: "Sofitel Metropole", Type: "Hotel", Location: "Hanoi", Anchor: "city_hanoi"},
		}},
		gen:   &mockGenerator{},
		layer: cache.NewLayer(),
	}
}

func (f *fixture) service(t *testing.T, cfg Config, m Metrics) *Service {
	t.Helper()
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	}
	svc, err := New(Deps{
		Embedder:  f.emb,
		Vector:    f.vec,
		Locations: f.locs,
		Graph:     f.graph,
		Generator: f.gen,
	}, f.layer, cfg, m, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

// --- Tests ---

func TestAnswer_EndToEndCached(t *testing.T) {
	f := newFixture()
	svc := f.service(t, Config{MaxNodes: 15, MaxItems: 20}, Metrics{})

	first, err := svc.Answer(context.Background(), "Best activities in Hanoi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Text == "" || first.IsDegraded() {
		t.Fatalf("expected clean answer, got %+v", first)
	}
	if len(first.Locations) != 1 || first.Locations[0] != "Hanoi" {
		t.Errorf("expected {Hanoi}, got %v", first.Locations)
	}
	if f.graph.gotMax != 15 {
		t.Errorf("expected maxNodes 15, got %d", f.graph.gotMax)
	}
	if first.Context.Len() > 20 {
		t.Errorf("context exceeds cap: %d", first.Context.Len())
	}
	if first.Context.Count(domain.ProvenanceBoth) != 1 {
		t.Errorf("expected old quarter merged, got %+v", first.Context.Items)
	}
	if first.VectorCount != 2 || first.GraphCount != 3 || first.TopScore != 0.91 || first.Attempts != 1 {
		t.Errorf("unexpected counts: %+v", first)
	}

	second, err := svc.Answer(context.Background(), "  best ACTIVITIES in   hanoi ")
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Fatal("expected cached answer to be the same object")
	}
	if f.emb.calls != 1 || f.vec.calls != 1 || f.graph.calls != 1 || f.gen.calls != 1 {
		t.Errorf("cache hit must not reach upstream: emb=%d vec=%d graph=%d gen=%d",
			f.emb.calls, f.vec.calls, f.graph.calls, f.gen.calls)
	}

	st := svc.Stats()
	if st.QueriesServed != 2 || st.CacheHits != 1 || st.CachedAnswers != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestAnswer_DegradedVectorUsesGraphOnly(t *testing.T) {
	f := newFixture()
	f.vec.err = domain.ErrRetrieval
	svc := f.service(t, Config{}, Metrics{})

	ans, err := svc.Answer(context.Background(), "Best activities in Hanoi")
	if err != nil {
		t.Fatalf("expected degraded answer, got error: %v", err)
	}
	if !ans.HasMarker(domain.DegradedVector) || ans.HasMarker(domain.DegradedGraph) {
		t.Errorf("unexpected markers: %v", ans.Degraded)
	}
	if ans.Context.IsEmpty() || ans.Context.Count(domain.ProvenanceGraph) != ans.Context.Len() {
		t.Errorf("expected graph-only context, got %+v", ans.Context.Items)
	}
	if f.locs.gotMatches != nil {
		t.Error("extractor must receive no vector matches after vector failure")
	}
	if _, ok := f.layer.Answers.Get("best activities in hanoi"); ok {
		t.Error("degraded answers must not be cached")
	}
}

func TestAnswer_EmbedFailureDegradesLikeVector(t *testing.T) {
	f := newFixture()
	f.emb.err = domain.ErrProvider
	svc := f.service(t, Config{}, Metrics{})

	ans, err := svc.Answer(context.Background(), "hanoi food")
	if err != nil {
		t.Fatal(err)
	}
	if !ans.HasMarker(domain.DegradedVector) {
		t.Errorf("expected vector marker, got %v", ans.Degraded)
	}
	if f.vec.calls != 0 {
		t.Error("vector search must be skipped when embedding fails")
	}
}

func TestAnswer_BothFailFallsBackToNoContext(t *testing.T) {
	f := newFixture()
	f.vec.err = errors.New("index down")
	f.graph.err = errors.New("graph down")
	degraded := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_degraded_total"}, []string{"marker"})
	svc := f.service(t, Config{}, Metrics{Degraded: degraded})

	ans, err := svc.Answer(context.Background(), "Plan a beach vacation")
	if err != nil {
		t.Fatalf("expected fallback answer, got %v", err)
	}
	for _, m := range []domain.DegradedMarker{domain.DegradedVector, domain.DegradedGraph, domain.DegradedNoContext} {
		if !ans.HasMarker(m) {
			t.Errorf("missing marker %s in %v", m, ans.Degraded)
		}
	}
	if !ans.Context.IsEmpty() {
		t.Error("expected empty context")
	}
	if !strings.Contains(f.gen.lastPrompt.User, NoContextNote) {
		t.Errorf("prompt must carry the no-context note: %q", f.gen.lastPrompt.User)
	}
	if got := testutil.ToFloat64(degraded.WithLabelValues(string(domain.DegradedNoContext))); got != 1 {
		t.Errorf("expected no_context counter 1, got %v", got)
	}
}

func TestAnswer_GraphTimeoutDegrades(t *testing.T) {
	f := newFixture()
	f.graph.block = true
	stages := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_stage_seconds"}, []string{"stage", "status"})
	svc := f.service(t, Config{Timeouts: Timeouts{Graph: 20 * time.Millisecond}}, Metrics{StageDuration: stages})

	ans, err := svc.Answer(context.Background(), "Best activities in Hanoi")
	if err != nil {
		t.Fatal(err)
	}
	if !ans.HasMarker(domain.DegradedGraph) {
		t.Errorf("expected graph marker after timeout, got %v", ans.Degraded)
	}
	if ans.Context.Count(domain.ProvenanceSemantic) != 2 {
		t.Errorf("expected semantic-only context, got %+v", ans.Context.Items)
	}
	if n := testutil.CollectAndCount(stages); n == 0 {
		t.Error("expected stage observations")
	}
}

func TestAnswer_GenerationRetriesExhausted(t *testing.T) {
	tests := []struct {
		name         string
		noRetrieval bool
		wantEmpty    bool
	}{
		{"context present", false, false},
		{"no context", true, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.gen.err = errors.New("503 service unavailable")
			if tc.noRetrieval {
				f.vec.err = errors.New("down")
				f.graph.err = errors.New("down")
			}
			svc := f.service(t, Config{}, Metrics{})

			_, err := svc.Answer(context.Background(), "Suggest a food tour in Hoi An")
			var genErr *domain.GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("expected GenerationError, got %v", err)
			}
			if genErr.Attempts != 3 || f.gen.calls != 3 {
				t.Errorf("expected 3 attempts, got %d (calls %d)", genErr.Attempts, f.gen.calls)
			}
			if genErr.ContextEmpty != tc.wantEmpty {
				t.Errorf("ContextEmpty = %v, want %v", genErr.ContextEmpty, tc.wantEmpty)
			}
			if !errors.Is(err, domain.ErrGeneration) {
				t.Error("expected ErrGeneration in chain")
			}
			if f.layer.Stats().Answers != 0 {
				t.Error("failed answers must not be cached")
			}
		})
	}
}

func TestAnswer_GenerationRetrySucceeds(t *testing.T) {
	f := newFixture()
	f.gen.failFirst = 2
	svc := f.service(t, Config{}, Metrics{})

	ans, err := svc.Answer(context.Background(), "Best activities in Hanoi")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", ans.Attempts)
	}
}

func TestAnswer_ConfigErrorsSurface(t *testing.T) {
	f := newFixture()
	f.emb.err = domain.NewDimensionMismatch(768, 3)
	svc := f.service(t, Config{}, Metrics{})

	if _, err := svc.Answer(context.Background(), "hanoi"); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch to surface, got %v", err)
	}
	if f.gen.calls != 0 {
		t.Error("generation must not run after a configuration error")
	}

	if _, err := svc.Answer(context.Background(), "   "); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for blank query, got %v", err)
	}
}

func TestAnswer_CacheMetrics(t *testing.T) {
	f := newFixture()
	cacheTotal := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_answer_cache_total"}, []string{"result"})
	svc := f.service(t, Config{}, Metrics{AnswerCache: cacheTotal})

	for range 3 {
		if _, err := svc.Answer(context.Background(), "Best activities in Hanoi"); err != nil {
			t.Fatal(err)
		}
	}
	if got := testutil.ToFloat64(cacheTotal.WithLabelValues("miss")); got != 1 {
		t.Errorf("expected 1 miss, got %v", got)
	}
	if got := testutil.ToFloat64(cacheTotal.WithLabelValues("hit")); got != 2 {
		t.Errorf("expected 2 hits, got %v", got)
	}
}

func TestClear_ForcesUpstream(t *testing.T) {
	f := newFixture()
	svc := f.service(t, Config{}, Metrics{})

	if _, err := svc.Answer(context.Background(), "hanoi"); err != nil {
		t.Fatal(err)
	}
	svc.Clear()
	if st := svc.Stats(); st.CachedAnswers != 0 || st.CachedEmbeddings != 0 {
		t.Fatalf("expected empty cache, got %+v", st)
	}
	if _, err := svc.Answer(context.Background(), "hanoi"); err != nil {
		t.Fatal(err)
	}
	if f.gen.calls != 2 {
		t.Errorf("expected generator to be called again after Clear, got %d", f.gen.calls)
	}
}

func TestNew_Validation(t *testing.T) {
	f := newFixture()
	if _, err := New(Deps{}, f.layer, Config{}, Metrics{}, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for missing deps, got %v", err)
	}
	deps := Deps{Embedder: f.emb, Vector: f.vec, Locations: f.locs, Graph: f.graph, Generator: f.gen}
	if _, err := New(deps, nil, Config{}, Metrics{}, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for missing cache, got %v", err)
	}
	if _, err := New(deps, f.layer, Config{TopK: -1}, Metrics{}, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for negative bound, got %v", err)
	}
	svc, err := New(deps, f.layer, Config{}, Metrics{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if svc.cfg.TopK != DefaultTopK || svc.cfg.MaxNodes != DefaultMaxNodes || svc.cfg.MaxItems != DefaultMaxItems {
		t.Errorf("defaults not applied: %+v", svc.cfg)
	}
}
