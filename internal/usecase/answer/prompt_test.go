package answer

import (
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/vntravel/internal/domain"
)

func TestBuildPrompt_Sections(t *testing.T) {
	fc := domain.FusedContext{MaxItems: 10, Items: []domain.ContextItem{
		{
			ID: "attr_old_quarter", Provenance: domain.ProvenanceBoth, Score: 0.912,
			Name: "Old Quarter", Type: "Attraction", Location: "Hanoi",
			Attributes: domain.Metadata{"city": "Hanoi", "tags": []any{"culture", "food"}},
		},
		{
			ID: "hotel_metropole", Provenance: domain.ProvenanceGraph,
			Name: "Sofitel Metropole", Type: "Hotel", Location: "Hanoi", Description: "Colonial hotel",
			Related: []domain.Relation{{Name: "Hanoi", Type: "City"}},
		},
	}}

	p := BuildPrompt("  Best activities in Hanoi ", fc)
	if p.System != SystemPrompt {
		t.Error("expected travel system prompt")
	}
	for _, want := range []string{
		"User Query: Best activities in Hanoi",
		semanticHeader,
		"1. Old Quarter (Relevance: 0.912)",
		"City: Hanoi",
		"Tags: culture, food",
		"Description: N/A",
		graphHeader,
		"1. Sofitel Metropole (Hotel)",
		"Connected to: Hanoi (City)",
	} {
		if !strings.Contains(p.User, want) {
			t.Errorf("prompt missing %q:\n%s", want, p.User)
		}
	}
	if strings.Contains(p.User, NoContextNote) {
		t.Error("no-context note must only appear for empty context")
	}
	if strings.Index(p.User, semanticHeader) > strings.Index(p.User, graphHeader) {
		t.Error("semantic section must precede graph section")
	}
}

func TestBuildPrompt_NoContext(t *testing.T) {
	p := BuildPrompt("anything", domain.FusedContext{MaxItems: 5})
	if !strings.Contains(p.User, NoContextNote) {
		t.Fatalf("expected no-context note, got %q", p.User)
	}
	if strings.Contains(p.User, semanticHeader) || strings.Contains(p.User, graphHeader) {
		t.Error("empty context must not render section headers")
	}
}

func TestConnectionsCapped(t *testing.T) {
	var rels []domain.Relation
	for _, n := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		rels = append(rels, domain.Relation{Name: n, Type: "X"})
	}
	out := RenderContext(domain.FusedContext{Items: []domain.ContextItem{{ID: "n", Provenance: domain.ProvenanceGraph, Name: "n", Related: rels}}})
	if strings.Contains(out, "f (X)") || !strings.Contains(out, "e (X)") {
		t.Errorf("expected 5 connections, got %q", out)
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize(nil); got != "no semantic matches" {
		t.Errorf("unexpected empty summary %q", got)
	}
	matches := []domain.VectorMatch{
		{ID: "a", Score: 0.9, Metadata: domain.Metadata{"name": "Hoan Kiem Lake", "type": "Attraction", "city": "Hanoi"}},
		{ID: "b", Score: 0.8},
		{ID: "c", Score: 0.7},
		{ID: "d", Score: 0.6},
	}
	got := Summarize(matches)
	if !strings.HasPrefix(got, "top 3 of 4: Hoan Kiem Lake [Attraction] in Hanoi (0.90)") {
		t.Errorf("unexpected summary %q", got)
	}
	if strings.Contains(got, "d (") {
		t.Error("summary must stop at three results")
	}
}

func TestFooter(t *testing.T) {
	a := &domain.GeneratedAnswer{VectorCount: 5, GraphCount: 12, Duration: time.Second}
	want := "Answer generated using 5 semantic matches and 12 graph connections."
	if got := Footer(a); got != want {
		t.Errorf("Footer() = %q, want %q", got, want)
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := p.delay(i + 1); got != w {
			t.Errorf("delay(%d) = %v, want %v", i+1, got, w)
		}
	}

	n := RetryPolicy{}.normalized()
	if n.MaxAttempts != 1 || n.Multiplier != 2 {
		t.Errorf("unexpected normalization: %+v", n)
	}
}
