package domain

import (
	"context"
	"time"
)

// DegradedMarker records a pipeline stage that fell back instead of failing.
type DegradedMarker string

const (
	// DegradedVector means embedding or vector search failed; no semantic context.
	DegradedVector DegradedMarker = "vector_search_failed"
	// DegradedGraph means graph search failed; no graph context.
	DegradedGraph DegradedMarker = "graph_search_failed"
	// DegradedNoContext means generation ran without any retrieved context.
	DegradedNoContext DegradedMarker = "no_context"
)

// Prompt is the assembled generation request.
type Prompt struct {
	System string
	User   string
}

// GenerationResult is the provider output.
type GenerationResult struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Generator is the text-generation capability.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (GenerationResult, error)
}

// GeneratedAnswer is the result of one pipeline run.
type GeneratedAnswer struct {
	ID              string
	Query           string
	NormalizedQuery string
	Text            string
	Model           string
	Context         FusedContext
	Locations       []string
	Degraded        []DegradedMarker
	VectorCount     int
	GraphCount      int
	TopScore        float64
	Summary         string
	Attempts        int
	Duration        time.Duration
	CreatedAt       time.Time
}

// IsDegraded reports whether any stage fell back.
func (a *GeneratedAnswer) IsDegraded() bool { return len(a.Degraded) > 0 }

// HasMarker reports whether m was recorded.
func (a *GeneratedAnswer) HasMarker(m DegradedMarker) bool {
	for _, d := range a.Degraded {
		if d == m {
			return true
		}
	}
	return false
}
