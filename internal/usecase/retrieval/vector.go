// Package retrieval wraps the vector and graph repositories with the
// ordering, bounding and error classification the answer pipeline relies on.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vntravel/internal/domain"
)

// VectorRetriever returns normalized, deterministically ordered matches.
type VectorRetriever struct {
	repo   VectorRepository
	logger *zap.Logger
}

// NewVectorRetriever creates a vector retriever.
func NewVectorRetriever(repo VectorRepository, logger *zap.Logger) *VectorRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorRetriever{repo: repo, logger: logger}
}

// Search returns at most topK matches sorted by score descending, ties by ID
// ascending. Scores are clamped into [0,1].
func (r *VectorRetriever) Search(ctx context.Context, embedding []float32, topK int) ([]domain.VectorMatch, error) {
	if topK <= 0 {
		return nil, domain.InvalidArgument("topK must be positive, got %d", topK)
	}
	if len(embedding) == 0 {
		return nil, domain.InvalidArgument("embedding is empty")
	}

	raw, err := r.repo.SearchKNN(ctx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w: %w", domain.ErrRetrieval, err)
	}

	matches := make([]domain.VectorMatch, 0, len(raw))
	for _, m := range raw {
		if m.ID == "" {
			continue
		}
		m.Score = domain.ClampScore(m.Score)
		matches = append(matches, m)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}

	r.logger.Debug("Vector search completed",
		zap.Int("top_k", topK),
		zap.Int("returned", len(raw)),
		zap.Int("kept", len(matches)),
	)
	return matches, nil
}
