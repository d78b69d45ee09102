package answer

import (
	"context"

	"github.com/kailas-cloud/vntravel/internal/domain"
)

// VectorSearcher finds nearest neighbours for a query embedding (ISP).
type VectorSearcher interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]domain.VectorMatch, error)
}

// GraphSearcher finds graph nodes for a set of locations (ISP).
type GraphSearcher interface {
	Search(ctx context.Context, locations domain.LocationSet, maxNodes int) ([]domain.GraphNode, error)
}

// LocationExtractor derives the location set for a query (ISP).
type LocationExtractor interface {
	Extract(query string, matches []domain.VectorMatch) domain.LocationSet
}
