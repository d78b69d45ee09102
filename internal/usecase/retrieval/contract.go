package retrieval

import (
	"context"

	"github.com/kailas-cloud/vntravel/internal/domain"
)

// VectorRepository runs raw KNN lookups.
type VectorRepository interface {
	SearchKNN(ctx context.Context, vector []float32, topK int) ([]domain.VectorMatch, error)
}

// GraphRepository finds primary nodes by location, with connection summaries.
type GraphRepository interface {
	FindByLocations(ctx context.Context, locations []string, limit int) ([]domain.GraphNode, error)
}
