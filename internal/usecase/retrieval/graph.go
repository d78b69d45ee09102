package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vntravel/internal/domain"
)

// GraphRetriever expands location matches with their one-hop neighbourhood.
type GraphRetriever struct {
	repo   GraphRepository
	logger *zap.Logger
}

// NewGraphRetriever creates a graph retriever.
func NewGraphRetriever(repo GraphRepository, logger *zap.Logger) *GraphRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphRetriever{repo: repo, logger: logger}
}

// Search returns primary location matches first, then nodes one hop away from
// them, deduplicated, capped at maxNodes after that ordering.
func (r *GraphRetriever) Search(ctx context.Context, locations domain.LocationSet, maxNodes int) ([]domain.GraphNode, error) {
	if maxNodes <= 0 {
		return nil, domain.InvalidArgument("maxNodes must be positive, got %d", maxNodes)
	}
	if locations.IsEmpty() {
		return nil, domain.InvalidArgument("location set is empty")
	}

	primaries, err := r.repo.FindByLocations(ctx, locations.Names(), maxNodes)
	if err != nil {
		return nil, fmt.Errorf("graph search: %w: %w", domain.ErrRetrieval, err)
	}

	nodes := expand(primaries)
	if len(nodes) > maxNodes {
		nodes = nodes[:maxNodes]
	}

	r.logger.Debug("Graph search completed",
		zap.Strings("locations", locations.Names()),
		zap.Int("primaries", len(primaries)),
		zap.Int("returned", len(nodes)),
	)
	return nodes, nil
}

// expand lists primaries in retrieval order followed by their neighbours in
// primary order. A neighbour that is itself a primary is not repeated.
func expand(primaries []domain.GraphNode) []domain.GraphNode {
	seen := make(map[string]bool, len(primaries))
	out := make([]domain.GraphNode, 0, len(primaries)*2)

	for _, p := range primaries {
		if seen[p.Key()] {
			continue
		}
		seen[p.Key()] = true
		p.Primary = true
		if p.Anchor == "" {
			p.Anchor = p.ID
		}
		out = append(out, p)
	}

	n := len(out)
	for i := range n {
		p := out[i]
		for _, rel := range p.Related {
			nb := domain.GraphNode{
				ID:          rel.NodeID,
				Name:        rel.Name,
				Type:        rel.Type,
				Location:    rel.Location,
				Description: rel.Description,
				Anchor:      p.ID,
				Related: []domain.Relation{{
					NodeID:   p.ID,
					Label:    rel.Label,
					Name:     p.Name,
					Type:     p.Type,
					Location: p.Location,
				}},
			}
			if nb.Name == "" {
				nb.Name = nb.ID
			}
			if seen[nb.Key()] {
				continue
			}
			seen[nb.Key()] = true
			out = append(out, nb)
		}
	}
	return out
}
