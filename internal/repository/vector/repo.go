// Package vector maps raw vector-index hits onto domain matches.
package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/vntravel/internal/db"
	"github.com/kailas-cloud/vntravel/internal/domain"
)

// idField is the metadata field holding the dataset identifier, when present.
const idField = "id"

// store is the consumer interface for KNN search (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Config names the index and the metadata to fetch.
type Config struct {
	Index string
	// KeyPrefix is stripped from document keys (e.g. "vntravel:place:").
	KeyPrefix    string
	ReturnFields []string
}

// Repo implements usecase/retrieval.VectorRepository.
type Repo struct {
	store store
	cfg   Config
}

// New creates a vector repository.
func New(s store, cfg Config) *Repo {
	return &Repo{store: s, cfg: cfg}
}

// Index returns the configured index name.
func (r *Repo) Index() string { return r.cfg.Index }

// SearchKNN returns up to topK raw matches in index order. Scores are not clamped here.
func (r *Repo) SearchKNN(ctx context.Context, vector []float32, topK int) ([]domain.VectorMatch, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:       r.cfg.Index,
		Vector:          vector,
		K:               topK,
		ReturnFields:    r.cfg.ReturnFields,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", r.cfg.Index, err)
	}
	if sr == nil {
		return nil, nil
	}

	matches := make([]domain.VectorMatch, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		meta := domain.Metadata(e.Fields)
		matches = append(matches, domain.VectorMatch{
			ID:       r.matchID(e.Key, meta),
			Score:    e.Score,
			Metadata: meta,
		})
	}
	return matches, nil
}

func (r *Repo) matchID(key string, meta domain.Metadata) string {
	if id, ok := meta.String(idField); ok {
		return id
	}
	return strings.TrimPrefix(key, r.cfg.KeyPrefix)
}
