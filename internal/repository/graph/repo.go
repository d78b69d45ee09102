// Package graph runs the location-filtered Cypher lookup and maps rows onto
// domain graph nodes.
package graph

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/vntravel/internal/db/falkordb"
	"github.com/kailas-cloud/vntravel/internal/domain"
)

// DefaultMaxRelated bounds the connection summaries returned per node.
const DefaultMaxRelated = 5

// locationQuery matches nodes whose location is in $locations or whose name
// contains one of them, and aggregates one-hop neighbours with collect() so
// a dense node yields one row.
const locationQuery = `MATCH (n)
WHERE (n.location IN $locations OR ANY(loc IN $locations WHERE n.name CONTAINS loc))
  AND (size($types) = 0 OR labels(n)[0] IN $types)
OPTIONAL MATCH (n)-[r]-(m)
WITH n, collect(CASE WHEN m IS NULL THEN NULL ELSE {rel: type(r), id: m.id, name: m.name, type: labels(m)[0], location: m.location, description: m.description} END) AS conns
RETURN n.id AS id, n.name AS name, labels(n)[0] AS type, n.location AS location, n.description AS description, properties(n) AS attributes, conns[0..$max_related] AS connections
ORDER BY id, name
LIMIT $limit`

// querier is the consumer interface for Cypher execution (ISP).
type querier interface {
	Query(ctx context.Context, cypher string, params map[string]any) (*falkordb.Result, error)
}

// Config tunes the lookup.
type Config struct {
	MaxRelated int
	NodeTypes  []string
}

// Repo implements usecase/retrieval.GraphRepository.
type Repo struct {
	store      querier
	maxRelated int
	nodeTypes  []string
}

// New creates a graph repository.
func New(q querier, cfg Config) *Repo {
	maxRelated := cfg.MaxRelated
	if maxRelated <= 0 {
		maxRelated = DefaultMaxRelated
	}
	types := cfg.NodeTypes
	if types == nil {
		types = []string{}
	}
	return &Repo{store: q, maxRelated: maxRelated, nodeTypes: types}
}

// FindByLocations returns up to limit nodes matching locations, each with its
// connection summaries. Returned nodes are primaries.
func (r *Repo) FindByLocations(ctx context.Context, locations []string, limit int) ([]domain.GraphNode, error) {
	res, err := r.store.Query(ctx, locationQuery, map[string]any{
		"locations":   locations,
		"types":       r.nodeTypes,
		"max_related": r.maxRelated,
		"limit":       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("find by locations: %w", err)
	}
	return rowsToNodes(res), nil
}

func rowsToNodes(res *falkordb.Result) []domain.GraphNode {
	if res == nil || len(res.Rows) == 0 {
		return nil
	}
	col := columns{
		id:    res.Column("id"),
		name:  res.Column("name"),
		typ:   res.Column("type"),
		loc:   res.Column("location"),
		desc:  res.Column("description"),
		attrs: res.Column("attributes"),
		conns: res.Column("connections"),
	}

	nodes := make([]domain.GraphNode, 0, len(res.Rows))
	for _, row := range res.Rows {
		n := domain.GraphNode{
			ID:          col.str(row, col.id),
			Name:        col.str(row, col.name),
			Type:        col.str(row, col.typ),
			Location:    col.str(row, col.loc),
			Description: col.str(row, col.desc),
			Primary:     true,
		}
		if n.ID == "" {
			n.ID = n.Name
		}
		if n.ID == "" {
			continue
		}
		n.Anchor = n.ID
		if m, ok := col.value(row, col.attrs).(map[string]any); ok {
			n.Attributes = domain.Metadata(m)
		}
		n.Related = relations(col.value(row, col.conns))
		nodes = append(nodes, n)
	}
	return nodes
}

type columns struct {
	id, name, typ, loc, desc, attrs, conns int
}

func (columns) value(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

func (c columns) str(row []any, i int) string {
	s, _ := domain.Metadata{"v": c.value(row, i)}.String("v")
	return s
}

func relations(v any) []domain.Relation {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]domain.Relation, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		meta := domain.Metadata(m)
		rel := domain.Relation{
			NodeID:      meta.Get("id"),
			Label:       meta.Get("rel"),
			Name:        meta.Get("name"),
			Type:        meta.Get("type"),
			Location:    meta.Get("location"),
			Description: meta.Get("description"),
		}
		if rel.NodeID == "" {
			rel.NodeID = rel.Name
		}
		if rel.NodeID == "" {
			continue
		}
		out = append(out, rel)
	}
	return out
}
