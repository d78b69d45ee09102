// Package fusion merges vector matches and graph nodes into one bounded,
// deduplicated, ranked context bundle.
package fusion

import (
	"sort"

	"github.com/kailas-cloud/vntravel/internal/domain"
)

// Fuse builds the fused context from vector and graph results.
//
// Order: items found by both sources (semantic score desc), then
// semantic-only items (score desc), then graph-only items grouped by the
// destination they enrich, groups ordered by where that destination first
// shows up in the semantic ranking. Groups with no semantic anchor go last
// in retrieval order. Truncation never splits a group unless the output
// would otherwise be empty.
func Fuse(matches []domain.VectorMatch, nodes []domain.GraphNode, maxItems int) (domain.FusedContext, error) {
	if maxItems <= 0 {
		return domain.FusedContext{}, domain.InvalidArgument("maxItems must be positive, got %d", maxItems)
	}

	semantic := semanticItems(matches)
	byID := make(map[string]int, len(semantic))
	byName := make(map[string]int, len(semantic))
	for i, it := range semantic {
		byID[domain.NormalizeName(it.ID)] = i
		if n := domain.NormalizeName(it.Name); n != "" {
			if _, ok := byName[n]; !ok {
				byName[n] = i
			}
		}
	}

	// Anchor lookup covers every retrieved node, merged or not.
	anchors := make(map[string]domain.GraphNode, len(nodes))
	var graphOnly []domain.ContextItem
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		key := n.Key()
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		anchors[key] = n

		idx, ok := byID[key]
		if !ok {
			idx, ok = byName[domain.NormalizeName(n.Name)]
		}
		if ok {
			mergeNode(&semantic[idx], n)
			continue
		}
		graphOnly = append(graphOnly, graphItem(n))
	}

	var both, semOnly []domain.ContextItem
	for _, it := range semantic {
		if it.Provenance == domain.ProvenanceBoth {
			both = append(both, it)
		} else {
			semOnly = append(semOnly, it)
		}
	}

	units := make([][]domain.ContextItem, 0, len(semantic)+len(graphOnly))
	for _, it := range both {
		units = append(units, []domain.ContextItem{it})
	}
	for _, it := range semOnly {
		units = append(units, []domain.ContextItem{it})
	}
	units = append(units, groupGraphItems(graphOnly, semantic, anchors)...)

	return domain.FusedContext{Items: fill(units, maxItems), MaxItems: maxItems}, nil
}

// semanticItems converts matches into items ranked by score desc, ID asc,
// keeping the first occurrence of each normalized ID.
func semanticItems(matches []domain.VectorMatch) []domain.ContextItem {
	ranked := make([]domain.VectorMatch, 0, len(matches))
	for _, m := range matches {
		if m.ID == "" {
			continue
		}
		m.Score = domain.ClampScore(m.Score)
		ranked = append(ranked, m)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})

	items := make([]domain.ContextItem, 0, len(ranked))
	seen := make(map[string]bool, len(ranked))
	for _, m := range ranked {
		key := domain.NormalizeName(m.ID)
		if seen[key] {
			continue
		}
		seen[key] = true
		loc, _ := m.Location()
		items = append(items, domain.ContextItem{
			ID:          m.ID,
			Provenance:  domain.ProvenanceSemantic,
			Score:       m.Score,
			Name:        m.Name(),
			Type:        m.Type(),
			Location:    loc,
			Description: m.Metadata.Get(domain.MetaDescription),
			Attributes:  m.Metadata.Clone(),
		})
	}
	return items
}

func graphItem(n domain.GraphNode) domain.ContextItem {
	name := n.Name
	if name == "" {
		name = n.ID
	}
	id := n.ID
	if id == "" {
		id = n.Name
	}
	return domain.ContextItem{
		ID:          id,
		Provenance:  domain.ProvenanceGraph,
		Name:        name,
		Type:        n.Type,
		Location:    n.Location,
		Description: n.Description,
		Attributes:  n.Attributes.Clone(),
		Related:     append([]domain.Relation(nil), n.Related...),
		Group:       anchorKey(n),
	}
}

// mergeNode folds graph fields into a semantic item. Semantic values win
// where both are set.
func mergeNode(it *domain.ContextItem, n domain.GraphNode) {
	it.Provenance = domain.ProvenanceBoth
	if it.Type == "" {
		it.Type = n.Type
	}
	if it.Location == "" {
		it.Location = n.Location
	}
	if it.Description == "" {
		it.Description = n.Description
	}
	it.Attributes = it.Attributes.Merge(n.Attributes)
	it.Related = appendRelations(it.Related, n.Related)
}

func appendRelations(dst, src []domain.Relation) []domain.Relation {
	seen := make(map[string]bool, len(dst)+len(src))
	for _, r := range dst {
		seen[r.Label+"|"+domain.NormalizeName(r.NodeID)] = true
	}
	for _, r := range src {
		k := r.Label + "|" + domain.NormalizeName(r.NodeID)
		if seen[k] {
			continue
		}
		seen[k] = true
		dst = append(dst, r)
	}
	return dst
}

func anchorKey(n domain.GraphNode) string {
	if n.Anchor != "" {
		return domain.NormalizeName(n.Anchor)
	}
	return n.Key()
}

type group struct {
	key   string
	rank  int // position in the semantic ranking; -1 for orphans
	first int // retrieval order of the first member
	items []domain.ContextItem
}

// groupGraphItems buckets graph-only items by anchor and orders the buckets.
func groupGraphItems(items, semantic []domain.ContextItem, anchors map[string]domain.GraphNode) [][]domain.ContextItem {
	if len(items) == 0 {
		return nil
	}

	byKey := make(map[string]*group)
	var groups []*group
	for i, it := range items {
		g, ok := byKey[it.Group]
		if !ok {
			g = &group{key: it.Group, rank: anchorRank(it.Group, semantic, anchors), first: i}
			byKey[it.Group] = g
			groups = append(groups, g)
		}
		if domain.NormalizeName(it.ID) == it.Group {
			// Anchor leads its group.
			g.items = append([]domain.ContextItem{it}, g.items...)
			continue
		}
		g.items = append(g.items, it)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		gi, gj := groups[i], groups[j]
		switch {
		case gi.rank < 0 && gj.rank < 0:
			return gi.first < gj.first
		case gi.rank < 0:
			return false
		case gj.rank < 0:
			return true
		case gi.rank != gj.rank:
			return gi.rank < gj.rank
		default:
			return gi.first < gj.first
		}
	})

	out := make([][]domain.ContextItem, len(groups))
	for i, g := range groups {
		out[i] = g.items
	}
	return out
}

// anchorRank returns the first semantic position naming the anchor by ID,
// name or location, or -1.
func anchorRank(key string, semantic []domain.ContextItem, anchors map[string]domain.GraphNode) int {
	targets := map[string]bool{key: true}
	if a, ok := anchors[key]; ok {
		for _, s := range []string{a.Name, a.Location} {
			if n := domain.NormalizeName(s); n != "" {
				targets[n] = true
			}
		}
	}
	for i, it := range semantic {
		if targets[domain.NormalizeName(it.ID)] ||
			targets[domain.NormalizeName(it.Name)] ||
			targets[domain.NormalizeName(it.Location)] {
			return i
		}
	}
	return -1
}

// fill appends whole units until one does not fit.
func fill(units [][]domain.ContextItem, maxItems int) []domain.ContextItem {
	out := make([]domain.ContextItem, 0, maxItems)
	for _, u := range units {
		if len(out)+len(u) <= maxItems {
			out = append(out, u...)
			continue
		}
		if len(out) == 0 {
			out = append(out, u[:maxItems]...)
		}
		break
	}
	return out
}
