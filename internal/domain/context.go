package domain

// Provenance tags where a context item came from.
type Provenance string

const (
	// ProvenanceSemantic marks an item found only by vector search.
	ProvenanceSemantic Provenance = "semantic"
	// ProvenanceGraph marks an item found only by graph search.
	ProvenanceGraph Provenance = "graph"
	// ProvenanceBoth marks an item both sources agree on.
	ProvenanceBoth Provenance = "semantic+graph"
)

// ContextItem is one entry of the fused context.
type ContextItem struct {
	ID          string
	Provenance  Provenance
	Score       float64
	Name        string
	Type        string
	Location    string
	Description string
	Attributes  Metadata
	Related     []Relation
	// Group is the anchor a graph-only item enriches; empty otherwise.
	Group string
}

// HasSemantic reports whether vector search contributed to the item.
func (c ContextItem) HasSemantic() bool {
	return c.Provenance == ProvenanceSemantic || c.Provenance == ProvenanceBoth
}

// FusedContext is the bounded, deduplicated, ranked context bundle.
type FusedContext struct {
	Items    []ContextItem
	MaxItems int
}

// Len returns the number of items.
func (f FusedContext) Len() int { return len(f.Items) }

// IsEmpty reports whether no context was retrieved.
func (f FusedContext) IsEmpty() bool { return len(f.Items) == 0 }

// Count returns how many items carry the given provenance.
func (f FusedContext) Count(p Provenance) int {
	n := 0
	for _, it := range f.Items {
		if it.Provenance == p {
			n++
		}
	}
	return n
}
