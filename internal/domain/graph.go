package domain

// Relation is a one-hop connection summary.
type Relation struct {
	NodeID      string
	Label       string
	Name        string
	Type        string
	Location    string
	Description string
}

// GraphNode is a node returned by the graph retriever.
//
// Primary nodes matched the location filter directly. Enrichment nodes were
// reached one hop away from a primary; Anchor names that primary. For a
// primary node Anchor is its own ID.
type GraphNode struct {
	ID          string
	Name        string
	Type        string
	Location    string
	Description string
	Attributes  Metadata
	Related     []Relation
	Anchor      string
	Primary     bool
}

// Key is the normalized identity used for dedup across sources.
func (n GraphNode) Key() string {
	if n.ID != "" {
		return NormalizeName(n.ID)
	}
	return NormalizeName(n.Name)
}
