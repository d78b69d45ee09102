package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName string
	Vector    []float32
	K         int
	// ReturnFields limits returned metadata; empty means all fields.
	ReturnFields    []string
	IncludeMetadata bool
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit. Score is a similarity (higher is closer),
// not yet clamped. Fields holds raw metadata scalars as returned by the driver.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]any
}
