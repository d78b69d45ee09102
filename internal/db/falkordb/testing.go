package falkordb

import "github.com/redis/rueidis"

// NewStoreForTest creates a Store with the provided rueidis client (test-only).
func NewStoreForTest(c rueidis.Client, graph string) *Store {
	return &Store{client: c, graph: graph}
}
