// Package db defines the storage contracts the retrieval layer consumes and
// the error wrapping shared by every driver.
package db

import (
	"context"
	"time"
)

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// VectorIndex is a nearest-neighbour index over document embeddings.
// Implemented by valkey (Valkey/Redis FT.SEARCH), qdrant and pinecone.
type VectorIndex interface {
	Pinger
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	Close()
}

// ReadyWaiter is implemented by drivers that can block until the backend answers.
type ReadyWaiter interface {
	WaitForReady(ctx context.Context, timeout time.Duration) error
}
