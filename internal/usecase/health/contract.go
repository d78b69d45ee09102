package health

import "context"

// Pinger checks a backing store (vector index, graph database).
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks an upstream model provider.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
