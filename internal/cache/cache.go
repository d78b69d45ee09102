// Package cache implements the process-lifetime memoization layer: two
// independent namespaces (embeddings and answers), no eviction, explicit
// Clear only.
package cache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/vntravel/internal/domain"
)

// Store is a mutex-guarded unbounded map for one artifact type.
type Store[V any] struct {
	name  string
	mu    sync.RWMutex
	items map[string]V
	group singleflight.Group
}

// NewStore creates an empty namespace.
func NewStore[V any](name string) *Store[V] {
	return &Store[V]{name: name, items: make(map[string]V)}
}

// Name returns the namespace name.
func (s *Store[V]) Name() string { return s.name }

// Get returns the value for key and whether it was present.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

// Put stores value under key, overwriting any previous entry.
func (s *Store[V]) Put(key string, value V) {
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
}

// Clear drops every entry.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	s.items = make(map[string]V)
	s.mu.Unlock()
}

// Len returns the number of entries.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// GetOrCompute returns the cached value for key or runs compute once per key
// across concurrent callers, storing the result on success. hit reports
// whether the value came from the map without computing.
//
// compute receives a context detached from every caller's cancellation; it
// must bound itself. Each caller waits on its own ctx, so an abandoned caller
// returns ctx.Err() while the others keep waiting for the shared result.
func (s *Store[V]) GetOrCompute(
	ctx context.Context, key string, compute func(context.Context) (V, error),
) (value V, hit bool, err error) {
	var zero V
	if v, ok := s.Get(key); ok {
		return v, true, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		// Another caller may have finished between Get and DoChan.
		if v, ok := s.Get(key); ok {
			return v, nil
		}
		v, err := compute(detached)
		if err != nil {
			return nil, err
		}
		s.Put(key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, false, fmt.Errorf("cache %s: %w", s.name, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		v, ok := res.Val.(V)
		if !ok {
			return zero, false, fmt.Errorf("cache %s: unexpected value type %T", s.name, res.Val)
		}
		return v, false, nil
	}
}

// Stats is a snapshot of namespace sizes.
type Stats struct {
	Embeddings int
	Answers    int
}

// Layer bundles the two namespaces owned by one pipeline instance.
type Layer struct {
	Embeddings *Store[[]float32]
	Answers    *Store[*domain.GeneratedAnswer]
}

// NewLayer creates an empty cache layer.
func NewLayer() *Layer {
	return &Layer{
		Embeddings: NewStore[[]float32]("embeddings"),
		Answers:    NewStore[*domain.GeneratedAnswer]("answers"),
	}
}

// Clear drops both namespaces.
func (l *Layer) Clear() {
	l.Embeddings.Clear()
	l.Answers.Clear()
}

// Stats returns the current entry counts.
func (l *Layer) Stats() Stats {
	return Stats{
		Embeddings: l.Embeddings.Len(),
		Answers:    l.Answers.Len(),
	}
}
