// Package falkordb is a read-only Cypher client for FalkorDB built on rueidis.
// Results are requested in compact mode and decoded into Go scalars, slices
// and maps; queries are expected to project properties rather than whole
// nodes or edges.
package falkordb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/vntravel/internal/db"
)

// Config holds connection parameters.
type Config struct {
	Addrs    []string
	Username string
	Password string
	Graph    string
}

// Store runs Cypher queries against one named graph.
type Store struct {
	client rueidis.Client
	graph  string
}

// NewStore connects to FalkorDB.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("addrs is required")
	}
	if cfg.Graph == "" {
		return nil, errors.New("graph name is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableCache: true,
		AlwaysRESP2:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return &Store{client: client, graph: cfg.Graph}, nil
}

// Graph returns the graph name queries run against.
func (s *Store) Graph() string { return s.graph }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the server responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for graph: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Query runs a read-only Cypher query with parameters.
func (s *Store) Query(ctx context.Context, cypher string, params map[string]any) (*Result, error) {
	q, err := withParams(cypher, params)
	if err != nil {
		return nil, err
	}

	cmd := s.client.B().Arbitrary("GRAPH.RO_QUERY").Keys(s.graph).Args(q, "--compact").Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		if re, ok := rueidis.IsRedisErr(err); ok && strings.Contains(strings.ToLower(re.Error()), "empty key") {
			return nil, &db.Error{Op: db.OpGraphQuery, Err: fmt.Errorf("%s: %w", s.graph, db.ErrGraphNotFound)}
		}
		return nil, &db.Error{Op: db.OpGraphQuery, Err: err}
	}

	res, err := decodeResult(raw)
	if err != nil {
		return nil, &db.Error{Op: db.OpGraphQuery, Err: err}
	}
	return res, nil
}
