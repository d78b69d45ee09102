// Package qdrant implements db.VectorIndex over a Qdrant collection using the
// official gRPC client.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/kailas-cloud/vntravel/internal/db"
)

var _ db.VectorIndex = (*Store)(nil)

// idPayloadKey holds the dataset identifier; Qdrant point IDs must be UUIDs or integers.
const idPayloadKey = "id"

// Config holds connection parameters.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

type pointClient interface {
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	Close() error
}

// Store queries one or more collections (KNNQuery.IndexName is the collection).
type Store struct {
	client pointClient
}

// NewStore connects to Qdrant.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Host == "" {
		return nil, errors.New("host is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &Store{client: client}, nil
}

// Ping calls the Qdrant health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close releases the gRPC connection.
func (s *Store) Close() {
	_ = s.client.Close()
}

// SearchKNN runs a nearest-neighbour query. Scores are returned as reported by
// the collection metric (cosine similarity for Distance_Cosine collections).
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, errors.New("collection name is required")
	}
	if len(q.Vector) == 0 {
		return nil, errors.New("vector is required")
	}
	if q.K <= 0 {
		return nil, errors.New("k must be positive")
	}

	limit := uint64(q.K)
	req := &qdrant.QueryPoints{
		CollectionName: q.IndexName,
		Query:          qdrant.NewQuery(q.Vector...),
		Limit:          &limit,
		WithPayload:    payloadSelector(q),
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, &db.Error{Op: db.OpQdrant, Err: err}
	}

	entries := make([]db.SearchEntry, 0, len(points))
	for _, p := range points {
		fields := make(map[string]any, len(p.GetPayload()))
		for k, v := range p.GetPayload() {
			fields[k] = convertValue(v)
		}
		entries = append(entries, db.SearchEntry{
			Key:    pointKey(p.GetId(), fields),
			Score:  float64(p.GetScore()),
			Fields: fields,
		})
	}
	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

func payloadSelector(q *db.KNNQuery) *qdrant.WithPayloadSelector {
	switch {
	case !q.IncludeMetadata:
		return qdrant.NewWithPayloadInclude(idPayloadKey)
	case len(q.ReturnFields) > 0:
		return qdrant.NewWithPayloadInclude(append([]string{idPayloadKey}, q.ReturnFields...)...)
	default:
		return qdrant.NewWithPayload(true)
	}
}

// pointKey prefers the dataset id stored in the payload over the point id.
func pointKey(id *qdrant.PointId, fields map[string]any) string {
	if v, ok := fields[idPayloadKey]; ok {
		switch x := v.(type) {
		case string:
			if x != "" {
				return x
			}
		case int64:
			return strconv.FormatInt(x, 10)
		}
	}
	if id == nil {
		return ""
	}
	switch x := id.GetPointIdOptions().(type) {
	case *qdrant.PointId_Uuid:
		return x.Uuid
	case *qdrant.PointId_Num:
		return strconv.FormatUint(x.Num, 10)
	}
	return ""
}

func convertValue(v *qdrant.Value) any {
	switch val := v.GetKind().(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		out := make([]any, len(val.ListValue.GetValues()))
		for i, lv := range val.ListValue.GetValues() {
			out[i] = convertValue(lv)
		}
		return out
	case *qdrant.Value_StructValue:
		out := make(map[string]any, len(val.StructValue.GetFields()))
		for k, nv := range val.StructValue.GetFields() {
			out[k] = convertValue(nv)
		}
		return out
	}
	return nil
}
