package valkey

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/vntravel/internal/db"
)

const (
	vectorField = "embedding"
	scoreField  = "__vector_score"
	jsonRoot    = "$"
)

// SearchKNN runs a KNN vector similarity search via FT.SEARCH. The index is
// expected to use COSINE distance in [0,2]; scores are mapped to [0,1] as
// (2 - d) / 2 so ordering survives for anti-correlated hits.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, errors.New("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, errors.New("vector is required")
	}
	if q.K <= 0 {
		return nil, errors.New("k must be positive")
	}

	args := []string{q.IndexName, fmt.Sprintf("*=>[KNN %d @%s $BLOB AS %s]", q.K, vectorField, scoreField)}

	switch {
	case !q.IncludeMetadata:
		args = append(args, "RETURN", "1", scoreField)
	case len(q.ReturnFields) > 0:
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)+1))
		args = append(args, q.ReturnFields...)
		args = append(args, scoreField)
	}

	args = append(args, "PARAMS", "2", "BLOB", vectorToBytes(q.Vector), "DIALECT", "2")

	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "no such index") || isRedisErr(err, "unknown index") {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%s: %w", q.IndexName, db.ErrIndexNotFound)}
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseKNNResult(raw)
}

func parseKNNResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, len(raw)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		pairs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{Key: key, Fields: parseFieldPairs(pairs)}

		if v, ok := entry.Fields[scoreField].(string); ok {
			if d, err := strconv.ParseFloat(v, 64); err == nil {
				entry.Score = distanceToScore(d)
			}
			delete(entry.Fields, scoreField)
		}

		entries = append(entries, entry)
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

// parseFieldPairs flattens [name, value, ...]. JSON documents returned under
// "$" are expanded into their top-level properties.
func parseFieldPairs(fields []rueidis.RedisMessage) map[string]any {
	m := make(map[string]any, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		if name == vectorField {
			continue
		}
		if name == jsonRoot {
			expandJSON(m, value)
			continue
		}
		m[name] = value
	}
	return m
}

func expandJSON(dst map[string]any, doc string) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(doc), &obj); err != nil {
		// FT.SEARCH on JSON indexes may wrap the document in a single-element array.
		var arr []map[string]any
		if json.Unmarshal([]byte(doc), &arr) != nil || len(arr) == 0 {
			return
		}
		obj = arr[0]
	}
	for k, v := range obj {
		if k == vectorField {
			continue
		}
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// distanceToScore maps cosine distance [0,2] onto [0,1], higher is closer.
func distanceToScore(d float64) float64 {
	return (2 - d) / 2
}
