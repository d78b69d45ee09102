// Package pinecone implements db.VectorIndex against the Pinecone data-plane
// REST API.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vntravel/internal/db"
)

var _ db.VectorIndex = (*Store)(nil)

const defaultControllerURL = "https://api.pinecone.io"

// Config holds Pinecone settings. BaseURL is the index host; when empty it is
// resolved once through the controller using Index.
type Config struct {
	APIKey        string
	Index         string
	BaseURL       string
	Namespace     string
	ControllerURL string
	Timeout       time.Duration
}

// Store is a Pinecone index client.
type Store struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger

	mu      sync.RWMutex
	baseURL string
}

// NewStore creates a Pinecone client. No network call is made until first use.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("pinecone api key is required")
	}
	if cfg.BaseURL == "" && cfg.Index == "" {
		return nil, errors.New("pinecone base url or index is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ControllerURL == "" {
		cfg.ControllerURL = defaultControllerURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With(zap.String("component", "pinecone")),
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
	}, nil
}

// Ping reads index stats.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.doJSON(ctx, http.MethodPost, "/describe_index_stats", struct{}{}, nil); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close releases idle connections.
func (s *Store) Close() {
	s.client.CloseIdleConnections()
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	Namespace       string    `json:"namespace,omitempty"`
	IncludeMetadata bool      `json:"includeMetadata"`
	IncludeValues   bool      `json:"includeValues"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata,omitempty"`
	} `json:"matches"`
	Namespace string `json:"namespace"`
}

// SearchKNN runs a top-K query. KNNQuery.IndexName overrides the configured
// namespace when set. Scores are cosine similarities for cosine indexes.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if len(q.Vector) == 0 {
		return nil, errors.New("vector is required")
	}
	if q.K <= 0 {
		return nil, errors.New("k must be positive")
	}

	ns := s.cfg.Namespace
	if q.IndexName != "" {
		ns = q.IndexName
	}
	req := queryRequest{
		Vector:          q.Vector,
		TopK:            q.K,
		Namespace:       ns,
		IncludeMetadata: q.IncludeMetadata,
	}

	var resp queryResponse
	if err := s.doJSON(ctx, http.MethodPost, "/query", req, &resp); err != nil {
		return nil, &db.Error{Op: db.OpPinecone, Err: err}
	}

	entries := make([]db.SearchEntry, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		entries = append(entries, db.SearchEntry{
			Key:    m.ID,
			Score:  m.Score,
			Fields: selectFields(m.Metadata, q.ReturnFields),
		})
	}
	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

func selectFields(meta map[string]any, keep []string) map[string]any {
	if len(keep) == 0 || meta == nil {
		return meta
	}
	out := make(map[string]any, len(keep))
	for _, k := range keep {
		if v, ok := meta[k]; ok {
			out[k] = v
		}
	}
	return out
}

func (s *Store) ensureBaseURL(ctx context.Context) (string, error) {
	s.mu.RLock()
	base := s.baseURL
	s.mu.RUnlock()
	if base != "" {
		return base, nil
	}

	endpoint := strings.TrimRight(s.cfg.ControllerURL, "/") + "/indexes/" + url.PathEscape(s.cfg.Index)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build describe request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Api-Key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("describe index: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("describe index %s: status %d: %s", s.cfg.Index, resp.StatusCode, raw)
	}

	var describe struct {
		Host string `json:"host"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&describe); err != nil {
		return "", fmt.Errorf("decode describe index: %w", err)
	}
	host := strings.TrimSpace(describe.Host)
	if host == "" {
		return "", fmt.Errorf("empty host for index %q", s.cfg.Index)
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	host = strings.TrimRight(host, "/")

	s.mu.Lock()
	s.baseURL = host
	s.mu.Unlock()
	s.logger.Info("Resolved Pinecone index host", zap.String("index", s.cfg.Index), zap.String("host", host))
	return host, nil
}

func (s *Store) doJSON(ctx context.Context, method, path string, in, out any) error {
	base, err := s.ensureBaseURL(ctx)
	if err != nil {
		return err
	}

	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
