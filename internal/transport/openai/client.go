// Package openai adapts OpenAI-compatible HTTP APIs (OpenAI, Ollama, Nebius,
// Gemini's compatibility endpoint) to the domain Embedder and Generator ports.
package openai

import (
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vntravel/internal/domain"
)

// Config holds provider connection settings shared by the embedder and generator.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Provider string
	User     string
	Logger   *zap.Logger

	// Embedding only. Zero leaves the provider default.
	Dimensions int

	// Generation only.
	Temperature float32
	MaxTokens   int
}

func newClient(cfg *Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// parseAPIError turns a go-openai error into a readable message wrapped with domain.ErrProvider.
func parseAPIError(op string, err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("%s API error %d: %s: %w", op, reqErr.HTTPStatusCode, detail, domain.ErrProvider)
		}
		return fmt.Errorf("%s API error %d: %s: %w", op, reqErr.HTTPStatusCode, string(reqErr.Body), domain.ErrProvider)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error %d: %s: %w", op, apiErr.HTTPStatusCode, apiErr.Message, domain.ErrProvider)
	}

	return fmt.Errorf("%s request failed: %v: %w", op, err, domain.ErrProvider)
}

// extractDetail reads the "detail" (Nebius) or "error" (Ollama) field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  any    `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	if s, ok := parsed.Error.(string); ok {
		return s
	}
	return ""
}
