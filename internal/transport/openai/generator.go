package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vntravel/internal/domain"
	"github.com/kailas-cloud/vntravel/internal/metrics"
)

// Generator produces answers through the chat completions API.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	user        string
	provider    string
	logger      *zap.Logger
}

// NewGenerator creates an OpenAI-compatible chat generator.
func NewGenerator(cfg *Config) *Generator {
	return &Generator{
		client:      newClient(cfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		user:        cfg.User,
		provider:    cfg.Provider,
		logger:      loggerOrNop(cfg.Logger),
	}
}

// Generate implements domain.Generator. One call, no retries.
func (g *Generator) Generate(ctx context.Context, prompt domain.Prompt) (domain.GenerationResult, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if prompt.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt.User})

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    msgs,
		Temperature: g.temperature,
		User:        g.user,
	}
	if g.maxTokens > 0 {
		req.MaxTokens = g.maxTokens
	}

	call := metrics.ProviderCall{Operation: metrics.OpGenerate, Provider: g.provider, Model: g.model}
	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		call.Done(metrics.StatusError, duration)
		g.logger.Warn("chat completion failed",
			zap.String("model", g.model), zap.Duration("duration", duration), zap.Error(err))
		return domain.GenerationResult{}, parseAPIError("generation", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		call.Done(metrics.StatusEmpty, duration)
		return domain.GenerationResult{}, fmt.Errorf("empty completion: %w", domain.ErrProvider)
	}

	call.Done(metrics.StatusOK, duration)
	call.Tokens("prompt", resp.Usage.PromptTokens)
	call.Tokens("completion", resp.Usage.CompletionTokens)

	model := resp.Model
	if model == "" {
		model = g.model
	}
	return domain.GenerationResult{
		Text:             strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:            model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Model returns the configured model name.
func (g *Generator) Model() string { return g.model }
