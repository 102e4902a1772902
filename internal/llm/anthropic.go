// Package llm adapts the Anthropic messages API to the engine's
// generator port.
package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/voxflow/voxflow/internal/actions"
	"github.com/voxflow/voxflow/pkg/schema"
)

const (
	defaultModel     = anthropic.ModelClaude3_5HaikuLatest
	defaultMaxTokens = 1024
)

// Client wraps the Anthropic SDK behind the actions.Generator port.
type Client struct {
	client  anthropic.Client
	model   anthropic.Model
	enabled bool
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = anthropic.Model(model)
	}
}

// NewClient creates a Client. An empty apiKey is allowed so the engine
// can start without LLM support; calls then fail with
// PROVIDER_UNAVAILABLE.
func NewClient(apiKey, baseURL string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}

	c := &Client{
		client:  anthropic.NewClient(clientOpts...),
		model:   defaultModel,
		enabled: apiKey != "",
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate sends a single-turn prompt and returns the text of the reply.
func (c *Client) Generate(ctx context.Context, req actions.GenerateRequest) (string, error) {
	if !c.enabled {
		return "", schema.NewError(schema.ErrCodeProviderUnavailable, "no anthropic api key configured")
	}
	if req.Prompt == "" {
		return "", schema.NewError(schema.ErrCodeValidation, "prompt is required")
	}

	model := c.model
	if req.Model != "" {
		model = anthropic.Model(req.Model)
	}
	maxTokens := int64(defaultMaxTokens)
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = int64(*req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeProviderUnavailable, "anthropic request failed: %s", err.Error()).WithCause(err)
	}

	text := extractText(msg)
	if text == "" {
		return "", schema.NewError(schema.ErrCodeExecution, "anthropic reply contained no text")
	}

	c.logger.Debug("llm generation complete",
		"model", string(model),
		"chars", len(text),
	)
	return text, nil
}

// GenerateText adapts Generate to the intent extractor's function port.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.Generate(ctx, actions.GenerateRequest{Prompt: prompt})
}

func extractText(msg *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok && b.Text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(b.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

var _ actions.Generator = (*Client)(nil)
