package model

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/paimy-ai/paimy/internal/errors"
)

const anthropicVersion = "2023-06-01"

// AnthropicConfig configures the Anthropic Messages API client.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string // Default: https://api.anthropic.com/v1
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
}

// AnthropicClient implements Model against the Anthropic Messages API.
type AnthropicClient struct {
	cfg            *AnthropicConfig
	client         *http.Client
	circuitBreaker *errors.CircuitBreaker
	retryPolicy    *errors.Policy
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(cfg *AnthropicConfig) *AnthropicClient {
	if cfg == nil {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}

	return &AnthropicClient{
		cfg:            cfg,
		client:         &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: errors.NewCircuitBreaker("anthropic", nil),
		retryPolicy:    newRetryPolicy(cfg.MaxRetries),
	}
}

// Generate sends the conversation to the Messages API.
func (c *AnthropicClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	if !c.IsAvailable() {
		return nil, errors.NewBuilder(errors.CodeModelUnavailable, "Anthropic API key not configured").
			System().
			WithSuggestion("Set ANTHROPIC_API_KEY or api_key in the [model] section").
			Build()
	}

	return errors.ExecuteCircuitBreakerWithResult(c.circuitBreaker, func() (*Response, error) {
		return c.generate(ctx, req)
	})
}

func (c *AnthropicClient) generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	body := anthropicRequest{
		Model:       c.cfg.Model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Temperature: req.Temperature,
		Tools:       req.Tools,
	}
	for _, m := range req.Messages {
		wm := anthropicMessage{Role: string(m.Role)}
		for _, b := range m.Content {
			wm.Content = append(wm.Content, toAnthropicBlock(b))
		}
		body.Messages = append(body.Messages, wm)
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeModelInvalidResponse, "failed to marshal request", errors.CategoryPermanent)
	}

	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}
	respBody, err := postJSON(ctx, c.client, c.retryPolicy, "anthropic", c.cfg.BaseURL+"/messages", headers, jsonBody)
	if err != nil {
		return nil, err
	}

	var ar anthropicResponse
	if err := json.Unmarshal(respBody, &ar); err != nil {
		return nil, errors.NewBuilder(errors.CodeModelInvalidResponse, "failed to parse API response").
			Permanent().
			Wrap(err).
			WithContext("response_body", string(respBody)).
			Build()
	}
	if ar.Error != nil {
		return nil, errors.Permanent(errors.CodeModelInvalidResponse, ar.Error.Type+": "+ar.Error.Message)
	}

	resp := &Response{
		StopReason: ar.StopReason,
		Usage:      ar.Usage,
		Model:      ar.Model,
		DurationMs: time.Since(start).Milliseconds(),
	}
	for _, b := range ar.Content {
		switch BlockType(b.Type) {
		case BlockText:
			resp.Content = append(resp.Content, TextBlock(b.Text))
		case BlockToolUse:
			var input map[string]any
			if len(b.Input) > 0 {
				if err := json.Unmarshal(b.Input, &input); err != nil {
					input = map[string]any{"raw": string(b.Input)}
				}
			}
			resp.Content = append(resp.Content, ToolUseBlock(b.ID, b.Name, input))
		}
	}

	return resp, nil
}

// IsAvailable checks if the client is configured.
func (c *AnthropicClient) IsAvailable() bool {
	return c != nil && c.cfg != nil && c.cfg.APIKey != ""
}

// Name returns the model name.
func (c *AnthropicClient) Name() string {
	if c != nil && c.cfg != nil {
		return c.cfg.Model
	}
	return "anthropic"
}

// Status returns the model status.
func (c *AnthropicClient) Status() *ModelStatus {
	s := &ModelStatus{Name: c.Name(), Provider: "anthropic", Available: c.IsAvailable()}
	if c != nil && c.circuitBreaker != nil {
		s.Breaker = c.circuitBreaker.State().String()
	}
	return s
}

// ============================================================
// Anthropic API Types
// ============================================================

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []Tool             `json:"tools,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicResponse struct {
	ID         string           `json:"id"`
	Model      string           `json:"model"`
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      Usage            `json:"usage"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// toAnthropicBlock converts a block to wire form. tool_use blocks always
// carry an input object, even when the model sent no arguments.
func toAnthropicBlock(b ContentBlock) anthropicBlock {
	wb := anthropicBlock{
		Type:      string(b.Type),
		Text:      b.Text,
		ID:        b.ID,
		Name:      b.Name,
		ToolUseID: b.ToolUseID,
		Content:   b.Content,
		IsError:   b.IsError,
	}
	if b.Type == BlockToolUse {
		wb.Input = json.RawMessage("{}")
		if len(b.Input) > 0 {
			if raw, err := json.Marshal(b.Input); err == nil {
				wb.Input = raw
			}
		}
	}
	return wb
}
