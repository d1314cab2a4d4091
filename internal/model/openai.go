package model

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/paimy-ai/paimy/internal/errors"
)

// OpenAIConfig configures a client for any OpenAI-compatible chat
// completions endpoint.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // Default: https://api.openai.com/v1
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
}

// OpenAIClient implements Model using the chat completions API with
// function calling.
type OpenAIClient struct {
	cfg            *OpenAIConfig
	client         *http.Client
	circuitBreaker *errors.CircuitBreaker
	retryPolicy    *errors.Policy
}

// NewOpenAIClient creates a new OpenAI-compatible client.
func NewOpenAIClient(cfg *OpenAIConfig) *OpenAIClient {
	if cfg == nil {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}

	return &OpenAIClient{
		cfg:            cfg,
		client:         &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: errors.NewCircuitBreaker("openai", nil),
		retryPolicy:    newRetryPolicy(cfg.MaxRetries),
	}
}

// Generate sends the conversation to the chat completions endpoint.
func (c *OpenAIClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	if !c.IsAvailable() {
		return nil, errors.NewBuilder(errors.CodeModelUnavailable, "OpenAI API key not configured").
			System().
			WithSuggestion("Set OPENAI_API_KEY or api_key in the [model] section").
			Build()
	}

	return errors.ExecuteCircuitBreakerWithResult(c.circuitBreaker, func() (*Response, error) {
		return c.generate(ctx, req)
	})
}

func (c *OpenAIClient) generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	body := map[string]any{
		"model":    c.cfg.Model,
		"messages": toOpenAIMessages(req),
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	if maxTokens > 0 {
		body["max_tokens"] = maxTokens
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}

	if len(req.Tools) > 0 {
		tools := make([]map[string]any, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        tool.Name,
					"description": tool.Description,
					"parameters":  tool.InputSchema,
				},
			})
		}
		body["tools"] = tools
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeModelInvalidResponse, "failed to marshal request", errors.CategoryPermanent)
	}

	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	respBody, err := postJSON(ctx, c.client, c.retryPolicy, "openai", c.cfg.BaseURL+"/chat/completions", headers, jsonBody)
	if err != nil {
		return nil, err
	}

	var oaResp openAIResponse
	if err := json.Unmarshal(respBody, &oaResp); err != nil {
		return nil, errors.NewBuilder(errors.CodeModelInvalidResponse, "failed to parse API response").
			Permanent().
			Wrap(err).
			WithContext("response_body", string(respBody)).
			Build()
	}

	if len(oaResp.Choices) == 0 {
		return nil, errors.New(errors.CodeModelInvalidResponse, "API response contained no choices", errors.CategoryPermanent)
	}

	choice := oaResp.Choices[0]
	resp := &Response{
		Model: oaResp.Model,
		Usage: Usage{
			InputTokens:  oaResp.Usage.PromptTokens,
			OutputTokens: oaResp.Usage.CompletionTokens,
		},
		DurationMs: time.Since(start).Milliseconds(),
	}

	if strings.TrimSpace(choice.Message.Content) != "" {
		resp.Content = append(resp.Content, TextBlock(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		if tc.Type != "function" {
			continue
		}
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = map[string]any{"raw": tc.Function.Arguments}
			}
		}
		resp.Content = append(resp.Content, ToolUseBlock(tc.ID, tc.Function.Name, args))
	}

	switch choice.FinishReason {
	case "tool_calls":
		resp.StopReason = StopToolUse
	case "length":
		resp.StopReason = StopMaxTokens
	default:
		resp.StopReason = StopEndTurn
	}

	return resp, nil
}

// IsAvailable checks if the client is configured.
func (c *OpenAIClient) IsAvailable() bool {
	return c != nil && c.cfg != nil && c.cfg.APIKey != ""
}

// Name returns the model name.
func (c *OpenAIClient) Name() string {
	if c != nil && c.cfg != nil {
		return c.cfg.Model
	}
	return "openai"
}

// Status returns the model status.
func (c *OpenAIClient) Status() *ModelStatus {
	s := &ModelStatus{Name: c.Name(), Provider: "openai", Available: c.IsAvailable()}
	if c != nil && c.circuitBreaker != nil {
		s.Breaker = c.circuitBreaker.State().String()
	}
	return s
}

// toOpenAIMessages flattens block-structured messages into chat messages.
// Tool results become role "tool" messages; tool requests become
// assistant tool_calls.
func toOpenAIMessages(req *Request) []openAIMessage {
	var out []openAIMessage
	if req.System != "" {
		out = append(out, openAIMessage{Role: "system", Content: req.System})
	}

	for _, m := range req.Messages {
		var text []string
		var calls []openAIToolCall
		for _, b := range m.Content {
			switch b.Type {
			case BlockText:
				text = append(text, b.Text)
			case BlockToolUse:
				args := "{}"
				if len(b.Input) > 0 {
					if raw, err := json.Marshal(b.Input); err == nil {
						args = string(raw)
					}
				}
				tc := openAIToolCall{ID: b.ID, Type: "function"}
				tc.Function.Name = b.Name
				tc.Function.Arguments = args
				calls = append(calls, tc)
			case BlockToolResult:
				out = append(out, openAIMessage{Role: "tool", ToolCallID: b.ToolUseID, Content: b.Content})
			}
		}

		if len(text) == 0 && len(calls) == 0 {
			continue
		}
		out = append(out, openAIMessage{
			Role:      string(m.Role),
			Content:   strings.Join(text, "\n"),
			ToolCalls: calls,
		})
	}
	return out
}

// ============================================================
// OpenAI API Types
// ============================================================

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role      string           `json:"role"`
			Content   string           `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}
