// Package executor provides the tool execution interface and the task tools.
package executor

import (
	"context"
	"sort"
	"time"

	"github.com/paimy-ai/paimy/internal/conversation"
	apperrors "github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

// Tool represents a callable tool.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Description returns what the tool does.
	Description() string

	// Execute runs the tool with the given input. A returned error means
	// the infrastructure failed; request-level failures are a Result with
	// Success false.
	Execute(ctx context.Context, input map[string]any) (*Result, error)
}

// Result represents the result of a tool execution.
type Result struct {
	Success    bool            `json:"success"`
	Data       any             `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	Code       string          `json:"code,omitempty"`
	Candidates []protocol.Task `json:"candidates,omitempty"`
	Hint       string          `json:"hint,omitempty"`
	Requested  any             `json:"requested,omitempty"`
	Observed   any             `json:"observed,omitempty"`
	DurationMs int64           `json:"duration_ms"`

	// Delta is the conversation state this call established. It is never
	// sent to the model.
	Delta conversation.Delta `json:"-"`
}

// NewSuccessResult creates a successful result.
func NewSuccessResult(data any) *Result {
	return &Result{
		Success: true,
		Data:    data,
	}
}

// NewErrorResult creates an error result. The code of an AppError is kept.
func NewErrorResult(err error) *Result {
	return &Result{
		Success: false,
		Error:   err.Error(),
		Code:    apperrors.GetCode(err),
	}
}

// NewFailure creates an error result from a code and message.
func NewFailure(code, message string) *Result {
	return &Result{Success: false, Error: message, Code: code}
}

// TimedResult wraps a result with duration.
func TimedResult(result *Result, start time.Time) *Result {
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

// WithDelta attaches a conversation delta and returns r.
func (r *Result) WithDelta(d conversation.Delta) *Result {
	r.Delta = d
	return r
}

// Payload returns the wire form sent back to the model.
func (r *Result) Payload() protocol.ToolResult {
	return protocol.ToolResult{
		Success:    r.Success,
		Data:       r.Data,
		Error:      r.Error,
		Code:       r.Code,
		Candidates: r.Candidates,
		Hint:       r.Hint,
		Requested:  r.Requested,
		Observed:   r.Observed,
		DurationMs: r.DurationMs,
	}
}

// Registry manages available tools for execution.
// It is read-only after construction and safe for concurrent use.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) {
	r.tools[tool.Name()] = tool
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tool names in sorted order.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs a tool by name with the given input.
func (r *Registry) Execute(ctx context.Context, name string, input map[string]any) (*Result, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, &ToolNotFoundError{Name: name}
	}
	if input == nil {
		input = map[string]any{}
	}

	start := time.Now()
	result, err := tool.Execute(ctx, input)
	if err != nil {
		return nil, err
	}
	return TimedResult(result, start), nil
}

// ToolNotFoundError is returned when a tool doesn't exist.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return "tool not found: " + e.Name
}

// Code returns the error code reported to the model.
func (e *ToolNotFoundError) Code() string {
	return apperrors.CodeToolNotFound
}
