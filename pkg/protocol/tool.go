package protocol

// ToolCall represents a request to execute a tool.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResult is the payload serialized back to the model for one tool call.
type ToolResult struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
	Candidates []Task `json:"candidates,omitempty"` // ambiguous task lookups
	Hint       string `json:"hint,omitempty"`
	Requested  any    `json:"requested,omitempty"` // verification mismatch
	Observed   any    `json:"observed,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}
