// Package tools provides the unified tool registry the orchestrator
// dispatches through: schemas for the model and executors for the calls.
package tools

import (
	"context"
	"fmt"

	"github.com/paimy-ai/paimy/internal/model"
	"github.com/paimy-ai/paimy/internal/tools/executor"
	"github.com/paimy-ai/paimy/internal/tools/schemas"
)

// Registry combines schemas and executors for complete tool management.
type Registry struct {
	schemas   *schemas.Registry
	executors *executor.Registry
}

// NewRegistry creates a new unified tool registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas:   schemas.NewRegistry(),
		executors: executor.NewRegistry(),
	}
}

// NewTaskRegistry returns a registry holding the task tool catalog.
func NewTaskRegistry(env *executor.Env) *Registry {
	r := NewRegistry()
	r.Initialize(env)
	return r
}

// Schemas returns the schema registry.
func (r *Registry) Schemas() *schemas.Registry {
	return r.schemas
}

// Executors returns the executor registry.
func (r *Registry) Executors() *executor.Registry {
	return r.executors
}

// Register registers both a schema and executor for a tool.
func (r *Registry) Register(tool executor.Tool, schema *schemas.Schema) {
	if tool.Name() != schema.Name {
		panic(fmt.Sprintf("tools: executor %q registered with schema %q", tool.Name(), schema.Name))
	}
	r.executors.Register(tool)
	r.schemas.Register(schema)
}

// ToOpenAIFormat returns all schemas in OpenAI function calling format.
func (r *Registry) ToOpenAIFormat() []map[string]interface{} {
	return r.schemas.ToOpenAIFormat()
}

// ToAnthropicFormat returns all schemas in Anthropic tool use format.
func (r *Registry) ToAnthropicFormat() []map[string]interface{} {
	return r.schemas.ToAnthropicFormat()
}

// ModelTools returns the catalog as model tool definitions.
func (r *Registry) ModelTools() []model.Tool {
	all := r.schemas.All()
	out := make([]model.Tool, 0, len(all))
	for _, s := range all {
		out = append(out, model.Tool{
			Name:        s.Name,
			Description: s.Description,
			InputSchema: s.Parameters,
		})
	}
	return out
}

// Execute runs a tool by name.
func (r *Registry) Execute(ctx context.Context, name string, input map[string]any) (*executor.Result, error) {
	return r.executors.Execute(ctx, name, input)
}

// Initialize registers the task tools with their schemas.
func (r *Registry) Initialize(env *executor.Env) {
	schemas.RegisterTaskTools(r.schemas)
	for _, tool := range executor.TaskTools(env) {
		if _, ok := r.schemas.Get(tool.Name()); !ok {
			panic(fmt.Sprintf("tools: executor %q has no schema", tool.Name()))
		}
		r.executors.Register(tool)
	}
}
