// Package schemas provides JSON Schema definitions for OpenAI/Anthropic tool calling.
package schemas

import (
	"encoding/json"
	"sort"
)

// Schema defines a tool's JSON schema for OpenAI/Anthropic formats.
type Schema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Required returns the names of the required parameters.
func (s *Schema) Required() []string {
	req, _ := s.Parameters["required"].([]string)
	return req
}

// Properties returns the parameter definitions keyed by name.
func (s *Schema) Properties() map[string]interface{} {
	props, _ := s.Parameters["properties"].(map[string]interface{})
	return props
}

// SchemaBuilder provides a fluent interface for building tool schemas.
type SchemaBuilder struct {
	schema *Schema
}

// NewSchema creates a new schema builder with the given name and description.
func NewSchema(name, description string) *SchemaBuilder {
	return &SchemaBuilder{
		schema: &Schema{
			Name:        name,
			Description: description,
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": make(map[string]interface{}),
				"required":   make([]string, 0),
			},
		},
	}
}

// AddParam adds a parameter to the schema.
func (b *SchemaBuilder) AddParam(name, paramType, description string, required bool) *SchemaBuilder {
	return b.add(name, map[string]interface{}{
		"type":        paramType,
		"description": description,
	}, required)
}

// AddParamWithEnum adds a parameter with an enum constraint.
func (b *SchemaBuilder) AddParamWithEnum(name, paramType, description string, enum []string, required bool) *SchemaBuilder {
	paramDef := map[string]interface{}{
		"type":        paramType,
		"description": description,
	}
	if len(enum) > 0 {
		paramDef["enum"] = enum
	}
	return b.add(name, paramDef, required)
}

// AddArrayParam adds an array parameter whose items have itemType.
func (b *SchemaBuilder) AddArrayParam(name, itemType, description string, required bool) *SchemaBuilder {
	return b.add(name, map[string]interface{}{
		"type":        "array",
		"description": description,
		"items":       map[string]interface{}{"type": itemType},
	}, required)
}

func (b *SchemaBuilder) add(name string, def map[string]interface{}, required bool) *SchemaBuilder {
	props := b.schema.Parameters["properties"].(map[string]interface{})
	props[name] = def
	if required {
		req := b.schema.Parameters["required"].([]string)
		b.schema.Parameters["required"] = append(req, name)
	}
	return b
}

// Build returns the constructed schema.
func (b *SchemaBuilder) Build() *Schema {
	return b.schema
}

// Registry holds all tool schemas.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry creates a new empty schema registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Register adds a schema to the registry.
func (r *Registry) Register(schema *Schema) {
	r.schemas[schema.Name] = schema
}

// Get retrieves a schema by name.
func (r *Registry) Get(name string) (*Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// List returns all registered schema names in sorted order.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every schema in name order.
func (r *Registry) All() []*Schema {
	out := make([]*Schema, 0, len(r.schemas))
	for _, name := range r.List() {
		out = append(out, r.schemas[name])
	}
	return out
}

// ToOpenAIFormat converts schemas to OpenAI function calling format.
func (r *Registry) ToOpenAIFormat() []map[string]interface{} {
	result := make([]map[string]interface{}, 0, len(r.schemas))
	for _, schema := range r.All() {
		result = append(result, map[string]interface{}{
			"type":     "function",
			"function": schema,
		})
	}
	return result
}

// ToAnthropicFormat converts schemas to Anthropic tool use format.
func (r *Registry) ToAnthropicFormat() []map[string]interface{} {
	result := make([]map[string]interface{}, 0, len(r.schemas))
	for _, schema := range r.All() {
		result = append(result, map[string]interface{}{
			"name":         schema.Name,
			"description":  schema.Description,
			"input_schema": schema.Parameters,
		})
	}
	return result
}

// ToJSON returns the registry as indented JSON.
func (r *Registry) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r.All(), "", "  ")
}
