// Package config provides configuration types for paimy.
package config

import "time"

// Config represents the main paimy configuration.
type Config struct {
	Assistant AssistantConfig `toml:"assistant"`
	Model     ModelConfig     `toml:"model"`
	Notion    NotionConfig    `toml:"notion"`
	Projects  ProjectsConfig  `toml:"projects"`
	Sweep     SweepConfig     `toml:"sweep"`
	Paths     PathsConfig     `toml:"paths"`
	Logging   LoggingConfig   `toml:"logging"`
}

// AssistantConfig controls the conversation loop.
type AssistantConfig struct {
	Name          string        `toml:"name"`
	Timezone      string        `toml:"timezone"`
	MaxIterations int           `toml:"max_iterations"`
	HistoryWindow int           `toml:"history_window"`
	ContextTTL    time.Duration `toml:"context_ttl"`
}

// ModelConfig configures the primary language model and an optional fallback.
type ModelConfig struct {
	ProviderConfig
	Fallback ProviderConfig `toml:"fallback"`
}

// ProviderConfig describes one model endpoint.
type ProviderConfig struct {
	Provider   string        `toml:"provider"` // anthropic, openai
	Model      string        `toml:"model"`
	APIKey     string        `toml:"api_key"`
	BaseURL    string        `toml:"base_url"`
	MaxTokens  int           `toml:"max_tokens"`
	Timeout    time.Duration `toml:"timeout"`
	MaxRetries int           `toml:"max_retries"`
}

// Enabled reports whether the provider is configured at all.
func (p ProviderConfig) Enabled() bool {
	return p.Provider != "" && p.Model != ""
}

// NotionConfig points at the task and project databases.
type NotionConfig struct {
	Token             string            `toml:"token"`
	BaseURL           string            `toml:"base_url"`
	Version           string            `toml:"version"`
	TaskDatabaseID    string            `toml:"task_database_id"`
	ProjectDatabaseID string            `toml:"project_database_id"`
	Timeout           time.Duration     `toml:"timeout"`
	MaxRetries        int               `toml:"max_retries"`
	TaskProperties    TaskProperties    `toml:"task_properties"`
	ProjectProperties ProjectProperties `toml:"project_properties"`
}

// TaskProperties maps task fields to database property names.
type TaskProperties struct {
	Title        string `toml:"title"`
	Status       string `toml:"status"`
	Owner        string `toml:"owner"`
	Participants string `toml:"participants"`
	DueDate      string `toml:"due_date"`
	Priority     string `toml:"priority"`
	Description  string `toml:"description"`
	Source       string `toml:"source"`
	SourceURL    string `toml:"source_url"`
	Project      string `toml:"project"`
	Team         string `toml:"team"`
}

// ProjectProperties maps project fields to database property names.
type ProjectProperties struct {
	Name     string `toml:"name"`
	Status   string `toml:"status"`
	Owner    string `toml:"owner"`
	Goal     string `toml:"goal"`
	Deadline string `toml:"deadline"`
}

// ProjectsConfig controls the project directory cache.
type ProjectsConfig struct {
	CacheTTL time.Duration `toml:"cache_ttl"`
}

// SweepConfig controls batched briefing runs.
type SweepConfig struct {
	BatchSize  int           `toml:"batch_size"`
	BatchDelay time.Duration `toml:"batch_delay"`
}

// PathsConfig contains file path settings.
type PathsConfig struct {
	DataDir  string `toml:"data_dir"`
	MemoryDB string `toml:"memory_db"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
	JSON  bool   `toml:"json"`
}

// Model providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)
