// Package config handles paimy configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	apperrors "github.com/paimy-ai/paimy/internal/errors"
)

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".paimy")

	return &Config{
		Assistant: AssistantConfig{
			Name:          "Paimy",
			Timezone:      "Asia/Seoul",
			MaxIterations: 5,
			HistoryWindow: 10,
			ContextTTL:    7 * 24 * time.Hour,
		},
		Model: ModelConfig{
			ProviderConfig: ProviderConfig{
				Provider:   ProviderAnthropic,
				Model:      "claude-sonnet-4-20250514",
				BaseURL:    "https://api.anthropic.com/v1",
				MaxTokens:  1024,
				Timeout:    60 * time.Second,
				MaxRetries: 3,
			},
		},
		Notion: NotionConfig{
			BaseURL:    "https://api.notion.com/v1",
			Version:    "2022-06-28",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			TaskProperties: TaskProperties{
				Title:        "제목",
				Status:       "상태",
				Owner:        "담당자",
				Participants: "참여자",
				DueDate:      "마감일",
				Priority:     "우선순위",
				Description:  "실행 상세",
				Source:       "소스",
				SourceURL:    "원본 링크",
				Project:      "프로젝트",
				Team:         "팀",
			},
			ProjectProperties: ProjectProperties{
				Name:     "프로젝트명",
				Status:   "상태",
				Owner:    "PM",
				Goal:     "목표",
				Deadline: "마감일",
			},
		},
		Projects: ProjectsConfig{
			CacheTTL: time.Hour,
		},
		Sweep: SweepConfig{
			BatchSize:  5,
			BatchDelay: time.Second,
		},
		Paths: PathsConfig{
			DataDir:  dataDir,
			MemoryDB: filepath.Join(dataDir, "paimy.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads the configuration from the given path.
// If the file doesn't exist, returns defaults. Environment variables
// override file values for secrets and database ids.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid,
				fmt.Sprintf("parse %s", configPath), apperrors.CategorySystem)
		}
	case os.IsNotExist(err):
		// Defaults only
	default:
		return nil, apperrors.Wrap(err, apperrors.CodeConfigNotFound,
			fmt.Sprintf("read %s", configPath), apperrors.CategorySystem)
	}

	applyEnv(cfg, os.Getenv)
	expandPaths(cfg)

	return cfg, nil
}

// DefaultPath returns ~/.paimy/config.toml.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".paimy", "config.toml")
}

// Save saves the configuration to the given path.
func (c *Config) Save(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	return toml.NewEncoder(file).Encode(c)
}

// Validate checks the settings the assistant cannot run without.
func (c *Config) Validate() error {
	var problems []string

	if c.Assistant.MaxIterations < 1 {
		problems = append(problems, "assistant.max_iterations must be at least 1")
	}
	if _, err := time.LoadLocation(c.Assistant.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("assistant.timezone %q: %v", c.Assistant.Timezone, err))
	}
	if err := validateProvider("model", c.Model.ProviderConfig); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Model.Fallback.Enabled() {
		if err := validateProvider("model.fallback", c.Model.Fallback); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if c.Notion.TaskDatabaseID == "" {
		problems = append(problems, "notion.task_database_id is required")
	}
	if c.Sweep.BatchSize < 1 {
		problems = append(problems, "sweep.batch_size must be at least 1")
	}

	if len(problems) == 0 {
		return nil
	}
	return apperrors.NewBuilder(apperrors.CodeConfigInvalid, strings.Join(problems, "; ")).
		System().
		WithSuggestion("edit " + DefaultPath() + " or set the matching environment variable").
		Build()
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Assistant.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func validateProvider(section string, p ProviderConfig) error {
	switch p.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("%s.provider %q is not supported", section, p.Provider)
	}
	if p.Model == "" {
		return fmt.Errorf("%s.model is required", section)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if cfg.Model.APIKey == "" {
		switch cfg.Model.Provider {
		case ProviderAnthropic:
			set(&cfg.Model.APIKey, "ANTHROPIC_API_KEY")
		case ProviderOpenAI:
			set(&cfg.Model.APIKey, "OPENAI_API_KEY")
		}
	}
	if cfg.Model.Fallback.APIKey == "" && cfg.Model.Fallback.Provider == ProviderOpenAI {
		set(&cfg.Model.Fallback.APIKey, "OPENAI_API_KEY")
	}

	set(&cfg.Notion.Token, "NOTION_INTEGRATION_TOKEN")
	set(&cfg.Notion.TaskDatabaseID, "NOTION_TASK_DATABASE_ID")
	set(&cfg.Notion.ProjectDatabaseID, "NOTION_PROJECT_DATABASE_ID")
	if dir := getenv("PAIMY_DATA_DIR"); dir != "" {
		cfg.Paths.DataDir = dir
		cfg.Paths.MemoryDB = filepath.Join(dir, "paimy.db")
	}
}

// expandPaths expands a leading ~ and fills the database path from DataDir.
func expandPaths(cfg *Config) {
	homeDir, _ := os.UserHomeDir()

	expand := func(p string) string {
		if strings.HasPrefix(p, "~") {
			return filepath.Join(homeDir, p[1:])
		}
		return p
	}

	cfg.Paths.DataDir = expand(cfg.Paths.DataDir)
	cfg.Paths.MemoryDB = expand(cfg.Paths.MemoryDB)
	if cfg.Paths.MemoryDB == "" {
		cfg.Paths.MemoryDB = filepath.Join(cfg.Paths.DataDir, "paimy.db")
	}
}
