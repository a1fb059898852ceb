package lawqa

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/lawqa/finetune"
	"github.com/brunobiangulo/lawqa/generate"
	"github.com/brunobiangulo/lawqa/llm"
)

// Config holds all configuration for a lawqa pipeline.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.lawqa/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.lawqa/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	LogLevel string `json:"log_level" yaml:"log_level"`

	// LLM providers
	Chat      llm.Config `json:"chat" yaml:"chat"`
	Embedding llm.Config `json:"embedding" yaml:"embedding"`

	// Embedding dimensions (must match model)
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	Generation generate.Options `json:"generation" yaml:"generation"`
	Context    ContextConfig    `json:"context" yaml:"context"`
	Template   TemplateConfig   `json:"template" yaml:"template"`
	Dedupe     DedupeConfig     `json:"dedupe" yaml:"dedupe"`
	Server     ServerConfig     `json:"server" yaml:"server"`

	Training finetune.TrainingConfig `json:"training" yaml:"training"`
}

// ContextConfig configures citation resolution for input_context.
type ContextConfig struct {
	Separator      string `json:"separator" yaml:"separator"`
	Concurrency    int    `json:"concurrency" yaml:"concurrency"`
	KeepSuffix     bool   `json:"keep_suffix" yaml:"keep_suffix"`
	ReviewFallback bool   `json:"review_fallback" yaml:"review_fallback"`
}

// TemplateConfig configures training text rendering.
type TemplateConfig struct {
	// SystemPromptFile replaces the built-in system prompt when set.
	SystemPromptFile string `json:"system_prompt_file" yaml:"system_prompt_file"`
}

// DedupeConfig configures near-duplicate question detection.
type DedupeConfig struct {
	Threshold float64 `json:"threshold" yaml:"threshold"` // cosine similarity
	Neighbors int     `json:"neighbors" yaml:"neighbors"`
}

// ServerConfig configures the HTTP resolver service.
type ServerConfig struct {
	Addr        string `json:"addr" yaml:"addr"`
	APIKey      string `json:"api_key" yaml:"api_key"`
	CORSOrigins string `json:"cors_origins" yaml:"cors_origins"`
	LawFile     string `json:"law_file" yaml:"law_file"`
}

// DefaultConfig returns a Config with sensible defaults for local inference.
// Database is stored in ~/.lawqa/lawqa.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "lawqa",
		StorageDir: "home",
		LogLevel:   "info",
		Chat: llm.Config{
			Provider: "ollama",
			Model:    "gemma3:4b",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: llm.Config{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		EmbeddingDim: 768,
		Generation: generate.Options{
			English:     2,
			Bangla:      1,
			Concurrency: 4,
		},
		Context: ContextConfig{
			Concurrency: 4,
		},
		Dedupe: DedupeConfig{
			Threshold: 0.95,
			Neighbors: 5,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Training: finetune.Default(),
	}
}

// LoadConfig reads a YAML or JSON config file on top of DefaultConfig and
// applies environment overrides. An empty path yields the defaults plus
// environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if strings.EqualFold(filepath.Ext(path), ".json") {
			err = json.Unmarshal(data, &cfg)
		} else {
			err = yaml.Unmarshal(data, &cfg)
		}
		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from LAWQA_* environment variables.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.DBPath, "LAWQA_DB_PATH")
	set(&c.LogLevel, "LAWQA_LOG_LEVEL")
	set(&c.Chat.Provider, "LAWQA_CHAT_PROVIDER")
	set(&c.Chat.BaseURL, "LAWQA_CHAT_BASE_URL")
	set(&c.Chat.APIKey, "LAWQA_CHAT_API_KEY")
	set(&c.Chat.Model, "OLLAMA_MODEL")
	set(&c.Chat.Model, "LAWQA_CHAT_MODEL")
	set(&c.Embedding.Provider, "LAWQA_EMBED_PROVIDER")
	set(&c.Embedding.BaseURL, "LAWQA_EMBED_BASE_URL")
	set(&c.Embedding.APIKey, "LAWQA_EMBED_API_KEY")
	set(&c.Embedding.Model, "LAWQA_EMBED_MODEL")
	set(&c.Server.APIKey, "LAWQA_API_KEY")
	set(&c.Server.CORSOrigins, "LAWQA_CORS_ORIGINS")

	// Fallback: well-known provider env vars for API keys.
	for _, p := range []*llm.Config{&c.Chat, &c.Embedding} {
		if p.APIKey != "" {
			continue
		}
		switch p.Provider {
		case "openai":
			p.APIKey = os.Getenv("OPENAI_API_KEY")
		case "groq":
			p.APIKey = os.Getenv("GROQ_API_KEY")
		case "openrouter":
			p.APIKey = os.Getenv("OPENROUTER_API_KEY")
		case "gemini":
			p.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Chat.Provider == "":
		return fmt.Errorf("%w: chat provider is empty", ErrInvalidConfig)
	case c.EmbeddingDim <= 0:
		return fmt.Errorf("%w: embedding_dim must be positive", ErrInvalidConfig)
	case c.Dedupe.Threshold < 0 || c.Dedupe.Threshold > 1:
		return fmt.Errorf("%w: dedupe threshold %.2f outside [0,1]", ErrInvalidConfig, c.Dedupe.Threshold)
	case c.Generation.English < 0 || c.Generation.Bangla < 0:
		return fmt.Errorf("%w: negative pair count", ErrInvalidConfig)
	}
	return nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "lawqa"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".lawqa", name+".db")
	}
}
