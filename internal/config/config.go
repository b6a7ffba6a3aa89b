package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all memorylayer configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Context    ContextConfig    `yaml:"context"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	LLM        LLMConfig        `yaml:"llm"`
	Compaction CompactionConfig `yaml:"compaction"`
	Log        LogConfig        `yaml:"log"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Hooks      HooksConfig      `yaml:"hooks"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ContextConfig holds the two independent ceilings: the session-wide limit
// the health monitor scores against and the per-query assembly budget.
type ContextConfig struct {
	TokenLimit int `yaml:"token_limit"`
	MaxTokens  int `yaml:"max_tokens"`
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "auto", "ollama", "openai", "tfidf"
	Model     string `yaml:"model"`
	OllamaURL string `yaml:"ollama_url"`
	OpenAIKey string `yaml:"openai_key"`
	BaseURL   string `yaml:"base_url"`
	MaxTerms  int    `yaml:"max_terms"`  // tfidf vocabulary size
	CacheSize int    `yaml:"cache_size"` // embedding LRU entries, 0 disables
}

type LLMConfig struct {
	Provider     string `yaml:"provider"` // "", "claude-cli", "anthropic", "ollama", "openai"
	Model        string `yaml:"model"`
	OllamaURL    string `yaml:"ollama_url"`
	AnthropicKey string `yaml:"anthropic_key"`
	OpenAIKey    string `yaml:"openai_key"`
	BaseURL      string `yaml:"base_url"`
}

type CompactionConfig struct {
	Schedule       string `yaml:"schedule"` // cron spec for auto compaction, empty disables
	PreserveRecent int    `yaml:"preserve_recent"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // "text" or "json"
	File       string `yaml:"file"`   // rotated with lumberjack when set
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
	Insecure     bool   `yaml:"insecure"`
}

type HooksConfig struct {
	Enabled bool `yaml:"enabled"`
	Timeout int  `yaml:"timeout"` // seconds
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Context: ContextConfig{
			TokenLimit: 100000,
			MaxTokens:  6000,
		},
		Embedding: EmbeddingConfig{
			Provider:  "auto",
			Model:     "nomic-embed-text",
			OllamaURL: "http://localhost:11434",
			MaxTerms:  512,
			CacheSize: 1024,
		},
		Compaction: CompactionConfig{
			Schedule:       "@every 10m",
			PreserveRecent: 10,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "memorylayer",
		},
		Hooks: HooksConfig{
			Enabled: true,
			Timeout: 30,
		},
	}
}

// DefaultPath returns ~/.memorylayer/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".memorylayer", "config.yaml"), nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// ApplyEnv overrides fields from well-known environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MEMORYLAYER_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("MEMORYLAYER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("MEMORYLAYER_TOKEN_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Context.TokenLimit = n
		}
	}
	if v := os.Getenv("MEMORYLAYER_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Context.MaxTokens = n
		}
	}
	if v := os.Getenv("MEMORYLAYER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && c.LLM.AnthropicKey == "" {
		c.LLM.AnthropicKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "anthropic"
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.LLM.OpenAIKey == "" {
			c.LLM.OpenAIKey = key
		}
		if c.Embedding.OpenAIKey == "" {
			c.Embedding.OpenAIKey = key
		}
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" && c.Telemetry.OTLPEndpoint == "" {
		c.Telemetry.OTLPEndpoint = v
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Context.TokenLimit <= 0 {
		errs = append(errs, fmt.Errorf("context.token_limit must be positive, got %d", c.Context.TokenLimit))
	}
	if c.Context.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("context.max_tokens must be positive, got %d", c.Context.MaxTokens))
	}
	if c.Compaction.PreserveRecent < 0 {
		errs = append(errs, fmt.Errorf("compaction.preserve_recent must not be negative"))
	}
	switch c.Embedding.Provider {
	case "", "auto", "ollama", "openai", "tfidf":
	default:
		errs = append(errs, fmt.Errorf("embedding.provider %q unknown", c.Embedding.Provider))
	}
	switch c.LLM.Provider {
	case "", "claude-cli", "anthropic", "ollama", "openai":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q unknown", c.LLM.Provider))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q unknown", c.Log.Format))
	}
	return errors.Join(errs...)
}
