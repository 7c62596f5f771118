// Package config provides environment-driven application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	LLM    LLMConfig
	Memory MemoryConfig
	Tools  ToolsConfig
	Web    WebConfig
	Log    LogConfig
}

// LLMConfig selects and parameterizes the model provider.
type LLMConfig struct {
	Provider         string // "anthropic", "openai", "openrouter", "ollama"
	Model            string
	AnthropicAPIKey  string
	OpenAIAPIKey     string
	OpenRouterAPIKey string
	OllamaURL        string
	MaxTokens        int
	Temperature      float64
	Timeout          time.Duration
}

// MemoryConfig configures the structured store and the semantic index.
type MemoryConfig struct {
	DBPath        string
	VectorDBPath  string
	MaxChars      int     // context window budget, character proxy for tokens
	MinSimilarity float64 // retrieval threshold
	RetrieveLimit int
}

// ToolsConfig configures the tool dispatcher.
type ToolsConfig struct {
	Enabled []string
}

// WebConfig configures the HTTP server.
type WebConfig struct {
	Host string
	Port string
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		LLM: LLMConfig{
			Provider:         getEnv("LLM_PROVIDER", "anthropic"),
			Model:            getEnv("LLM_MODEL", ""),
			AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
			OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
			MaxTokens:        getEnvInt("MAX_TOKENS", 4000),
			Temperature:      getEnvFloat("TEMPERATURE", 0.7),
			Timeout:          time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 120)) * time.Second,
		},
		Memory: MemoryConfig{
			DBPath:        getEnv("MEMORY_DB_PATH", "./data/memory.db"),
			VectorDBPath:  getEnv("VECTOR_DB_PATH", "./data/vectors"),
			MaxChars:      getEnvInt("MAX_CONTEXT_CHARS", 2000),
			MinSimilarity: getEnvFloat("MIN_SIMILARITY", 0.7),
			RetrieveLimit: getEnvInt("RETRIEVE_LIMIT", 5),
		},
		Tools: ToolsConfig{
			Enabled: splitList(getEnv("ENABLED_TOOLS", "web_search,calculator,file_operations")),
		},
		Web: WebConfig{
			Host: getEnv("HOST", "127.0.0.1"),
			Port: getEnv("PORT", "8080"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that required configuration is present for the
// selected provider.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic":
		if c.LLM.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for provider %q", c.LLM.Provider)
		}
	case "openai":
		if c.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for provider %q", c.LLM.Provider)
		}
	case "openrouter":
		if c.LLM.OpenRouterAPIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required for provider %q", c.LLM.Provider)
		}
	case "ollama":
		if c.LLM.OllamaURL == "" {
			return fmt.Errorf("OLLAMA_URL cannot be empty for provider %q", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unsupported provider: %s", c.LLM.Provider)
	}

	if c.Memory.DBPath == "" {
		return fmt.Errorf("MEMORY_DB_PATH cannot be empty")
	}
	if c.Memory.MaxChars <= 0 {
		return fmt.Errorf("MAX_CONTEXT_CHARS must be > 0")
	}
	if c.Memory.MinSimilarity < 0 || c.Memory.MinSimilarity > 1 {
		return fmt.Errorf("MIN_SIMILARITY must be within [0, 1]")
	}
	if c.Web.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
