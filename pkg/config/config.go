// Package config provides centralized configuration management for closer.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultOpenAIBaseURL is the public OpenAI endpoint. Any other base URL is
// treated as a local or self-hosted OpenAI-compatible server.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// localAPIKey is sent to self-hosted endpoints that ignore authentication.
const localAPIKey = "local-key"

// ErrMissingCredentials is the only configuration error that aborts startup.
var ErrMissingCredentials = errors.New("missing required credentials")

// Config holds the complete configuration for the application
type Config struct {
	Log struct {
		Level  string
		Format string
	}

	// Memory store configuration
	Memory struct {
		// TestMode is tri-state: nil lets the environment decide.
		TestMode       *bool
		DataDir        string
		Engine         string
		Compress       bool
		Timeout        time.Duration
		QueryCacheSize int64

		Qdrant struct {
			Host   string
			Port   int
			APIKey string
			UseTLS bool
		}
	}

	// OpenAI-compatible endpoint used for embeddings and, by default, completions
	OpenAI struct {
		APIKey         string
		BaseURL        string
		EmbeddingModel string
		Dimensions     int
	}

	Anthropic struct {
		APIKey string
	}

	Completion struct {
		Provider    string
		Model       string
		Temperature float64
		Timeout     time.Duration
	}

	Reflect struct {
		MinContext      int
		MaxContext      int
		ContextPerDepth int
		BaseTokens      int
		TokensPerDepth  int
		MaxTokens       int
	}

	Dream struct {
		MemoryBudget    int
		MaxOutputTokens int
	}

	MCP struct {
		Transport string
		Host      string
		Port      int
	}
}

// Load reads configuration from defaults, an optional config file, a .env
// file and the environment, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("closer")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider conventions that predate the CLOSER_ prefix.
	bindings := map[string][]string{
		"openai.api_key":        {"CLOSER_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"openai.base_url":       {"CLOSER_OPENAI_BASE_URL", "OPENAI_BASE_URL"},
		"anthropic.api_key":     {"CLOSER_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
		"memory.qdrant.host":    {"CLOSER_MEMORY_QDRANT_HOST", "QDRANT_HOST"},
		"memory.qdrant.port":    {"CLOSER_MEMORY_QDRANT_PORT", "QDRANT_PORT"},
		"memory.qdrant.api_key": {"CLOSER_MEMORY_QDRANT_API_KEY", "QDRANT_API_KEY"},
		"mcp.transport":         {"CLOSER_MCP_TRANSPORT", "MCP_TRANSPORT"},
		"mcp.host":              {"CLOSER_MCP_HOST", "MCP_HOST"},
		"mcp.port":              {"CLOSER_MCP_PORT", "MCP_PORT"},
	}

	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("closer")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}

	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")

	if v.IsSet("memory.test_mode") {
		testMode := v.GetBool("memory.test_mode")
		cfg.Memory.TestMode = &testMode
	}
	cfg.Memory.DataDir = v.GetString("memory.data_dir")
	cfg.Memory.Engine = strings.ToLower(v.GetString("memory.engine"))
	cfg.Memory.Compress = v.GetBool("memory.compress")
	cfg.Memory.Timeout = v.GetDuration("memory.timeout")
	cfg.Memory.QueryCacheSize = v.GetInt64("memory.query_cache_size")
	cfg.Memory.Qdrant.Host = v.GetString("memory.qdrant.host")
	cfg.Memory.Qdrant.Port = v.GetInt("memory.qdrant.port")
	cfg.Memory.Qdrant.APIKey = v.GetString("memory.qdrant.api_key")
	cfg.Memory.Qdrant.UseTLS = v.GetBool("memory.qdrant.use_tls")

	cfg.OpenAI.APIKey = v.GetString("openai.api_key")
	cfg.OpenAI.BaseURL = strings.TrimRight(v.GetString("openai.base_url"), "/")
	cfg.OpenAI.EmbeddingModel = v.GetString("openai.embedding_model")
	cfg.OpenAI.Dimensions = v.GetInt("openai.dimensions")

	// Self-hosted endpoints (llama.cpp, Ollama) accept any key.
	if cfg.OpenAI.APIKey == "" && cfg.OpenAI.BaseURL != DefaultOpenAIBaseURL {
		cfg.OpenAI.APIKey = localAPIKey
	}

	cfg.Anthropic.APIKey = v.GetString("anthropic.api_key")

	cfg.Completion.Provider = strings.ToLower(v.GetString("completion.provider"))
	cfg.Completion.Model = v.GetString("completion.model")
	cfg.Completion.Temperature = v.GetFloat64("completion.temperature")
	cfg.Completion.Timeout = v.GetDuration("completion.timeout")

	cfg.Reflect.MinContext = v.GetInt("reflect.min_context")
	cfg.Reflect.MaxContext = v.GetInt("reflect.max_context")
	cfg.Reflect.ContextPerDepth = v.GetInt("reflect.context_per_depth")
	cfg.Reflect.BaseTokens = v.GetInt("reflect.base_tokens")
	cfg.Reflect.TokensPerDepth = v.GetInt("reflect.tokens_per_depth")
	cfg.Reflect.MaxTokens = v.GetInt("reflect.max_tokens")

	cfg.Dream.MemoryBudget = v.GetInt("dream.memory_budget")
	cfg.Dream.MaxOutputTokens = v.GetInt("dream.max_output_tokens")

	cfg.MCP.Transport = strings.ToLower(v.GetString("mcp.transport"))
	cfg.MCP.Host = v.GetString("mcp.host")
	cfg.MCP.Port = v.GetInt("mcp.port")

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("memory.engine", "chromem")
	v.SetDefault("memory.compress", false)
	v.SetDefault("memory.timeout", 30*time.Second)
	v.SetDefault("memory.query_cache_size", 1000)
	v.SetDefault("memory.qdrant.host", "localhost")
	v.SetDefault("memory.qdrant.port", 6334)
	v.SetDefault("memory.qdrant.use_tls", false)

	v.SetDefault("openai.base_url", DefaultOpenAIBaseURL)
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.dimensions", 1536)

	v.SetDefault("completion.provider", "openai")
	v.SetDefault("completion.model", "gpt-4.1")
	v.SetDefault("completion.temperature", 0.8)
	v.SetDefault("completion.timeout", 60*time.Second)

	v.SetDefault("reflect.min_context", 3)
	v.SetDefault("reflect.max_context", 8)
	v.SetDefault("reflect.context_per_depth", 2)
	v.SetDefault("reflect.base_tokens", 200)
	v.SetDefault("reflect.tokens_per_depth", 150)
	v.SetDefault("reflect.max_tokens", 800)

	v.SetDefault("dream.memory_budget", 8)
	v.SetDefault("dream.max_output_tokens", 350)

	v.SetDefault("mcp.transport", "stdio")
	v.SetDefault("mcp.host", "0.0.0.0")
	v.SetDefault("mcp.port", 8000)
}

// loadDotEnv lets a .env file override the process environment, the way
// the companion has always been configured locally.
func loadDotEnv() error {
	path := os.Getenv("CLOSER_ENV_FILE")
	if path == "" {
		path = ".env"
	}

	if _, err := os.Stat(path); err != nil {
		return nil
	}

	if err := godotenv.Overload(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	return nil
}

// Validate checks if all required configuration values are set
func (c *Config) Validate() error {
	var errs []string

	if c.OpenAI.APIKey == "" {
		errs = append(errs, "OPENAI_API_KEY is required for embeddings")
	}

	if c.Completion.Provider == "anthropic" && c.Anthropic.APIKey == "" {
		errs = append(errs, "ANTHROPIC_API_KEY is required when completion.provider is anthropic")
	}

	if c.Memory.Engine == "qdrant" && c.Memory.Qdrant.Host == "" {
		errs = append(errs, "memory.qdrant.host is required when memory.engine is qdrant")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(errs, "; "))
	}

	return nil
}
