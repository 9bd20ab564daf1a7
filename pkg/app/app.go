// Package app wires configuration, the memory store and the synthesis
// engine into one unit shared by the MCP server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/closer/pkg/config"
	"github.com/theapemachine/closer/pkg/logger"
	"github.com/theapemachine/closer/pkg/memory"
	"github.com/theapemachine/closer/pkg/synthesis"
	"github.com/theapemachine/closer/pkg/tools/ai/provider"
)

// App owns the long-lived components of a closer process.
type App struct {
	Config    *config.Config
	Logger    *log.Logger
	Memory    *memory.Store
	Synthesis *synthesis.Engine
}

// Option overrides a component New would otherwise build from config.
type Option func(*builder)

type builder struct {
	embedder  memory.Embedder
	completer provider.Completer
	engine    memory.EngineOpener
}

// WithEmbedder replaces the OpenAI embedder.
func WithEmbedder(embedder memory.Embedder) Option {
	return func(b *builder) {
		b.embedder = embedder
	}
}

// WithCompleter replaces the configured completion provider.
func WithCompleter(completer provider.Completer) Option {
	return func(b *builder) {
		b.completer = completer
	}
}

// WithEngine replaces the configured vector engine.
func WithEngine(engine memory.EngineOpener) Option {
	return func(b *builder) {
		b.engine = engine
	}
}

// New builds the memory store and synthesis engine described by cfg.
func New(ctx context.Context, cfg *config.Config, log *log.Logger, opts ...Option) (*App, error) {
	log = logger.Or(log)

	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}

	if b.embedder == nil {
		b.embedder = memory.NewOpenAIEmbedder(memory.OpenAIEmbedderConfig{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.EmbeddingModel,
			Dimensions: cfg.OpenAI.Dimensions,
			Timeout:    cfg.Memory.Timeout,
		})
	}

	if b.engine == nil {
		engine, err := newEngineOpener(cfg, b.embedder.Dimensions())
		if err != nil {
			return nil, err
		}

		b.engine = engine
	}

	if b.completer == nil {
		completer, err := newCompleter(cfg)
		if err != nil {
			return nil, err
		}

		b.completer = completer
	}

	store, err := memory.New(ctx, memory.Options{
		TestMode:       cfg.Memory.TestMode,
		DataDir:        cfg.Memory.DataDir,
		Embedder:       b.embedder,
		QueryCacheSize: cfg.Memory.QueryCacheSize,
		Engine:         b.engine,
		Timeout:        cfg.Memory.Timeout,
		Logger:         log,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}

	engine, err := synthesis.New(store, b.completer, synthesisConfig(cfg), log)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create synthesis engine: %w", err)
	}

	return &App{
		Config:    cfg,
		Logger:    log,
		Memory:    store,
		Synthesis: engine,
	}, nil
}

// Close releases the memory store.
func (app *App) Close() error {
	return app.Memory.Close()
}

func newEngineOpener(cfg *config.Config, dimensions int) (memory.EngineOpener, error) {
	switch cfg.Memory.Engine {
	case "", "chromem":
		return memory.OpenChromem(cfg.Memory.Compress), nil
	case "qdrant":
		return memory.OpenQdrant(memory.QdrantConfig{
			Host:       cfg.Memory.Qdrant.Host,
			Port:       cfg.Memory.Qdrant.Port,
			APIKey:     cfg.Memory.Qdrant.APIKey,
			UseTLS:     cfg.Memory.Qdrant.UseTLS,
			Dimensions: dimensions,
		}), nil
	default:
		return nil, fmt.Errorf("unknown memory engine %q", cfg.Memory.Engine)
	}
}

func newCompleter(cfg *config.Config) (provider.Completer, error) {
	switch cfg.Completion.Provider {
	case "", "openai":
		return provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.Completion.Model,
			Timeout: cfg.Completion.Timeout,
		}), nil
	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, errors.Join(config.ErrMissingCredentials, errors.New("anthropic api key"))
		}

		return provider.NewAnthropicProvider(provider.AnthropicConfig{
			APIKey:  cfg.Anthropic.APIKey,
			Model:   completionModel(cfg),
			Timeout: cfg.Completion.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Completion.Provider)
	}
}

// completionModel drops the OpenAI default when another provider is chosen,
// letting that provider fall back to its own default model.
func completionModel(cfg *config.Config) string {
	if cfg.Completion.Provider == "anthropic" && strings.HasPrefix(cfg.Completion.Model, "gpt-") {
		return ""
	}

	return cfg.Completion.Model
}

func synthesisConfig(cfg *config.Config) synthesis.Config {
	return synthesis.Config{
		Reflect: synthesis.ReflectConfig{
			MinContext:      cfg.Reflect.MinContext,
			MaxContext:      cfg.Reflect.MaxContext,
			ContextPerDepth: cfg.Reflect.ContextPerDepth,
			BaseTokens:      cfg.Reflect.BaseTokens,
			TokensPerDepth:  cfg.Reflect.TokensPerDepth,
			MaxTokens:       cfg.Reflect.MaxTokens,
		},
		Dream: synthesis.DreamConfig{
			MemoryBudget:    cfg.Dream.MemoryBudget,
			MaxOutputTokens: cfg.Dream.MaxOutputTokens,
		},
		Model:       completionModel(cfg),
		Temperature: cfg.Completion.Temperature,
		Timeout:     cfg.Completion.Timeout,
	}
}
