// Package synthesis layers bounded reflection and dreaming on top of
// memory retrieval.
package synthesis

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/closer/pkg/logger"
	"github.com/theapemachine/closer/pkg/memory"
	"github.com/theapemachine/closer/pkg/tools/ai/provider"
)

// Retriever is the part of the memory store synthesis reads from.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]memory.Result, error)
}

// ReflectConfig scales Reflect with depth. The derived budgets must grow
// with depth, so every field is expected to be positive.
type ReflectConfig struct {
	MinContext      int
	MaxContext      int
	ContextPerDepth int
	BaseTokens      int
	TokensPerDepth  int
	MaxTokens       int
}

// DreamConfig bounds Dream.
type DreamConfig struct {
	MemoryBudget    int
	MaxOutputTokens int
}

// Config configures an Engine.
type Config struct {
	Reflect     ReflectConfig
	Dream       DreamConfig
	Model       string
	Temperature float64
	Timeout     time.Duration
	// TokenizerModel selects the vocabulary used to count output tokens.
	TokenizerModel string
}

// DefaultConfig returns the stock budgets.
func DefaultConfig() Config {
	return Config{
		Reflect: ReflectConfig{
			MinContext:      3,
			MaxContext:      8,
			ContextPerDepth: 2,
			BaseTokens:      200,
			TokensPerDepth:  150,
			MaxTokens:       800,
		},
		Dream: DreamConfig{
			MemoryBudget:    8,
			MaxOutputTokens: 350,
		},
		Temperature:    0.8,
		Timeout:        60 * time.Second,
		TokenizerModel: memory.DefaultEmbeddingModel,
	}
}

// Engine runs Reflect and Dream. It holds no state between calls and is
// safe for concurrent use.
type Engine struct {
	memories  Retriever
	completer provider.Completer
	tokenizer *Tokenizer
	cfg       Config
	logger    *log.Logger
}

// New creates an engine. Zero-valued budgets in cfg take the defaults.
func New(memories Retriever, completer provider.Completer, cfg Config, log *log.Logger) (*Engine, error) {
	cfg = withDefaults(cfg)

	tokenizer, err := NewTokenizer(cfg.TokenizerModel)
	if err != nil {
		return nil, err
	}

	return &Engine{
		memories:  memories,
		completer: completer,
		tokenizer: tokenizer,
		cfg:       cfg,
		logger:    logger.Or(log).WithPrefix("synthesis"),
	}, nil
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()

	fill := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}

	fill(&cfg.Reflect.MinContext, def.Reflect.MinContext)
	fill(&cfg.Reflect.MaxContext, def.Reflect.MaxContext)
	fill(&cfg.Reflect.ContextPerDepth, def.Reflect.ContextPerDepth)
	fill(&cfg.Reflect.BaseTokens, def.Reflect.BaseTokens)
	fill(&cfg.Reflect.TokensPerDepth, def.Reflect.TokensPerDepth)
	fill(&cfg.Reflect.MaxTokens, def.Reflect.MaxTokens)
	fill(&cfg.Dream.MemoryBudget, def.Dream.MemoryBudget)
	fill(&cfg.Dream.MaxOutputTokens, def.Dream.MaxOutputTokens)

	if cfg.Reflect.MaxContext < cfg.Reflect.MinContext {
		cfg.Reflect.MaxContext = cfg.Reflect.MinContext
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	if cfg.TokenizerModel == "" {
		cfg.TokenizerModel = def.TokenizerModel
	}

	return cfg
}

// Tokenizer returns the tokenizer output budgets are measured with.
func (engine *Engine) Tokenizer() *Tokenizer {
	return engine.tokenizer
}

func (engine *Engine) complete(ctx context.Context, prompt provider.Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, engine.cfg.Timeout)
	defer cancel()

	prompt.Model = engine.cfg.Model
	prompt.Temperature = engine.cfg.Temperature

	return engine.completer.Complete(ctx, prompt)
}
