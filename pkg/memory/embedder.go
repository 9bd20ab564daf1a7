package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultEmbeddingModel is used for both adds and queries.
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultDimensions matches DefaultEmbeddingModel.
	DefaultDimensions = 1536
)

// Embedder turns text into a vector. The same model must serve adds and
// queries for distances to be meaningful.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// OpenAIEmbedder handles text to vector conversion using an
// OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	model      string
	dimensions int
	client     openai.Client
}

// OpenAIEmbedderConfig configures NewOpenAIEmbedder.
type OpenAIEmbedderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// NewOpenAIEmbedder creates a new embedder using OpenAI's API
func NewOpenAIEmbedder(cfg OpenAIEmbedderConfig) *OpenAIEmbedder {
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}

	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAIEmbedder{
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     openai.NewClient(opts...),
	}
}

// Embed returns the embedding of text.
func (embedder *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: embedder.model,
	}

	// Only the text-embedding-3 family accepts a dimensions override.
	if strings.HasPrefix(embedder.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(embedder.dimensions))
	}

	resp, err := embedder.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("embedding response contained no vectors")
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}

	return vector, nil
}

// Dimensions returns the configured vector size.
func (embedder *OpenAIEmbedder) Dimensions() int {
	return embedder.dimensions
}

// CachedEmbedder memoizes query embeddings in a bounded cache. The store
// only routes query text through it; record embeddings are always fresh.
type CachedEmbedder struct {
	Embedder
	cache *ristretto.Cache
}

// NewCachedEmbedder wraps embedder with a cache of at most size vectors.
func NewCachedEmbedder(embedder Embedder, size int64) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 1000
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	return &CachedEmbedder{
		Embedder: embedder,
		cache:    cache,
	}, nil
}

// Embed returns the cached vector for text or computes and caches it.
func (embedder *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := embedder.cache.Get(text); ok {
		if vector, ok := cached.([]float32); ok {
			return vector, nil
		}
	}

	vector, err := embedder.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	embedder.cache.Set(text, vector, 1)

	return vector, nil
}

// Close stops the cache's background goroutines.
func (embedder *CachedEmbedder) Close() {
	embedder.cache.Close()
}
