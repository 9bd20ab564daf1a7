// Package memorytest provides deterministic stand-ins for the external
// services a memory store talks to.
package memorytest

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrEmbed is returned by a FailingEmbedder.
var ErrEmbed = errors.New("embedding service unavailable")

// HashEmbedder generates deterministic embeddings from the words of a text.
// Each whitespace-separated word (case preserved) seeds a pseudo-random unit
// vector and the text embeds as their normalized sum, so texts that share
// words land close together and "Fallujah" differs from "fallujah".
type HashEmbedder struct {
	dimensions int
	calls      atomic.Int64
}

// NewHashEmbedder creates a hash embedder of the given size (384 if <= 0).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}

	return &HashEmbedder{dimensions: dimensions}
}

// Embed creates a deterministic embedding from text.
func (embedder *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embedder.calls.Add(1)

	sum := make([]float32, embedder.dimensions)
	words := strings.Fields(text)

	if len(words) == 0 {
		words = []string{text}
	}

	for _, word := range words {
		for i, v := range wordVector(word, embedder.dimensions) {
			sum[i] += v
		}
	}

	return normalize(sum), nil
}

// Dimensions returns the embedding size.
func (embedder *HashEmbedder) Dimensions() int {
	return embedder.dimensions
}

// Calls returns how many texts were embedded.
func (embedder *HashEmbedder) Calls() int {
	return int(embedder.calls.Load())
}

func wordVector(word string, dimensions int) []float32 {
	h := fnv.New64a()
	h.Write([]byte(word))
	seed := h.Sum64()

	vec := make([]float32, dimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(vec)
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}

	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	for i := range vec {
		vec[i] /= norm
	}

	return vec
}

// FailingEmbedder fails every call while Fail(true) is in effect.
type FailingEmbedder struct {
	*HashEmbedder
	mu      sync.Mutex
	failing bool
}

// NewFailingEmbedder returns an embedder that starts out failing.
func NewFailingEmbedder(dimensions int) *FailingEmbedder {
	return &FailingEmbedder{
		HashEmbedder: NewHashEmbedder(dimensions),
		failing:      true,
	}
}

// Embed fails with ErrEmbed while the embedder is failing.
func (embedder *FailingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embedder.mu.Lock()
	failing := embedder.failing
	embedder.mu.Unlock()

	if failing {
		return nil, ErrEmbed
	}

	return embedder.HashEmbedder.Embed(ctx, text)
}

// Fail toggles the failure mode.
func (embedder *FailingEmbedder) Fail(failing bool) {
	embedder.mu.Lock()
	defer embedder.mu.Unlock()

	embedder.failing = failing
}

// BlockingEmbedder hangs until the context is done while blocking is on.
type BlockingEmbedder struct {
	*HashEmbedder
	blocking atomic.Bool
}

// NewBlockingEmbedder returns an embedder that starts out answering.
func NewBlockingEmbedder(dimensions int) *BlockingEmbedder {
	return &BlockingEmbedder{HashEmbedder: NewHashEmbedder(dimensions)}
}

// Embed waits for ctx while blocking, then returns its error.
func (embedder *BlockingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if embedder.blocking.Load() {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	return embedder.HashEmbedder.Embed(ctx, text)
}

// Block toggles the hanging mode.
func (embedder *BlockingEmbedder) Block(blocking bool) {
	embedder.blocking.Store(blocking)
}
