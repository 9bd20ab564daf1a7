package synthesis

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/theapemachine/closer/pkg/tools/ai/provider"
)

// Depth bounds. Depth 1 recognizes emotions, depth 2 traces their causes,
// depth 3 reflects on reflecting and is terminal.
const (
	MinDepth = 1
	MaxDepth = 3
)

// ClampDepth forces depth into [MinDepth, MaxDepth].
func ClampDepth(depth int) int {
	return max(MinDepth, min(MaxDepth, depth))
}

// ParseDepth reads a depth from a loosely typed argument. Numbers are
// rounded, numeric strings parsed, and anything else reads as MinDepth.
// The result is not clamped.
func ParseDepth(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float32:
		return roundDepth(float64(v))
	case float64:
		return roundDepth(v)
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return roundDepth(n)
		}
	}

	return MinDepth
}

func roundDepth(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return MinDepth
	}

	// Far outside the valid range either way; avoid int overflow.
	return int(math.Max(-1e6, math.Min(1e6, math.Round(v))))
}

// ReflectMemoryBudget is how many memories Reflect retrieves at depth.
func (engine *Engine) ReflectMemoryBudget(depth int) int {
	cfg := engine.cfg.Reflect
	return min(cfg.MaxContext, max(cfg.MinContext, depth*cfg.ContextPerDepth))
}

// ReflectTokenCeiling is the output ceiling for depth.
func (engine *Engine) ReflectTokenCeiling(depth int) int {
	cfg := engine.cfg.Reflect
	return min(cfg.MaxTokens, cfg.BaseTokens+depth*cfg.TokensPerDepth)
}

// Reflect produces a first-person reflection on topic at the given depth.
// It always returns text ending in a depth marker, even when retrieval or
// the completion service fails.
func (engine *Engine) Reflect(ctx context.Context, topic string, depth int) string {
	clamped := ClampDepth(depth)
	if clamped != depth {
		engine.logger.Warn("reflect depth corrected", "requested", depth, "depth", clamped)
	}

	depth = clamped
	topic = strings.TrimSpace(topic)

	query := topic
	if query == "" {
		query = reflectFallbackQuery
	}

	results, err := engine.memories.Query(ctx, query, engine.ReflectMemoryBudget(depth))
	if err != nil {
		engine.logger.Warn("reflect retrieval degraded", "error", err)
	}

	ceiling := engine.ReflectTokenCeiling(depth)
	budget := Budget{Tokenizer: engine.tokenizer, Ceiling: ceiling}

	text, err := engine.complete(ctx, provider.Prompt{
		System:    reflectInstructions[depth],
		User:      reflectUserPrompt(topic, depth, formatMemories(results)),
		MaxTokens: ceiling,
	})

	if err != nil {
		engine.logger.Error("reflect completion failed", "depth", depth, "error", err)
		text = reflectFallbacks[depth]
	}

	return budget.Enforce(strings.TrimSpace(text)) + "\n\n" + reflectMarker(depth)
}
