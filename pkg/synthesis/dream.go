package synthesis

import (
	"context"
	"strings"

	"github.com/theapemachine/closer/pkg/tools/ai/provider"
)

// NormalizeStyle maps style onto a supported dream style, defaulting to
// StyleDeep.
func NormalizeStyle(style string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(style))

	if _, ok := dreamInstructions[normalized]; ok {
		return normalized, true
	}

	return StyleDeep, false
}

// Dream weaves retrieved memories into a dream in the given style. The
// result never exceeds the configured token ceiling.
func (engine *Engine) Dream(ctx context.Context, theme string, style string) string {
	normalized, ok := NormalizeStyle(style)
	if !ok {
		engine.logger.Warn("dream style corrected", "requested", style, "style", normalized)
	}

	theme = strings.TrimSpace(theme)

	query := theme
	if query == "" {
		query = dreamFallbackQuery
	}

	results, err := engine.memories.Query(ctx, query, engine.cfg.Dream.MemoryBudget)
	if err != nil {
		engine.logger.Warn("dream retrieval degraded", "error", err)
		return UnreachableVault
	}

	if len(results) == 0 {
		return EmptyVault
	}

	budget := Budget{Tokenizer: engine.tokenizer, Ceiling: engine.cfg.Dream.MaxOutputTokens}

	text, err := engine.complete(ctx, provider.Prompt{
		System:    dreamInstructions[normalized],
		User:      dreamUserPrompt(theme, formatMemories(results)),
		MaxTokens: engine.cfg.Dream.MaxOutputTokens,
	})

	if err != nil {
		engine.logger.Error("dream completion failed", "style", normalized, "error", err)
		text = dreamFallback
	}

	return budget.Enforce(strings.TrimSpace(text))
}
