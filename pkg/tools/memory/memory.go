// Package memory exposes the memory store and the synthesis engine as MCP
// tools.
package memory

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/closer/core"
	"github.com/theapemachine/closer/pkg/logger"
	memstore "github.com/theapemachine/closer/pkg/memory"
)

// Store is the part of the memory store the tools use.
type Store interface {
	Add(ctx context.Context, text string) (int, error)
	Get(ctx context.Context, key int) (string, bool)
	Query(ctx context.Context, text string, k int) ([]memstore.Result, error)
	Count() int
}

// Synthesizer produces reflections and dreams.
type Synthesizer interface {
	Reflect(ctx context.Context, topic string, depth int) string
	Dream(ctx context.Context, theme string, style string) string
}

// Tools returns every memory tool, in registration order.
func Tools(store Store, synthesizer Synthesizer, log *log.Logger) []core.Tool {
	log = logger.Or(log).WithPrefix("tools")

	return []core.Tool{
		NewSaveTool(store, log),
		NewGetTool(store, log),
		NewQueryTool(store, log),
		NewReflectTool(synthesizer, log),
		NewDreamTool(synthesizer, log),
	}
}
