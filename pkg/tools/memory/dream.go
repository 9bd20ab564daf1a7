package memory

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/theapemachine/closer/pkg/synthesis"
	"github.com/theapemachine/closer/pkg/tools"
)

// DreamTool exposes memory-to-dream synthesis.
type DreamTool struct {
	handle      mcp.Tool
	synthesizer Synthesizer
	logger      *log.Logger
}

// NewDreamTool creates the dream tool.
func NewDreamTool(synthesizer Synthesizer, logger *log.Logger) *DreamTool {
	return &DreamTool{
		handle: mcp.NewTool(
			"dream",
			mcp.WithDescription(`Remix stored memories into a short dream.

Memories matching the theme are blended into a sensory, atmospheric piece of
at most a few hundred tokens. Returns a fixed notice when there are no
memories yet.`),
			mcp.WithString(
				"theme",
				mcp.Description("Optional focus for the dream"),
			),
			mcp.WithString(
				"depth",
				mcp.Description("Synthesis style"),
				mcp.Enum(synthesis.StyleSurface, synthesis.StyleDeep, synthesis.StylePoetic, synthesis.StyleAnalytical),
				mcp.DefaultString(synthesis.StyleDeep),
			),
		),
		synthesizer: synthesizer,
		logger:      logger,
	}
}

// Handle returns the MCP tool definition
func (tool *DreamTool) Handle() mcp.Tool {
	return tool.handle
}

// Handler dreams.
func (tool *DreamTool) Handler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	theme := request.GetString("theme", "")
	style := request.GetString("depth", synthesis.StyleDeep)

	tool.logger.Debug("dreaming", "theme", theme, "style", style)

	return tools.NewTextResult(tool.synthesizer.Dream(ctx, theme, style)), nil
}
