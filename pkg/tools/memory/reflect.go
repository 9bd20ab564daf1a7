package memory

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/theapemachine/closer/pkg/synthesis"
	"github.com/theapemachine/closer/pkg/tools"
)

// ReflectTool exposes depth-bounded reflection.
type ReflectTool struct {
	handle      mcp.Tool
	synthesizer Synthesizer
	logger      *log.Logger
}

// NewReflectTool creates the reflect tool.
func NewReflectTool(synthesizer Synthesizer, logger *log.Logger) *ReflectTool {
	return &ReflectTool{
		handle: mcp.NewTool(
			"reflect",
			mcp.WithDescription(`Reflect on stored memories at increasing depth.

Depth 1 names the emotions present, depth 2 traces their causes and
patterns, depth 3 reflects on the act of reflecting and is terminal. The
output ends with a marker such as [depth 2/3].`),
			mcp.WithString(
				"topic",
				mcp.Description("What to reflect on; omit to reflect on emotional patterns in general"),
			),
			mcp.WithNumber(
				"depth",
				mcp.Description("Reflection depth from 1 to 3"),
				mcp.DefaultNumber(synthesis.MinDepth),
				mcp.Min(synthesis.MinDepth),
				mcp.Max(synthesis.MaxDepth),
			),
		),
		synthesizer: synthesizer,
		logger:      logger,
	}
}

// Handle returns the MCP tool definition
func (tool *ReflectTool) Handle() mcp.Tool {
	return tool.handle
}

// Handler reflects. Depth accepts numbers and numeric strings; anything
// else is read as depth 1.
func (tool *ReflectTool) Handler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	depth := synthesis.MinDepth
	if raw, ok := request.GetArguments()["depth"]; ok && raw != nil {
		depth = synthesis.ParseDepth(raw)
	}

	topic := request.GetString("topic", "")

	return tools.NewTextResult(tool.synthesizer.Reflect(ctx, topic, depth)), nil
}
