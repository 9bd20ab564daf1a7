package memory

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/theapemachine/closer/pkg/tools"
	"github.com/theapemachine/closer/pkg/tools/ai/provider"
)

// GetResult is the structured answer of get_memory.
type GetResult struct {
	Key   int    `json:"key" jsonschema_description:"The requested key"`
	Found bool   `json:"found" jsonschema_description:"Whether a memory exists under the key"`
	Text  string `json:"text" jsonschema_description:"The stored impression, empty when not found"`
}

// GetTool reads one memory by key.
type GetTool struct {
	handle mcp.Tool
	store  Store
	logger *log.Logger
}

// NewGetTool creates the get_memory tool.
func NewGetTool(store Store, logger *log.Logger) *GetTool {
	return &GetTool{
		handle: mcp.NewTool(
			"get_memory",
			mcp.WithDescription("Fetch a single stored memory by the key save_memory assigned to it."),
			mcp.WithNumber(
				"key",
				mcp.Required(),
				mcp.Description("The memory key"),
				mcp.Min(0),
			),
			mcp.WithRawOutputSchema(tools.OutputSchema(provider.GenerateSchema[GetResult]())),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		store:  store,
		logger: logger,
	}
}

// Handle returns the MCP tool definition
func (tool *GetTool) Handle() mcp.Tool {
	return tool.handle
}

// Handler looks the key up.
func (tool *GetTool) Handler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := request.RequireInt("key")
	if err != nil {
		return tools.NewErrorResult(tools.InvalidParams("key must be an integer")), nil
	}

	text, ok := tool.store.Get(ctx, key)

	return tools.NewStructuredResult(GetResult{Key: key, Found: ok, Text: text}), nil
}
