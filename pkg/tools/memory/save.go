package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/theapemachine/closer/pkg/tools"
)

const previewRunes = 50

// SaveTool persists a short impression.
type SaveTool struct {
	handle mcp.Tool
	store  Store
	logger *log.Logger
}

// NewSaveTool creates the save_memory tool.
func NewSaveTool(store Store, logger *log.Logger) *SaveTool {
	return &SaveTool{
		handle: mcp.NewTool(
			"save_memory",
			mcp.WithDescription(`Persist a brief (at most 40 words) impression that should shape future dialogue.

Save when a vulnerability, confession or desire surfaces, a decision or
narrative pivot occurs, a recurring theme crystallises, a personal symbol or
in-joke is coined, or a dream or scene feels worth revisiting.

Do not save small talk, logistics or trivia. Capture the essence with one or
two key phrases, in the third person ("User admits...", "We decide...").

Returns a confirmation preview of the stored text.`),
			mcp.WithString(
				"note_content",
				mcp.Required(),
				mcp.Description("The impression to remember"),
			),
		),
		store:  store,
		logger: logger,
	}
}

// Handle returns the MCP tool definition
func (tool *SaveTool) Handle() mcp.Tool {
	return tool.handle
}

// Handler stores the note and returns a preview.
func (tool *SaveTool) Handler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	note, err := request.RequireString("note_content")
	if err != nil || strings.TrimSpace(note) == "" {
		return tools.NewErrorResult(tools.InvalidParams("note_content is required")), nil
	}

	key, err := tool.store.Add(ctx, note)
	if err != nil {
		tool.logger.Error("save_memory failed", "error", err)
		return tools.NewErrorResult(fmt.Errorf("%w: memory not saved: %w", tools.ErrExternalAPIError, err)), nil
	}

	tool.logger.Info("memory saved", "key", key)

	return tools.NewTextResult(fmt.Sprintf("Memory saved: '%s'", preview(note))), nil
}

func preview(note string) string {
	runes := []rune(note)

	if len(runes) > previewRunes {
		return string(runes[:previewRunes]) + "..."
	}

	return note
}
