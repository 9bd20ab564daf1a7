// Package core defines the contract every MCP tool exposed by closer meets.
package core

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// Tool pairs an MCP tool definition with the handler that serves it.
type Tool interface {
	Handle() mcp.Tool
	Handler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
}
