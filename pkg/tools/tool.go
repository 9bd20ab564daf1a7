// Package tools provides the shared plumbing for closer's MCP tools
package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// Standard errors for consistent error handling
var (
	ErrInvalidParams    = errors.New("invalid parameters")
	ErrExternalAPIError = errors.New("external API error")
	ErrInternalError    = errors.New("internal server error")
)

// InvalidParams wraps a validation failure in ErrInvalidParams.
func InvalidParams(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}

// NewErrorResult creates a standard error result
func NewErrorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}

// NewTextResult creates a standard text result
func NewTextResult(text string) *mcp.CallToolResult {
	return mcp.NewToolResultText(text)
}

// NewStructuredResult returns v as structured content with its JSON
// encoding as the text fallback for clients without structured support.
func NewStructuredResult(v any) *mcp.CallToolResult {
	buf, err := json.Marshal(v)
	if err != nil {
		return NewErrorResult(fmt.Errorf("%w: %v", ErrInternalError, err))
	}

	return mcp.NewToolResultStructured(v, string(buf))
}

// OutputSchema marshals a reflected schema for mcp.WithRawOutputSchema.
func OutputSchema(schema any) json.RawMessage {
	buf, err := json.Marshal(schema)
	if err != nil {
		return nil
	}

	return buf
}
