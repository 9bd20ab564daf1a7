// Package middleware provides tool handler middleware for the MCP server
package middleware

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/theapemachine/closer/pkg/logger"
	"github.com/theapemachine/closer/pkg/tools"
)

// argumentPreview caps how much of each argument ends up in a log line.
const argumentPreview = 80

// Logging logs every tool call with its arguments, duration and outcome.
func Logging(log *log.Logger) server.ToolHandlerMiddleware {
	log = logger.Or(log).WithPrefix("mcp")

	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			started := time.Now()
			result, err := next(ctx, request)

			fields := []any{
				"tool", request.Params.Name,
				"args", extractContext(request),
				"took", time.Since(started).Round(time.Millisecond),
			}

			switch {
			case err != nil:
				log.Error("tool call failed", append(fields, "error", err)...)
			case result != nil && result.IsError:
				log.Warn("tool call returned an error result", fields...)
			default:
				log.Info("tool call", fields...)
			}

			return result, err
		}
	}
}

// Recovery turns a panicking handler into an error result so a single bad
// call cannot take the server down.
func Recovery(log *log.Logger) server.ToolHandlerMiddleware {
	log = logger.Or(log).WithPrefix("mcp")

	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, request mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
			defer func() {
				if recovered := recover(); recovered != nil {
					log.Error(
						"tool handler panicked",
						"tool", request.Params.Name,
						"panic", recovered,
						"stack", string(debug.Stack()),
					)

					result = tools.NewErrorResult(fmt.Errorf("%w: %v", tools.ErrInternalError, recovered))
					err = nil
				}
			}()

			return next(ctx, request)
		}
	}
}

// extractContext renders the request arguments as "key=value" pairs,
// sorted by key and truncated.
func extractContext(request mcp.CallToolRequest) string {
	args := request.GetArguments()
	keys := make([]string, 0, len(args))

	for key := range args {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	parts := make([]string, 0, len(keys))

	for _, key := range keys {
		value := fmt.Sprint(args[key])

		if runes := []rune(value); len(runes) > argumentPreview {
			value = string(runes[:argumentPreview]) + "..."
		}

		parts = append(parts, fmt.Sprintf("%s=%q", key, value))
	}

	return strings.Join(parts, " ")
}
