package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"
	"github.com/theapemachine/closer/core"
	"github.com/theapemachine/closer/core/middleware"
	memorytools "github.com/theapemachine/closer/pkg/tools/memory"
)

// Version is reported to MCP clients.
var Version = "1.0.0"

const instructions = `closer is a long-term memory for an ongoing relationship.
Save brief impressions with save_memory, recall them with query_memory and
get_memory, and use reflect and dream to synthesize what has been stored.`

const shutdownTimeout = 5 * time.Second

// ToolRegistry manages tool registration and lifecycle
type ToolRegistry struct {
	server *server.MCPServer
	tools  map[string]core.Tool
}

// NewToolRegistry creates a new tool registry
func NewToolRegistry(mcpServer *server.MCPServer) *ToolRegistry {
	return &ToolRegistry{
		server: mcpServer,
		tools:  make(map[string]core.Tool),
	}
}

// RegisterTool registers a tool with the server
func (r *ToolRegistry) RegisterTool(tool core.Tool) {
	r.tools[tool.Handle().Name] = tool
	r.server.AddTool(tool.Handle(), tool.Handler)
}

// Tool returns a registered tool by name.
func (r *ToolRegistry) Tool(name string) (core.Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// MCPServer builds the MCP server with every memory tool registered.
func (app *App) MCPServer() (*server.MCPServer, *ToolRegistry) {
	mcpServer := server.NewMCPServer(
		"closer",
		Version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
		server.WithInstructions(instructions),
		server.WithToolHandlerMiddleware(middleware.Logging(app.Logger)),
		server.WithToolHandlerMiddleware(middleware.Recovery(app.Logger)),
	)

	registry := NewToolRegistry(mcpServer)

	for _, tool := range memorytools.Tools(app.Memory, app.Synthesis, app.Logger) {
		registry.RegisterTool(tool)
	}

	return mcpServer, registry
}

// Serve runs the MCP server on the configured transport until ctx is
// cancelled or the transport fails.
func (app *App) Serve(ctx context.Context, transport string) error {
	mcpServer, registry := app.MCPServer()
	addr := net.JoinHostPort(app.Config.MCP.Host, strconv.Itoa(app.Config.MCP.Port))

	app.Logger.Info("server starting", "transport", transport, "tools", len(registry.tools))

	switch transport {
	case "", "stdio":
		stdio := server.NewStdioServer(mcpServer)
		stdio.SetErrorLogger(app.Logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel}))

		return stdio.Listen(ctx, os.Stdin, os.Stdout)
	case "sse":
		sse := server.NewSSEServer(mcpServer, server.WithBaseURL("http://"+addr))

		return app.listen(ctx, addr, sse.Start, sse.Shutdown)
	case "http":
		streamable := server.NewStreamableHTTPServer(mcpServer)

		return app.listen(ctx, addr, streamable.Start, streamable.Shutdown)
	default:
		return fmt.Errorf("unknown transport %q", transport)
	}
}

func (app *App) listen(
	ctx context.Context,
	addr string,
	start func(string) error,
	shutdown func(context.Context) error,
) error {
	errs := make(chan error, 1)

	go func() {
		errs <- start(addr)
	}()

	app.Logger.Info("listening", "addr", addr)

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return shutdown(shutdownCtx)
	}
}
