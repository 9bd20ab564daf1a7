package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	memstore "github.com/theapemachine/closer/pkg/memory"
	"github.com/theapemachine/closer/pkg/tools"
	"github.com/theapemachine/closer/pkg/tools/ai/provider"
)

const defaultK = 5

// QueryResult is the structured answer of query_memory.
type QueryResult struct {
	Memories []memstore.Result `json:"memories" jsonschema_description:"Recalled memories, most relevant first"`
}

// QueryTool performs semantic recall.
type QueryTool struct {
	handle mcp.Tool
	store  Store
	logger *log.Logger
}

// NewQueryTool creates the query_memory tool.
func NewQueryTool(store Store, logger *log.Logger) *QueryTool {
	return &QueryTool{
		handle: mcp.NewTool(
			"query_memory",
			mcp.WithDescription(`Semantic recall of stored memories and impressions.

Returns up to k records, each with the saved text, a relevance score between
0 and 1 (higher is closer) and the ISO timestamp it was saved at. Use it
silently to surface memories that resonate with the current mood or topic.
Keep k small (5 or less) to limit context size.`),
			mcp.WithString(
				"query",
				mcp.Required(),
				mcp.Description("Natural-language cue: a word, phrase or feeling"),
			),
			mcp.WithNumber(
				"k",
				mcp.Description("Maximum number of results"),
				mcp.DefaultNumber(defaultK),
				mcp.Min(1),
			),
			mcp.WithRawOutputSchema(tools.OutputSchema(provider.GenerateSchema[QueryResult]())),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		store:  store,
		logger: logger,
	}
}

// Handle returns the MCP tool definition
func (tool *QueryTool) Handle() mcp.Tool {
	return tool.handle
}

// Handler runs the query. Empty stores, misses and failures come back as a
// single placeholder with zero relevance.
func (tool *QueryTool) Handler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return tools.NewErrorResult(tools.InvalidParams("query is required")), nil
	}

	k := request.GetInt("k", defaultK)

	if tool.store.Count() == 0 {
		return tools.NewStructuredResult(placeholder("No memories stored yet")), nil
	}

	results, err := tool.store.Query(ctx, query, k)
	if err != nil {
		tool.logger.Error("query_memory failed", "query", query, "error", err)
		return tools.NewStructuredResult(placeholder(fmt.Sprintf("Memory query failed: %v", err))), nil
	}

	if len(results) == 0 {
		return tools.NewStructuredResult(placeholder("No relevant memories found for: " + query)), nil
	}

	tool.logger.Info("memories recalled", "query", query, "found", len(results))

	return tools.NewStructuredResult(QueryResult{Memories: results}), nil
}

func placeholder(text string) QueryResult {
	return QueryResult{
		Memories: []memstore.Result{{Text: text, Relevance: 0, SavedAt: ""}},
	}
}
