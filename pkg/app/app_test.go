package app

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/closer/pkg/config"
	"github.com/theapemachine/closer/pkg/logger"
	"github.com/theapemachine/closer/pkg/memory/memorytest"
	"github.com/theapemachine/closer/pkg/synthesis"
	"github.com/theapemachine/closer/pkg/tools/ai/provider"
)

func testConfig() *config.Config {
	testMode := true

	cfg := &config.Config{}
	cfg.Memory.TestMode = &testMode
	cfg.Memory.Engine = "chromem"
	cfg.Completion.Provider = "openai"
	cfg.Completion.Model = "gpt-4.1"

	return cfg
}

func newTestApp(t *testing.T) *App {
	completer := provider.CompleterFunc(func(ctx context.Context, prompt provider.Prompt) (string, error) {
		return "A quiet evening remembered.", nil
	})

	app, err := New(
		context.Background(),
		testConfig(),
		logger.Discard(),
		WithEmbedder(memorytest.NewHashEmbedder(64)),
		WithCompleter(completer),
	)

	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}

	t.Cleanup(func() { app.Close() })

	return app
}

func TestNew(t *testing.T) {
	Convey("Given a test configuration", t, func() {
		app := newTestApp(t)

		Convey("The store should be bound to a test identity", func() {
			So(app.Memory.Identity().IsTest, ShouldBeTrue)
			So(app.Memory.Count(), ShouldEqual, 0)
		})

		Convey("Dreaming over an empty store should return the empty vault notice", func() {
			So(app.Synthesis.Dream(context.Background(), "", "deep"), ShouldEqual, synthesis.EmptyVault)
		})
	})

	Convey("Given unknown components", t, func() {
		cfg := testConfig()

		Convey("An unknown engine should fail", func() {
			cfg.Memory.Engine = "faiss"
			_, err := New(context.Background(), cfg, logger.Discard(), WithEmbedder(memorytest.NewHashEmbedder(8)))

			So(err, ShouldNotBeNil)
		})

		Convey("Anthropic without a key should report missing credentials", func() {
			cfg.Completion.Provider = "anthropic"
			_, err := New(context.Background(), cfg, logger.Discard(), WithEmbedder(memorytest.NewHashEmbedder(8)))

			So(err, ShouldWrap, config.ErrMissingCredentials)
		})
	})
}

func TestCompletionModel(t *testing.T) {
	Convey("Given the default OpenAI model", t, func() {
		cfg := testConfig()

		Convey("It should be kept for OpenAI", func() {
			So(completionModel(cfg), ShouldEqual, "gpt-4.1")
		})

		Convey("It should be dropped for Anthropic", func() {
			cfg.Completion.Provider = "anthropic"
			So(completionModel(cfg), ShouldBeEmpty)
		})
	})
}

func TestMCPServer(t *testing.T) {
	Convey("Given an app", t, func() {
		app := newTestApp(t)
		mcpServer, registry := app.MCPServer()

		Convey("Every memory tool should be registered", func() {
			for _, name := range []string{"save_memory", "get_memory", "query_memory", "reflect", "dream"} {
				So(mcpServer.GetTool(name), ShouldNotBeNil)
			}
		})

		Convey("Saved memories should be recalled through the tools", func() {
			save, _ := registry.Tool("save_memory")
			query, _ := registry.Tool("query_memory")
			ctx := context.Background()

			_, err := save.Handler(ctx, mcp.CallToolRequest{Params: mcp.CallToolParams{
				Arguments: map[string]any{"note_content": "We walked along the harbour at dusk"},
			}})
			So(err, ShouldBeNil)

			result, err := query.Handler(ctx, mcp.CallToolRequest{Params: mcp.CallToolParams{
				Arguments: map[string]any{"query": "harbour at dusk", "k": float64(1)},
			}})
			So(err, ShouldBeNil)

			text, ok := mcp.AsTextContent(result.Content[0])
			So(ok, ShouldBeTrue)
			So(text.Text, ShouldContainSubstring, "We walked along the harbour at dusk")
		})
	})
}
