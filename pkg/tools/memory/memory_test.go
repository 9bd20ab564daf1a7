package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"
	"github.com/theapemachine/closer/core"
	"github.com/theapemachine/closer/pkg/logger"
	memstore "github.com/theapemachine/closer/pkg/memory"
	"github.com/theapemachine/closer/pkg/tools"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Add(ctx context.Context, text string) (int, error) {
	args := m.Called(ctx, text)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, key int) (string, bool) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1)
}

func (m *MockStore) Query(ctx context.Context, text string, k int) ([]memstore.Result, error) {
	args := m.Called(ctx, text, k)
	return args.Get(0).([]memstore.Result), args.Error(1)
}

func (m *MockStore) Count() int {
	return m.Called().Int(0)
}

type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Reflect(ctx context.Context, topic string, depth int) string {
	return m.Called(ctx, topic, depth).String(0)
}

func (m *MockSynthesizer) Dream(ctx context.Context, theme string, style string) string {
	return m.Called(ctx, theme, style).String(0)
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	}
}

func text(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}

	content, ok := mcp.AsTextContent(result.Content[0])
	if !ok {
		return ""
	}

	return content.Text
}

func TestTools(t *testing.T) {
	Convey("Given the memory tool set", t, func() {
		all := Tools(&MockStore{}, &MockSynthesizer{}, logger.Discard())

		Convey("Every tool should implement core.Tool under its own name", func() {
			names := []string{}

			for _, tool := range all {
				So(tool, ShouldImplement, (*core.Tool)(nil))
				names = append(names, tool.Handle().Name)
			}

			So(names, ShouldResemble, []string{"save_memory", "get_memory", "query_memory", "reflect", "dream"})
		})

		Convey("save_memory should require note_content", func() {
			So(all[0].Handle().InputSchema.Required, ShouldContain, "note_content")
		})

		Convey("query_memory should publish an output schema", func() {
			So(string(all[2].Handle().RawOutputSchema), ShouldContainSubstring, "memories")
		})
	})
}

func TestSaveTool(t *testing.T) {
	Convey("Given a save_memory tool", t, func() {
		store := &MockStore{}
		tool := NewSaveTool(store, logger.Discard())
		ctx := context.Background()

		Convey("Short notes should be echoed in full", func() {
			store.On("Add", mock.Anything, "User admits fear of heights").Return(0, nil)

			result, err := tool.Handler(ctx, call("save_memory", map[string]any{
				"note_content": "User admits fear of heights",
			}))

			So(err, ShouldBeNil)
			So(result.IsError, ShouldBeFalse)
			So(text(result), ShouldEqual, "Memory saved: 'User admits fear of heights'")
			store.AssertExpectations(t)
		})

		Convey("Long notes should be previewed", func() {
			note := strings.Repeat("a", 60)
			store.On("Add", mock.Anything, note).Return(3, nil)

			result, _ := tool.Handler(ctx, call("save_memory", map[string]any{"note_content": note}))

			So(text(result), ShouldEqual, "Memory saved: '"+strings.Repeat("a", 50)+"...'")
		})

		Convey("A note of exactly fifty characters should not be truncated", func() {
			note := strings.Repeat("b", 50)
			store.On("Add", mock.Anything, note).Return(1, nil)

			result, _ := tool.Handler(ctx, call("save_memory", map[string]any{"note_content": note}))

			So(text(result), ShouldEqual, "Memory saved: '"+note+"'")
		})

		Convey("A missing note should be rejected without touching the store", func() {
			result, err := tool.Handler(ctx, call("save_memory", map[string]any{}))

			So(err, ShouldBeNil)
			So(result.IsError, ShouldBeTrue)
			So(text(result), ShouldContainSubstring, "note_content")
			store.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
		})

		Convey("Store failures should surface as error results", func() {
			store.On("Add", mock.Anything, "x").Return(memstore.FailedKey, errors.New("disk full"))

			result, err := tool.Handler(ctx, call("save_memory", map[string]any{"note_content": "x"}))

			So(err, ShouldBeNil)
			So(result.IsError, ShouldBeTrue)
			So(text(result), ShouldContainSubstring, "disk full")
			So(text(result), ShouldStartWith, tools.ErrExternalAPIError.Error())
		})
	})
}

func TestGetTool(t *testing.T) {
	Convey("Given a get_memory tool", t, func() {
		store := &MockStore{}
		tool := NewGetTool(store, logger.Discard())
		ctx := context.Background()

		Convey("A known key should return its text", func() {
			store.On("Get", mock.Anything, 2).Return("We decide to move", true)

			result, err := tool.Handler(ctx, call("get_memory", map[string]any{"key": float64(2)}))

			So(err, ShouldBeNil)
			So(result.StructuredContent, ShouldResemble, GetResult{Key: 2, Found: true, Text: "We decide to move"})
		})

		Convey("An unknown key should be reported as not found", func() {
			store.On("Get", mock.Anything, 9).Return("", false)

			result, _ := tool.Handler(ctx, call("get_memory", map[string]any{"key": float64(9)}))

			So(result.IsError, ShouldBeFalse)
			So(result.StructuredContent.(GetResult).Found, ShouldBeFalse)
		})

		Convey("A missing key should be rejected", func() {
			result, _ := tool.Handler(ctx, call("get_memory", map[string]any{}))

			So(result.IsError, ShouldBeTrue)
		})
	})
}

func TestQueryTool(t *testing.T) {
	Convey("Given a query_memory tool", t, func() {
		store := &MockStore{}
		tool := NewQueryTool(store, logger.Discard())
		ctx := context.Background()

		memories := func(result *mcp.CallToolResult) []memstore.Result {
			return result.StructuredContent.(QueryResult).Memories
		}

		Convey("An empty store should answer with the placeholder", func() {
			store.On("Count").Return(0)

			result, err := tool.Handler(ctx, call("query_memory", map[string]any{"query": "anything"}))

			So(err, ShouldBeNil)
			So(memories(result), ShouldResemble, []memstore.Result{{Text: "No memories stored yet"}})
			store.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
		})

		Convey("k should default to five", func() {
			found := []memstore.Result{{Text: "User admits fear", Relevance: 0.8, SavedAt: "2025-01-01T00:00:00Z"}}
			store.On("Count").Return(7)
			store.On("Query", mock.Anything, "fear", 5).Return(found, nil)

			result, _ := tool.Handler(ctx, call("query_memory", map[string]any{"query": "fear"}))

			So(memories(result), ShouldResemble, found)
			So(text(result), ShouldContainSubstring, `"relevance":0.8`)
			store.AssertExpectations(t)
		})

		Convey("An explicit k should be passed through", func() {
			store.On("Count").Return(7)
			store.On("Query", mock.Anything, "fear", 2).Return([]memstore.Result{{Text: "a"}}, nil)

			_, err := tool.Handler(ctx, call("query_memory", map[string]any{"query": "fear", "k": float64(2)}))

			So(err, ShouldBeNil)
			store.AssertExpectations(t)
		})

		Convey("No hits should name the query", func() {
			store.On("Count").Return(1)
			store.On("Query", mock.Anything, "tides", 5).Return([]memstore.Result{}, nil)

			result, _ := tool.Handler(ctx, call("query_memory", map[string]any{"query": "tides"}))

			So(memories(result)[0].Text, ShouldEqual, "No relevant memories found for: tides")
			So(memories(result)[0].Relevance, ShouldEqual, 0)
		})

		Convey("Failures should be reported inside the result", func() {
			store.On("Count").Return(1)
			store.On("Query", mock.Anything, "tides", 5).Return([]memstore.Result{}, errors.New("boom"))

			result, err := tool.Handler(ctx, call("query_memory", map[string]any{"query": "tides"}))

			So(err, ShouldBeNil)
			So(result.IsError, ShouldBeFalse)
			So(memories(result)[0].Text, ShouldEqual, "Memory query failed: boom")
		})
	})
}

func TestReflectTool(t *testing.T) {
	Convey("Given a reflect tool", t, func() {
		synthesizer := &MockSynthesizer{}
		tool := NewReflectTool(synthesizer, logger.Discard())
		ctx := context.Background()

		Convey("Depth should default to one", func() {
			synthesizer.On("Reflect", mock.Anything, "", 1).Return("calm\n\n[depth 1/3]")

			result, err := tool.Handler(ctx, call("reflect", map[string]any{}))

			So(err, ShouldBeNil)
			So(text(result), ShouldEqual, "calm\n\n[depth 1/3]")
		})

		Convey("Numeric strings and out-of-range depths should be coerced", func() {
			synthesizer.On("Reflect", mock.Anything, "us", 2).Return("two").Once()
			synthesizer.On("Reflect", mock.Anything, "us", 3).Return("three").Once()

			two, _ := tool.Handler(ctx, call("reflect", map[string]any{"topic": "us", "depth": "2"}))
			three, _ := tool.Handler(ctx, call("reflect", map[string]any{"topic": "us", "depth": float64(12)}))

			So(text(two), ShouldEqual, "two")
			So(text(three), ShouldEqual, "three")
			synthesizer.AssertExpectations(t)
		})

		Convey("Garbage depths should read as one", func() {
			synthesizer.On("Reflect", mock.Anything, "", 1).Return("one")

			result, _ := tool.Handler(ctx, call("reflect", map[string]any{"depth": []any{"x"}}))

			So(text(result), ShouldEqual, "one")
		})
	})
}

func TestDreamTool(t *testing.T) {
	Convey("Given a dream tool", t, func() {
		synthesizer := &MockSynthesizer{}
		tool := NewDreamTool(synthesizer, logger.Discard())
		ctx := context.Background()

		Convey("Style should default to deep", func() {
			synthesizer.On("Dream", mock.Anything, "", "deep").Return("a hallway of doors")

			result, err := tool.Handler(ctx, call("dream", map[string]any{}))

			So(err, ShouldBeNil)
			So(text(result), ShouldEqual, "a hallway of doors")
		})

		Convey("Theme and style should be forwarded", func() {
			synthesizer.On("Dream", mock.Anything, "sea", "poetic").Return("salt")

			result, _ := tool.Handler(ctx, call("dream", map[string]any{"theme": "sea", "depth": "poetic"}))

			So(text(result), ShouldEqual, "salt")
			synthesizer.AssertExpectations(t)
		})
	})
}
