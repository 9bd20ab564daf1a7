package synthesis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"
	"github.com/theapemachine/closer/pkg/logger"
	"github.com/theapemachine/closer/pkg/memory"
	"github.com/theapemachine/closer/pkg/tools/ai/provider"
)

var errCompletion = errors.New("completion service down")

// MockCompleter mocks the completion service
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, prompt provider.Prompt) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// stubRetriever returns fixed results and records the queries it saw.
type stubRetriever struct {
	mu      sync.Mutex
	results []memory.Result
	err     error
	queries []string
	ks      []int
}

func (s *stubRetriever) Query(ctx context.Context, text string, k int) ([]memory.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, text)
	s.ks = append(s.ks, k)

	if s.err != nil {
		return []memory.Result{}, s.err
	}

	return s.results[:min(k, len(s.results))], nil
}

func someMemories(n int) []memory.Result {
	results := make([]memory.Result, n)

	for i := range results {
		results[i] = memory.Result{
			Text:      strings.Repeat("a remembered evening ", i+1),
			Relevance: 1 - float64(i)*0.1,
			SavedAt:   "2026-01-01T00:00:00Z",
		}
	}

	return results
}

func newEngine(retriever Retriever, completer provider.Completer) *Engine {
	engine, err := New(retriever, completer, Config{}, logger.Discard())
	So(err, ShouldBeNil)

	return engine
}

func TestParseDepth(t *testing.T) {
	Convey("Given loosely typed depth arguments", t, func() {
		cases := []struct {
			in   any
			want int
		}{
			{2, 2},
			{int64(3), 3},
			{2.4, 2},
			{2.6, 3},
			{float32(1.5), 2},
			{"3", 3},
			{" 2.0 ", 2},
			{"deep", 1},
			{nil, 1},
			{true, 1},
			{map[string]any{"depth": 2}, 1},
			{-1.0, -1},
		}

		for _, c := range cases {
			So(ParseDepth(c.in), ShouldEqual, c.want)
		}
	})
}

func TestReflect(t *testing.T) {
	Convey("Given an engine with memories", t, func() {
		ctx := context.Background()
		retriever := &stubRetriever{results: someMemories(10)}
		completer := &MockCompleter{}
		completer.On("Complete", mock.Anything, mock.Anything).Return("I notice a warmth. It lingers.", nil)

		engine := newEngine(retriever, completer)

		Convey("Every depth should be clamped and marked", func() {
			want := map[int]string{
				0:  "[depth 1/3]",
				1:  "[depth 1/3]",
				2:  "[depth 2/3]",
				3:  "[depth 3/3] terminal",
				4:  "[depth 3/3] terminal",
				-1: "[depth 1/3]",
				10: "[depth 3/3] terminal",
			}

			for depth, marker := range want {
				out := engine.Reflect(ctx, "home", depth)
				So(out, ShouldEndWith, marker)
				So(out, ShouldStartWith, "I notice a warmth.")
			}
		})

		Convey("Budgets should scale with depth and stay bounded", func() {
			So(engine.ReflectMemoryBudget(1), ShouldEqual, 3)
			So(engine.ReflectMemoryBudget(2), ShouldEqual, 4)
			So(engine.ReflectMemoryBudget(3), ShouldEqual, 6)
			So(engine.ReflectTokenCeiling(1), ShouldEqual, 350)
			So(engine.ReflectTokenCeiling(2), ShouldEqual, 500)
			So(engine.ReflectTokenCeiling(3), ShouldEqual, 650)

			engine.Reflect(ctx, "home", 3)

			So(retriever.ks[len(retriever.ks)-1], ShouldEqual, 6)
			completer.AssertCalled(t, "Complete", mock.Anything, mock.MatchedBy(func(p provider.Prompt) bool {
				return p.MaxTokens == 650 && p.System == reflectInstructions[3]
			}))
		})

		Convey("Only the top five memories should reach the prompt", func() {
			engine.Reflect(ctx, "home", 3)

			completer.AssertCalled(t, "Complete", mock.Anything, mock.MatchedBy(func(p provider.Prompt) bool {
				return strings.Contains(p.User, "5. ") && !strings.Contains(p.User, "6. ")
			}))
		})

		Convey("A missing topic should use the fallback query", func() {
			engine.Reflect(ctx, "   ", 1)
			So(retriever.queries[len(retriever.queries)-1], ShouldEqual, reflectFallbackQuery)
		})
	})

	Convey("Given a completion service that fails", t, func() {
		ctx := context.Background()
		completer := &MockCompleter{}
		completer.On("Complete", mock.Anything, mock.Anything).Return("", errCompletion)

		engine := newEngine(&stubRetriever{results: someMemories(2)}, completer)

		Convey("Reflect should fall back and keep the marker", func() {
			for depth := MinDepth; depth <= MaxDepth; depth++ {
				out := engine.Reflect(ctx, "loss", depth)
				So(out, ShouldStartWith, reflectFallbacks[depth])
				So(out, ShouldContainSubstring, reflectMarker(depth))
			}
		})
	})

	Convey("Given a completion far beyond the ceiling", t, func() {
		ctx := context.Background()
		completer := &MockCompleter{}
		completer.On("Complete", mock.Anything, mock.Anything).Return(strings.Repeat("It went on and on. ", 2000), nil)

		engine := newEngine(&stubRetriever{results: someMemories(3)}, completer)

		Convey("The reflection body should be cut to the depth ceiling", func() {
			out := engine.Reflect(ctx, "", 1)
			body := strings.TrimSuffix(out, "\n\n"+reflectMarker(1))

			So(engine.Tokenizer().Count(body), ShouldBeLessThanOrEqualTo, engine.ReflectTokenCeiling(1))
			So(body, ShouldEndWith, ".")
		})
	})
}

func TestDream(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		completer := &MockCompleter{}
		engine := newEngine(&stubRetriever{}, completer)

		Convey("Dream should return the empty vault without completing", func() {
			So(engine.Dream(ctx, "", "deep"), ShouldEqual, EmptyVault)
			completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
		})
	})

	Convey("Given memories and an unknown style", t, func() {
		ctx := context.Background()
		retriever := &stubRetriever{results: someMemories(12)}
		completer := &MockCompleter{}
		completer.On("Complete", mock.Anything, mock.Anything).Return("A corridor of doors, each one a birthday.", nil)

		engine := newEngine(retriever, completer)

		Convey("The deep style should be used", func() {
			out := engine.Dream(ctx, "", "nightmare")

			So(out, ShouldEqual, "A corridor of doors, each one a birthday.")
			So(retriever.queries[0], ShouldEqual, dreamFallbackQuery)
			So(retriever.ks[0], ShouldEqual, 8)
			completer.AssertCalled(t, "Complete", mock.Anything, mock.MatchedBy(func(p provider.Prompt) bool {
				return p.System == dreamInstructions[StyleDeep] && p.MaxTokens == 350
			}))
		})

		Convey("Known styles should be accepted case-insensitively", func() {
			engine.Dream(ctx, "the sea", "Poetic")

			So(retriever.queries[0], ShouldEqual, "the sea")
			completer.AssertCalled(t, "Complete", mock.Anything, mock.MatchedBy(func(p provider.Prompt) bool {
				return p.System == dreamInstructions[StylePoetic]
			}))
		})
	})

	Convey("Given an arbitrarily long completion", t, func() {
		ctx := context.Background()
		completer := &MockCompleter{}
		completer.On("Complete", mock.Anything, mock.Anything).Return(
			strings.Repeat("The lanterns drifted over black water, and someone called my name! ", 500), nil,
		)

		engine := newEngine(&stubRetriever{results: someMemories(4)}, completer)

		Convey("The dream should fit the ceiling", func() {
			out := engine.Dream(ctx, "water", "surface")

			So(engine.Tokenizer().Count(out), ShouldBeLessThanOrEqualTo, 350)
			So(out, ShouldEndWith, "!")
		})
	})

	Convey("Given a completion service that fails", t, func() {
		ctx := context.Background()
		completer := &MockCompleter{}
		completer.On("Complete", mock.Anything, mock.Anything).Return("", errCompletion)

		engine := newEngine(&stubRetriever{results: someMemories(1)}, completer)

		Convey("Dream should return the fallback", func() {
			out := engine.Dream(ctx, "", "")

			So(out, ShouldEqual, dreamFallback)
			So(out, ShouldNotEqual, EmptyVault)
		})
	})

	Convey("Given a store that cannot be read", t, func() {
		ctx := context.Background()
		completer := &MockCompleter{}
		engine := newEngine(&stubRetriever{err: errors.New("index offline")}, completer)

		Convey("Dream should say the vault is unreachable, not empty", func() {
			out := engine.Dream(ctx, "sea", "deep")

			So(out, ShouldEqual, UnreachableVault)
			So(out, ShouldNotEqual, EmptyVault)
			completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
		})
	})
}

func TestTimeouts(t *testing.T) {
	Convey("Given a completion service that hangs", t, func() {
		ctx := context.Background()
		hanging := provider.CompleterFunc(func(ctx context.Context, prompt provider.Prompt) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})

		engine, err := New(
			&stubRetriever{results: someMemories(4)},
			hanging,
			Config{Timeout: 50 * time.Millisecond},
			logger.Discard(),
		)
		So(err, ShouldBeNil)

		Convey("Reflect should fall back and keep the marker", func() {
			started := time.Now()
			out := engine.Reflect(ctx, "us", 2)

			So(time.Since(started), ShouldBeLessThan, 2*time.Second)
			So(out, ShouldStartWith, reflectFallbacks[2])
			So(out, ShouldEndWith, "[depth 2/3]")
		})

		Convey("Dream should fall back within its ceiling", func() {
			started := time.Now()
			out := engine.Dream(ctx, "", "poetic")

			So(time.Since(started), ShouldBeLessThan, 2*time.Second)
			So(out, ShouldEqual, dreamFallback)
			So(engine.Tokenizer().Count(out), ShouldBeLessThanOrEqualTo, 350)
		})
	})
}
