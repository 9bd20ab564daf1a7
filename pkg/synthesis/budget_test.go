package synthesis

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBudget(t *testing.T) {
	Convey("Given the embedding model's tokenizer", t, func() {
		tokenizer, err := NewTokenizer("text-embedding-3-small")
		So(err, ShouldBeNil)

		budget := Budget{Tokenizer: tokenizer, Ceiling: 20}

		Convey("Text within the ceiling should be untouched", func() {
			So(budget.Enforce("Short and sweet."), ShouldEqual, "Short and sweet.")
		})

		Convey("Long text should be cut at a sentence boundary", func() {
			text := strings.Repeat("One small thing. ", 30)
			out := budget.Enforce(text)

			So(tokenizer.Count(out), ShouldBeLessThanOrEqualTo, 20)
			So(out, ShouldEndWith, "thing.")
		})

		Convey("Closing quotes should stay with their sentence", func() {
			text := `She said "come home." ` + strings.Repeat("and then the rest went on without a pause ", 10)
			out := budget.Enforce(text)

			So(out, ShouldEqual, `She said "come home."`)
		})

		Convey("Text without a boundary should keep the token prefix", func() {
			text := strings.Repeat("word ", 100)
			out := budget.Enforce(text)

			So(out, ShouldNotBeEmpty)
			So(tokenizer.Count(out), ShouldBeLessThanOrEqualTo, 20)
			So(strings.HasPrefix(text, out), ShouldBeTrue)
		})

		Convey("Enforce should be idempotent", func() {
			for _, text := range []string{
				strings.Repeat("Again and again! ", 40),
				strings.Repeat("no stop here ", 40),
				"Tiny.",
				strings.Repeat("Ünïcödé… ", 40),
			} {
				once := budget.Enforce(text)
				So(budget.Enforce(once), ShouldEqual, once)
			}
		})

		Convey("A non-positive ceiling should yield nothing", func() {
			So(Budget{Tokenizer: tokenizer}.Enforce("anything"), ShouldBeEmpty)
		})
	})
}
