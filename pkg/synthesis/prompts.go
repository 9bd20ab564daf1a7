package synthesis

import (
	"fmt"
	"strings"

	"github.com/theapemachine/closer/pkg/memory"
)

// EmptyVault is returned by Dream when there is nothing to dream about.
const EmptyVault = "No memories to synthesize yet. The vault awaits first impressions."

// UnreachableVault is returned by Dream when the memories could not be read.
const UnreachableVault = "Dream unavailable right now. The vault could not be reached."

const (
	reflectFallbackQuery = "emotional patterns feelings relationships"
	dreamFallbackQuery   = "emotions dreams memories feelings"

	// formattedMemories is how many retrieved memories reach a prompt.
	formattedMemories = 5
)

var reflectInstructions = map[int]string{
	1: `You are reflecting on your own memories of a relationship.
Name the emotions present in the memories below, plainly and tenderly.
Stay at the surface: what was felt, not why. Write in the first person,
in a few short paragraphs.`,

	2: `You are reflecting on your own memories of a relationship.
Look beneath the feelings in the memories below for causes and history:
what keeps recurring, what earlier moments shaped the later ones, which
patterns connect them. Write in the first person, in a few paragraphs.`,

	3: `You are reflecting on your own act of reflecting.
Using the memories below, examine how you remember and interpret them:
what you choose to notice, what you avoid, and what remembering does to
you. This is the deepest layer; conclude rather than open a further layer.
Write in the first person.`,
}

var reflectFallbacks = map[int]string{
	1: "Reflection unavailable right now. Something was felt here, but the words would not come.",
	2: "Reflection unavailable right now. The patterns are there, waiting to be traced another time.",
	3: "Reflection unavailable right now. Even the reflecting on reflection has gone quiet.",
}

// Dream styles.
const (
	StyleSurface    = "surface"
	StyleDeep       = "deep"
	StylePoetic     = "poetic"
	StyleAnalytical = "analytical"
)

var dreamInstructions = map[string]string{
	StyleSurface: `Weave the memories below into a short, gentle dream.
Keep close to what actually happened, softened and slightly shifted, the
way a light sleep replays the day.`,

	StyleDeep: `Weave the memories below into a dream.
Let them blend, overlap and change shape: places merge, people stand in for
one another, feelings surface as images. Sensory, nocturnal, a little
uncanny.`,

	StylePoetic: `Weave the memories below into a dream told as free verse.
Favor imagery and rhythm over narrative. Every line should feel like it
came from the memories, transformed.`,

	StyleAnalytical: `Weave the memories below into a dream, then briefly step
outside it and note which memories fed which images and what the dream
seems to be working through.`,
}

const dreamFallback = "The dream dissolved before it could be told. Fragments remain: a familiar voice, a half-lit room, something left unsaid."

func reflectMarker(depth int) string {
	marker := fmt.Sprintf("[depth %d/%d]", depth, MaxDepth)

	if depth == MaxDepth {
		marker += " terminal"
	}

	return marker
}

// formatMemories renders up to formattedMemories results as a numbered
// list with their relevance.
func formatMemories(results []memory.Result) string {
	if len(results) == 0 {
		return "(no memories found)"
	}

	var builder strings.Builder

	for i, result := range results[:min(len(results), formattedMemories)] {
		fmt.Fprintf(&builder, "%d. %s (relevance %.2f", i+1, result.Text, result.Relevance)

		if result.SavedAt != "" {
			fmt.Fprintf(&builder, ", saved %s", result.SavedAt)
		}

		builder.WriteString(")\n")
	}

	return strings.TrimRight(builder.String(), "\n")
}

func reflectUserPrompt(topic string, depth int, memories string) string {
	if topic == "" {
		topic = "whatever stands out"
	}

	return fmt.Sprintf("Topic: %s\nDepth: %d of %d\n\nMemories:\n%s", topic, depth, MaxDepth, memories)
}

func dreamUserPrompt(theme string, memories string) string {
	if theme == "" {
		return fmt.Sprintf("Memories:\n%s", memories)
	}

	return fmt.Sprintf("Theme: %s\n\nMemories:\n%s", theme, memories)
}
