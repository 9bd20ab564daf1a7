package synthesis

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

var offlineLoader sync.Once

// Tokenizer counts tokens with the vocabulary of a model.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenizer loads the BPE vocabulary for model from the embedded
// offline ranks, so no network access is needed.
func NewTokenizer(model string) (*Tokenizer, error) {
	offlineLoader.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer for %s: %w", model, err)
	}

	return &Tokenizer{encoding: encoding}, nil
}

// Count returns the number of tokens in text.
func (tokenizer *Tokenizer) Count(text string) int {
	return len(tokenizer.encoding.EncodeOrdinary(text))
}

// Budget caps text at Ceiling tokens.
type Budget struct {
	Tokenizer *Tokenizer
	Ceiling   int
}

// Enforce returns text unchanged when it fits the ceiling. Otherwise it
// keeps the first Ceiling tokens and cuts back to the last complete
// sentence; without a sentence boundary the token prefix is kept as is.
// Enforce(Enforce(x)) == Enforce(x).
func (budget Budget) Enforce(text string) string {
	if budget.Ceiling <= 0 {
		return ""
	}

	tokens := budget.Tokenizer.encoding.EncodeOrdinary(text)
	if len(tokens) <= budget.Ceiling {
		return text
	}

	// Re-encoding a decoded prefix can merge differently, so shrink until
	// the result really fits.
	for limit := budget.Ceiling; limit > 0; limit-- {
		prefix := validPrefix(budget.Tokenizer.encoding.Decode(tokens[:limit]))
		candidate := cutToSentence(prefix)

		if budget.Tokenizer.Count(candidate) <= budget.Ceiling {
			return candidate
		}
	}

	return ""
}

// validPrefix drops a partial multi-byte rune left by a token split.
func validPrefix(text string) string {
	for len(text) > 0 && !utf8.ValidString(text) {
		text = text[:len(text)-1]
	}

	return text
}

const (
	sentenceEnds = ".!?…"
	closers      = `"'”’)]}»`
)

// cutToSentence returns text up to and including its last sentence
// terminator and any closing quotes or brackets after it.
func cutToSentence(text string) string {
	end := -1

	for i, r := range text {
		if !strings.ContainsRune(sentenceEnds, r) {
			continue
		}

		j := i + utf8.RuneLen(r)

		for j < len(text) {
			next, size := utf8.DecodeRuneInString(text[j:])
			if !strings.ContainsRune(closers, next) && !strings.ContainsRune(sentenceEnds, next) {
				break
			}

			j += size
		}

		end = j
	}

	if end <= 0 {
		return strings.TrimSpace(text)
	}

	return strings.TrimSpace(text[:end])
}
