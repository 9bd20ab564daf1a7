// Package provider defines the completion service contract and its
// implementations for the supported model APIs.
package provider

import (
	"context"
	"errors"

	"github.com/invopop/jsonschema"
)

// ErrEmptyCompletion is returned when a provider answers with no text.
var ErrEmptyCompletion = errors.New("completion contained no text")

// Prompt is a single-shot chat request: one system instruction and one user
// message.
type Prompt struct {
	System      string
	User        string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Completer produces text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt Prompt) (string, error)

// Complete calls fn.
func (fn CompleterFunc) Complete(ctx context.Context, prompt Prompt) (string, error) {
	return fn(ctx, prompt)
}

// GenerateSchema reflects the JSON schema of T without references, so it
// can be embedded inline in tool definitions.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	var v T
	return reflector.Reflect(v)
}
