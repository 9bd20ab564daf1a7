package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig configures an OpenAI-compatible chat completions client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIProvider implements Completer for OpenAI and compatible servers
// (Ollama, llama.cpp, vLLM).
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates a new provider for OpenAI
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4_1
	}

	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
}

// Complete sends the prompt as a system and a user message.
func (provider *OpenAIProvider) Complete(ctx context.Context, prompt Prompt) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
		Model:       provider.modelFor(prompt),
		Temperature: openai.Float(prompt.Temperature),
	}

	if prompt.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(prompt.MaxTokens))
	}

	chat, err := provider.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai completion error: %w", err)
	}

	if len(chat.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	content := strings.TrimSpace(chat.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}

	return content, nil
}

// Model returns the default model.
func (provider *OpenAIProvider) Model() string {
	return provider.model
}

func (provider *OpenAIProvider) modelFor(prompt Prompt) string {
	if prompt.Model != "" {
		return prompt.Model
	}

	return provider.model
}
