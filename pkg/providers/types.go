// Package providers answers single questions through an LLM API. The
// session bridge uses it as an optional strategy when an API key is
// configured.
package providers

import (
	"context"
	"errors"
)

var ErrEmptyAnswer = errors.New("provider returned no text")

type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Answer struct {
	Text         string     `json:"text"`
	Model        string     `json:"model"`
	FinishReason string     `json:"finish_reason"`
	Usage        *UsageInfo `json:"usage,omitempty"`
}

// Asker sends one question and returns the model's reply.
type Asker interface {
	Name() string
	Ask(ctx context.Context, question string) (*Answer, error)
}

// New picks a provider from the configured keys, preferring Anthropic.
// It returns nil when no key is set.
func New(anthropicKey, openAIKey, model string) Asker {
	switch {
	case anthropicKey != "":
		return NewClaudeProvider(anthropicKey, model)
	case openAIKey != "":
		return NewOpenAIProvider(openAIKey, model)
	default:
		return nil
	}
}
