package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nexia-labs/nexia/pkg/transport"
)

const (
	anthropicOAuthBetaHeader = "oauth-2025-04-20"
	defaultClaudeModel       = "claude-sonnet-4-5-20250929"
	defaultMaxTokens         = 4096
)

type ClaudeProvider struct {
	client     *anthropic.Client
	model      string
	oauthToken bool
}

func NewClaudeProvider(token, model string, extra ...option.RequestOption) *ClaudeProvider {
	opts := []option.RequestOption{
		option.WithBaseURL("https://api.anthropic.com"),
		option.WithHTTPClient(transport.NewClient(0)),
	}
	// Console keys go in x-api-key; OAuth tokens are bearer tokens and need
	// the beta header.
	oauth := isAnthropicOAuthToken(token)
	if oauth {
		opts = append(opts,
			option.WithAuthToken(token),
			option.WithHeader("anthropic-beta", anthropicOAuthBetaHeader),
		)
	} else {
		opts = append(opts, option.WithAPIKey(token))
	}
	client := anthropic.NewClient(append(opts, extra...)...)
	if model == "" {
		model = defaultClaudeModel
	}
	return &ClaudeProvider{
		client:     &client,
		model:      model,
		oauthToken: oauth,
	}
}

func (p *ClaudeProvider) Name() string { return "anthropic" }

func (p *ClaudeProvider) Ask(ctx context.Context, question string) (*Answer, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: defaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(question)),
		},
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapClaudeAPIError(err, p.oauthToken)
	}
	answer := parseClaudeResponse(resp)
	if strings.TrimSpace(answer.Text) == "" {
		return nil, ErrEmptyAnswer
	}
	return answer, nil
}

func parseClaudeResponse(resp *anthropic.Message) *Answer {
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	finishReason := "stop"
	switch resp.StopReason {
	case anthropic.StopReasonMaxTokens:
		finishReason = "length"
	case anthropic.StopReasonEndTurn:
		finishReason = "stop"
	}

	return &Answer{
		Text:         text.String(),
		Model:        string(resp.Model),
		FinishReason: finishReason,
		Usage: &UsageInfo{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
}

func isAnthropicOAuthToken(token string) bool {
	return strings.HasPrefix(strings.TrimSpace(token), "sk-ant-oat")
}

func wrapClaudeAPIError(err error, oauthToken bool) error {
	msg := err.Error()
	if oauthToken && strings.Contains(msg, "Invalid bearer token") {
		return fmt.Errorf("claude API call: %w (OAuth token is invalid or expired; set a fresh NEXIA_BRIDGE_ANTHROPIC_API_KEY)", err)
	}
	return fmt.Errorf("claude API call: %w", err)
}
