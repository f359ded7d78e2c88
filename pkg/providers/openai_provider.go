package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"github.com/nexia-labs/nexia/pkg/transport"
)

const defaultOpenAIModel = "gpt-5.2"

type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(apiKey, model string, extra ...option.RequestOption) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(transport.NewCloudflareClient(0)),
	}
	client := openai.NewClient(append(opts, extra...)...)
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIProvider{client: &client, model: model}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Ask(ctx context.Context, question string) (*Answer, error) {
	params := responses.ResponseNewParams{
		Model: p.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.Opt(question),
		},
		Store: openai.Opt(false),
	}

	stream := p.client.Responses.NewStreaming(ctx, params)
	if stream == nil {
		return nil, fmt.Errorf("openai API call: empty stream")
	}
	defer stream.Close()

	var finalResp *responses.Response
	for stream.Next() {
		switch event := stream.Current().AsAny().(type) {
		case responses.ResponseCompletedEvent:
			resp := event.Response
			finalResp = &resp
		case responses.ResponseIncompleteEvent:
			resp := event.Response
			finalResp = &resp
		case responses.ResponseErrorEvent:
			return nil, fmt.Errorf("response error (%s): %s", event.Code, event.Message)
		case responses.ResponseFailedEvent:
			return nil, fmt.Errorf("response failed with status %q", event.Response.Status)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai API call: %w", err)
	}
	if finalResp == nil {
		return nil, fmt.Errorf("openai API call: stream ended without a response payload")
	}

	answer := parseOpenAIResponse(finalResp)
	if strings.TrimSpace(answer.Text) == "" {
		return nil, ErrEmptyAnswer
	}
	return answer, nil
}

func parseOpenAIResponse(resp *responses.Response) *Answer {
	var text strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				text.WriteString(c.Text)
			}
		}
	}

	finishReason := "stop"
	if resp.Status == "incomplete" {
		finishReason = "length"
	}

	var usage *UsageInfo
	if resp.Usage.TotalTokens > 0 {
		usage = &UsageInfo{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		}
	}

	return &Answer{
		Text:         text.String(),
		Model:        string(resp.Model),
		FinishReason: finishReason,
		Usage:        usage,
	}
}
