package llmdispatch

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
)

// OpenAIProvider speaks the OpenAI-chat shape (spec.md §4.5) over
// /v1/chat/completions. Available whenever an API key is configured; also
// used for OpenAI-compatible self-hosted endpoints via BaseURL.
type OpenAIProvider struct {
	sdk     sdk.Client
	model   string
	apiKey  string
}

// NewOpenAIProvider constructs a remote provider. baseURL may be empty to
// use the default OpenAI endpoint.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		sdk:    sdk.NewClient(opts...),
		model:  model,
		apiKey: apiKey,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultRemoteGenerateTimeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, 3)
	if req.SystemMessage != "" {
		messages = append(messages, sdk.SystemMessage(req.SystemMessage))
	}
	if req.Context != "" {
		messages = append(messages, sdk.SystemMessage(req.Context))
	}
	messages = append(messages, sdk.UserMessage(req.Prompt))

	params := sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(model),
		Messages:    messages,
		Temperature: param.NewOpt(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(req.MaxTokens))
	}

	comp, err := p.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(comp.Choices) == 0 {
		return Response{}, fmt.Errorf("openai chat completion: no choices returned")
	}

	return Response{
		Success: true,
		Content: comp.Choices[0].Message.Content,
		Usage: &Usage{
			PromptTokens:     int(comp.Usage.PromptTokens),
			CompletionTokens: int(comp.Usage.CompletionTokens),
			TotalTokens:      int(comp.Usage.TotalTokens),
		},
		Metadata: map[string]any{"model": string(comp.Model)},
	}, nil
}

func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	return strings.TrimSpace(p.apiKey) != ""
}
