package llmdispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultMaxTokens int64 = 1024

// AnthropicProvider is a third, higher-quality enrichment provider
// (SPEC_FULL.md Domain Stack): selected like any other provider per the
// dispatcher's order-of-preference policy, not hardcoded as a special case.
type AnthropicProvider struct {
	sdk    anthropic.Client
	model  string
	apiKey string
}

// NewAnthropicProvider constructs a provider against the Anthropic Messages
// API.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	m := model
	if m == "" {
		m = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &AnthropicProvider{
		sdk:    anthropic.NewClient(opts...),
		model:  m,
		apiKey: apiKey,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultRemoteGenerateTimeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = p.model
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicDefaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemMessage != "" || req.Context != "" {
		sys := strings.TrimSpace(req.SystemMessage + "\n" + req.Context)
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}

	resp, err := p.sdk.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic message: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return Response{
		Success: true,
		Content: content.String(),
		Usage: &Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
		Metadata: map[string]any{"model": string(resp.Model)},
	}, nil
}

func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	return strings.TrimSpace(p.apiKey) != ""
}
