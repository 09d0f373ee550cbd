package llm

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/capitalize-ai/convsynth/internal/model"
)

// AnthropicBackend is a text-only backend on the Anthropic messages API.
type AnthropicBackend struct {
	client *anthropic.Client
}

// NewAnthropicBackend creates a new Anthropic backend.
func NewAnthropicBackend(apiKey string, opts Options) (*AnthropicBackend, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &AnthropicBackend{
		client: anthropic.NewClient(reqOpts...),
	}, nil
}

// Name returns the provider name.
func (b *AnthropicBackend) Name() string {
	return "anthropic"
}

// Upload is not supported; artifacts are described by metadata only.
func (b *AnthropicBackend) Upload(ctx context.Context, path string, modality Modality) (Handle, error) {
	return Handle{}, ErrUploadUnsupported
}

// Generate sends the full history as one messages request.
func (b *AnthropicBackend) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	modelName := req.Model
	if modelName == "" {
		modelName = "claude-3-5-sonnet-20241022"
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		block := anthropic.NewTextBlock(msg.Text())
		if msg.Role == RoleModel {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(modelName)),
		MaxTokens: anthropic.F(int64(maxTokens)),
		Messages:  anthropic.F(messages),
	}
	if req.System != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{anthropic.NewTextBlock(req.System)})
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content += block.Text
		}
	}

	return &Response{
		Text:  content,
		Model: string(resp.Model),
		Usage: model.TokenUsage{
			InputTextTokens: int(resp.Usage.InputTokens),
			OutputTokens:    int(resp.Usage.OutputTokens),
		},
		StopReason: string(resp.StopReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
