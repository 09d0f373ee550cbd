package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/capitalize-ai/convsynth/internal/model"
)

// OpenAIBackend is a text-only backend on the OpenAI chat completions API.
type OpenAIBackend struct {
	client *openai.Client
}

// NewOpenAIBackend creates a new OpenAI backend.
func NewOpenAIBackend(apiKey string, opts Options) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(cfg),
	}, nil
}

// Name returns the provider name.
func (b *OpenAIBackend) Name() string {
	return "openai"
}

// Upload is not supported; artifacts are described by metadata only.
func (b *OpenAIBackend) Upload(ctx context.Context, path string, modality Modality) (Handle, error) {
	return Handle{}, ErrUploadUnsupported
}

// Generate sends the full history as one chat completion.
func (b *OpenAIBackend) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	modelName := req.Model
	if modelName == "" {
		modelName = "gpt-4o"
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     modelName,
		Messages:  openAIMessages(req),
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, err
	}

	var content, stopReason string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		stopReason = string(resp.Choices[0].FinishReason)
	}

	return &Response{
		Text:  content,
		Model: resp.Model,
		Usage: model.TokenUsage{
			InputTextTokens: resp.Usage.PromptTokens,
			OutputTokens:    resp.Usage.CompletionTokens,
		},
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

func openAIMessages(req *Request) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		role := openai.ChatMessageRoleUser
		if msg.Role == RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Text(),
		})
	}
	return messages
}
