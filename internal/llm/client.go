// Package llm provides the model backend interface and its implementations.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/capitalize-ai/convsynth/internal/model"
)

// Role is the author of a message in a persona's history.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Modality is the kind of an uploaded artifact.
type Modality string

const (
	ModalityAudio Modality = "audio"
	ModalityImage Modality = "image"
)

// Call purposes, used for logs, metrics and the interaction log.
const (
	PurposeProfile      = "profile"
	PurposeGoal         = "goal"
	PurposeRecsysInit   = "recsys_init"
	PurposeListenerInit = "listener_init"
	PurposeListenerOpen = "listener_opening"
	PurposeRecsysTurn   = "recsys_turn"
	PurposeListenerTurn = "listener_turn"
)

// Handle is an opaque reference to an uploaded artifact.
type Handle struct {
	ID       string
	URI      string
	MIMEType string
	Modality Modality
	TrackID  string
}

// Part is one piece of a message: text or an artifact handle.
type Part struct {
	Text   string
	Handle *Handle
}

// TextPart builds a text part.
func TextPart(s string) Part {
	return Part{Text: s}
}

// HandlePart builds an artifact part.
func HandlePart(h Handle) Part {
	return Part{Handle: &h}
}

// Message is one entry of a persona's explicit history.
type Message struct {
	Role  Role
	Parts []Part
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Handle == nil {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Request is a stateless generation request. The full history travels with it.
type Request struct {
	Model     string
	System    string
	Messages  []Message
	MaxTokens int
	// Purpose and Turn label the call; backends do not send them.
	Purpose string
	Turn    int
}

// LastUserText returns the text of the final user message.
func (r *Request) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Text()
		}
	}
	return ""
}

// Response is a generation result.
type Response struct {
	Text       string
	Model      string
	Usage      model.TokenUsage
	StopReason string
	LatencyMs  int64
}

// Backend is the interface for model providers.
type Backend interface {
	// Name returns the provider name.
	Name() string

	// Upload stores a local file with the provider and returns its handle.
	Upload(ctx context.Context, path string, modality Modality) (Handle, error)

	// Generate runs one request/response exchange.
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// ErrUploadUnsupported is returned by backends without a file API.
var ErrUploadUnsupported = errors.New("backend does not support file upload")

// CallError wraps a failed model call. It is always fatal to the run.
type CallError struct {
	Backend string
	Purpose string
	Turn    int
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s %s call failed: %v", e.Backend, e.Purpose, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// KeyFunc resolves the API key for a provider.
type KeyFunc func(provider string) (string, error)

// Options tune backend construction.
type Options struct {
	// BaseURL overrides the provider endpoint.
	BaseURL string
}

// NewBackend creates a backend for provider, resolving its key through keys.
func NewBackend(ctx context.Context, provider Provider, keys KeyFunc, opts Options) (Backend, error) {
	apiKey, err := keys(string(provider))
	if err != nil {
		return nil, err
	}
	switch provider {
	case ProviderGemini:
		return NewGeminiBackend(ctx, apiKey, opts)
	case ProviderAnthropic:
		return NewAnthropicBackend(apiKey, opts)
	case ProviderOpenAI:
		return NewOpenAIBackend(apiKey, opts)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}
