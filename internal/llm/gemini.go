package llm

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/capitalize-ai/convsynth/internal/model"
)

// fileActivePoll is how often an uploaded file's processing state is checked.
const fileActivePoll = 2 * time.Second

// GeminiBackend is the multimodal backend on the Gemini API.
type GeminiBackend struct {
	client *genai.Client
}

// NewGeminiBackend creates a new Gemini backend.
func NewGeminiBackend(ctx context.Context, apiKey string, opts Options) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, errors.New("Gemini API key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiBackend{client: client}, nil
}

// Name returns the provider name.
func (b *GeminiBackend) Name() string {
	return "gemini"
}

// Upload stores a file through the Files API and waits until it can be referenced.
func (b *GeminiBackend) Upload(ctx context.Context, path string, modality Modality) (Handle, error) {
	mimeType := DetectMIMEType(path, modality)

	file, err := b.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: filepath.Base(path),
	})
	if err != nil {
		return Handle{}, err
	}

	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return Handle{}, ctx.Err()
		case <-time.After(fileActivePoll):
		}
		file, err = b.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return Handle{}, fmt.Errorf("failed to poll file %s: %w", path, err)
		}
	}
	if file.State == genai.FileStateFailed {
		return Handle{}, fmt.Errorf("file %s failed processing", path)
	}

	if file.MIMEType != "" {
		mimeType = file.MIMEType
	}
	return Handle{
		ID:       file.Name,
		URI:      file.URI,
		MIMEType: mimeType,
		Modality: modality,
	}, nil
}

// Generate sends the system instruction and full history to GenerateContent.
func (b *GeminiBackend) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	modelName := req.Model
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	res, err := b.client.Models.GenerateContent(ctx, modelName, geminiContents(req.Messages), config)
	if err != nil {
		return nil, err
	}

	text, stopReason := geminiText(res)
	return &Response{
		Text:       text,
		Model:      modelName,
		Usage:      geminiUsage(res.UsageMetadata),
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

func geminiContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := genai.Role(genai.RoleUser)
		if msg.Role == RoleModel {
			role = genai.RoleModel
		}
		parts := make([]*genai.Part, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			if p.Handle != nil {
				parts = append(parts, genai.NewPartFromURI(p.Handle.URI, p.Handle.MIMEType))
				continue
			}
			if p.Text != "" {
				parts = append(parts, genai.NewPartFromText(p.Text))
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}

func geminiText(res *genai.GenerateContentResponse) (string, string) {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", ""
	}
	cand := res.Candidates[0]
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	return b.String(), string(cand.FinishReason)
}

func geminiUsage(meta *genai.GenerateContentResponseUsageMetadata) model.TokenUsage {
	var usage model.TokenUsage
	if meta == nil {
		return usage
	}
	usage.OutputTokens = int(meta.CandidatesTokenCount)
	if len(meta.PromptTokensDetails) == 0 {
		usage.InputTextTokens = int(meta.PromptTokenCount)
		return usage
	}
	for _, d := range meta.PromptTokensDetails {
		if d == nil {
			continue
		}
		switch m := strings.ToLower(string(d.Modality)); {
		case strings.Contains(m, "audio"):
			usage.InputAudioTokens += int(d.TokenCount)
		case strings.Contains(m, "image"):
			usage.InputImageTokens += int(d.TokenCount)
		default:
			usage.InputTextTokens += int(d.TokenCount)
		}
	}
	return usage
}

var fallbackMIMETypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// DetectMIMEType guesses a MIME type from the file extension.
func DetectMIMEType(path string, modality Modality) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := fallbackMIMETypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	if modality == ModalityImage {
		return "image/jpeg"
	}
	return "audio/mpeg"
}
