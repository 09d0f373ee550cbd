// Package llmtest provides a scripted in-memory llm.Backend for tests.
package llmtest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/capitalize-ai/convsynth/internal/llm"
	"github.com/capitalize-ai/convsynth/internal/model"
)

// RespondFunc produces the reply text for a request.
type RespondFunc func(req *llm.Request) (string, error)

// Backend is a fake backend. Respond is required; UploadErr is optional.
type Backend struct {
	Respond   RespondFunc
	UploadErr func(path string) error
	Usage     model.TokenUsage

	mu       sync.Mutex
	requests []llm.Request
	uploads  []string
}

// New returns a backend answering with fn.
func New(fn RespondFunc) *Backend {
	return &Backend{Respond: fn}
}

// ByPurpose answers every request from a queue per purpose. The last reply of
// a queue is repeated once it is drained.
func ByPurpose(replies map[string][]string) *Backend {
	var mu sync.Mutex
	next := make(map[string]int)
	return New(func(req *llm.Request) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		q, ok := replies[req.Purpose]
		if !ok || len(q) == 0 {
			return "", fmt.Errorf("no scripted reply for purpose %q", req.Purpose)
		}
		i := next[req.Purpose]
		if i >= len(q) {
			i = len(q) - 1
		}
		next[req.Purpose]++
		return q[i], nil
	})
}

// Name returns "fake".
func (b *Backend) Name() string {
	return "fake"
}

// Upload records the path and returns a handle derived from it.
func (b *Backend) Upload(ctx context.Context, path string, modality llm.Modality) (llm.Handle, error) {
	b.mu.Lock()
	b.uploads = append(b.uploads, path)
	b.mu.Unlock()

	if b.UploadErr != nil {
		if err := b.UploadErr(path); err != nil {
			return llm.Handle{}, err
		}
	}
	name := "files/" + filepath.Base(path)
	return llm.Handle{
		ID:       name,
		URI:      "https://fake.invalid/" + name,
		MIMEType: llm.DetectMIMEType(path, modality),
		Modality: modality,
	}, nil
}

// Generate records a deep copy of req and answers through Respond.
func (b *Backend) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cp := *req
	cp.Messages = make([]llm.Message, len(req.Messages))
	for i, m := range req.Messages {
		cp.Messages[i] = llm.Message{Role: m.Role, Parts: append([]llm.Part(nil), m.Parts...)}
	}

	b.mu.Lock()
	b.requests = append(b.requests, cp)
	b.mu.Unlock()

	text, err := b.Respond(&cp)
	if err != nil {
		return nil, err
	}
	return &llm.Response{Text: text, Model: req.Model, Usage: b.Usage}, nil
}

// Requests returns every request received so far.
func (b *Backend) Requests() []llm.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]llm.Request(nil), b.requests...)
}

// RequestsFor returns the requests with the given purpose.
func (b *Backend) RequestsFor(purpose string) []llm.Request {
	var out []llm.Request
	for _, r := range b.Requests() {
		if r.Purpose == purpose {
			out = append(out, r)
		}
	}
	return out
}

// Uploads returns every uploaded path in order.
func (b *Backend) Uploads() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.uploads...)
}
