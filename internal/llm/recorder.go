package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/capitalize-ai/convsynth/internal/model"
)

// Recorder keeps an interaction log of every successful Generate call.
type Recorder struct {
	next Backend

	mu           sync.Mutex
	interactions []model.Interaction
}

// NewRecorder wraps next.
func NewRecorder(next Backend) *Recorder {
	return &Recorder{next: next}
}

// Name returns the wrapped provider name.
func (r *Recorder) Name() string {
	return r.next.Name()
}

// Upload passes through.
func (r *Recorder) Upload(ctx context.Context, path string, modality Modality) (Handle, error) {
	return r.next.Upload(ctx, path, modality)
}

// Generate calls next and records the exchange.
func (r *Recorder) Generate(ctx context.Context, req *Request) (*Response, error) {
	resp, err := r.next.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.interactions = append(r.interactions, model.Interaction{
		Purpose:   req.Purpose,
		Turn:      req.Turn,
		Prompt:    promptText(req),
		Response:  resp.Text,
		Usage:     resp.Usage,
		LatencyMs: resp.LatencyMs,
	})
	r.mu.Unlock()

	return resp, nil
}

// Interactions returns a copy of the log.
func (r *Recorder) Interactions() []model.Interaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Interaction, len(r.interactions))
	copy(out, r.interactions)
	return out
}

// UsageByPurpose sums token usage per call purpose.
func (r *Recorder) UsageByPurpose() map[string]model.TokenUsage {
	r.mu.Lock()
	defer r.mu.Unlock()
	usage := make(map[string]model.TokenUsage)
	for _, in := range r.interactions {
		usage[in.Purpose] = usage[in.Purpose].Add(in.Usage)
	}
	return usage
}

// promptText renders the last user message with artifact placeholders.
func promptText(req *Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		msg := req.Messages[i]
		if msg.Role != RoleUser {
			continue
		}
		var b strings.Builder
		for _, p := range msg.Parts {
			if p.Handle != nil {
				b.WriteString("<" + string(p.Handle.Modality) + ":" + p.Handle.TrackID + ">")
				continue
			}
			b.WriteString(p.Text)
		}
		return b.String()
	}
	return ""
}
