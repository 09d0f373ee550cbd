// Package session keeps the per-persona chat history sent to the model.
package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/capitalize-ai/convsynth/internal/llm"
	"github.com/capitalize-ai/convsynth/pkg/logger"
)

// Persona names, used in logs.
const (
	PersonaRecsys   = "recsys"
	PersonaListener = "listener"
)

// Config configures a session.
type Config struct {
	Persona   string
	System    string
	Model     string
	MaxTokens int
	Logger    *logger.Logger
}

// Session is one persona's conversation with the model. The whole history is
// sent on every call; nothing is kept by the backend. A Session is not safe
// for concurrent use.
type Session struct {
	backend llm.Backend
	cfg     Config
	history []llm.Message
	logger  *logger.Logger
}

// New creates an empty session.
func New(backend llm.Backend, cfg Config) *Session {
	return &Session{
		backend: backend,
		cfg:     cfg,
		logger:  logger.OrGlobal(cfg.Logger).Named("session").With(zap.String("persona", cfg.Persona)),
	}
}

// Persona returns the persona name.
func (s *Session) Persona() string {
	return s.cfg.Persona
}

// System returns the system instruction.
func (s *Session) System() string {
	return s.cfg.System
}

// Send appends a user message built from parts, calls the model with the full
// history and appends the reply. On error the history is left unchanged.
func (s *Session) Send(ctx context.Context, purpose string, turn int, parts ...llm.Part) (*llm.Response, error) {
	msg := llm.Message{Role: llm.RoleUser, Parts: parts}
	messages := make([]llm.Message, len(s.history), len(s.history)+1)
	copy(messages, s.history)
	messages = append(messages, msg)

	resp, err := s.backend.Generate(ctx, &llm.Request{
		Model:     s.cfg.Model,
		System:    s.cfg.System,
		Messages:  messages,
		MaxTokens: s.cfg.MaxTokens,
		Purpose:   purpose,
		Turn:      turn,
	})
	if err != nil {
		return nil, err
	}

	s.history = append(s.history, msg, llm.Message{
		Role:  llm.RoleModel,
		Parts: []llm.Part{llm.TextPart(resp.Text)},
	})
	s.logger.Debug("message exchanged",
		zap.String("purpose", purpose),
		zap.Int("turn", turn),
		zap.Int("history_len", len(s.history)),
	)
	return resp, nil
}

// History returns a copy of the messages exchanged so far.
func (s *Session) History() []llm.Message {
	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of messages in the history.
func (s *Session) Len() int {
	return len(s.history)
}
