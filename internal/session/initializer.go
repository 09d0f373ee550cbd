package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/convsynth/internal/llm"
	"github.com/capitalize-ai/convsynth/internal/model"
	"github.com/capitalize-ai/convsynth/internal/prompt"
	"github.com/capitalize-ai/convsynth/pkg/logger"
)

// seedTrackOptions render tracks with ids so the personas can refer to them.
var seedTrackOptions = prompt.TrackOptions{IncludeID: true, LyricChars: prompt.DefaultTrackOptions.LyricChars}

// Options configure the sessions an Initializer opens.
type Options struct {
	Model     string
	MaxTokens int
	Logger    *logger.Logger
}

// Initializer opens the two persona sessions of a run.
type Initializer struct {
	backend llm.Backend
	opts    Options
	logger  *logger.Logger
}

// NewInitializer creates an initializer.
func NewInitializer(backend llm.Backend, opts Options) *Initializer {
	return &Initializer{
		backend: backend,
		opts:    opts,
		logger:  logger.OrGlobal(opts.Logger),
	}
}

// InitializeRecsys opens the recommender session and seeds it with the profile
// and the full pool.
func (i *Initializer) InitializeRecsys(ctx context.Context, profile model.ListenerProfile, pool model.Tracks, artifacts prompt.Artifacts) (*Session, error) {
	system, err := prompt.RecsysSystem.Render(nil)
	if err != nil {
		return nil, err
	}
	pt1, err := prompt.RecsysInitPt1.Render(prompt.Params{"listener_profile": profile.PromptString()})
	if err != nil {
		return nil, err
	}
	pt2, err := prompt.RecsysInitPt2.Render(nil)
	if err != nil {
		return nil, err
	}

	s := i.newSession(PersonaRecsys, system)
	parts := []llm.Part{llm.TextPart(pt1)}
	parts = append(parts, prompt.TrackParts("## RECOMMENDATION POOL\n\n", pool, artifacts, seedTrackOptions)...)
	parts = append(parts, llm.TextPart(pt2))

	if _, err := s.Send(ctx, llm.PurposeRecsysInit, 0, parts...); err != nil {
		return nil, fmt.Errorf("initialize recsys session: %w", err)
	}
	i.logger.Info("recsys session initialized", zap.Int("pool_size", len(pool)))
	return s, nil
}

// InitializeListener opens the listener session. The seed exchange with the
// liked tracks is only sent when there are liked tracks.
func (i *Initializer) InitializeListener(ctx context.Context, profile model.ListenerProfile, goal model.ConversationGoal, liked model.Tracks, artifacts prompt.Artifacts) (*Session, error) {
	system, err := prompt.ListenerSystem.Render(prompt.Params{
		"listener_profile":  profile.PromptString(),
		"conversation_goal": goal.PromptString(),
	})
	if err != nil {
		return nil, err
	}

	s := i.newSession(PersonaListener, system)
	if len(liked) > 0 {
		footer, err := prompt.ListenerInit.Render(nil)
		if err != nil {
			return nil, err
		}
		parts := prompt.TrackParts("## Your Previously Liked Tracks\n\n", liked, artifacts, seedTrackOptions)
		parts = append(parts, llm.TextPart(footer))
		if _, err := s.Send(ctx, llm.PurposeListenerInit, 0, parts...); err != nil {
			return nil, fmt.Errorf("initialize listener session: %w", err)
		}
	}
	i.logger.Info("listener session initialized", zap.Int("liked", len(liked)))
	return s, nil
}

func (i *Initializer) newSession(persona, system string) *Session {
	return New(i.backend, Config{
		Persona:   persona,
		System:    system,
		Model:     i.opts.Model,
		MaxTokens: i.opts.MaxTokens,
		Logger:    i.opts.Logger,
	})
}
