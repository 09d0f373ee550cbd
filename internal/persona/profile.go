// Package persona builds the listener profile and conversation goal.
package persona

import (
	"context"

	"go.uber.org/zap"

	"github.com/capitalize-ai/convsynth/internal/llm"
	"github.com/capitalize-ai/convsynth/internal/model"
	"github.com/capitalize-ai/convsynth/internal/prompt"
	"github.com/capitalize-ai/convsynth/pkg/logger"
)

// Options are shared by the generators.
type Options struct {
	Model     string
	MaxTokens int
	Logger    *logger.Logger
}

type profileReply struct {
	PreferredMusicalCulture string `yaml:"preferred_musical_culture"`
	Top1Artist              string `yaml:"top_1_artist"`
	Top1Genre               string `yaml:"top_1_genre"`
}

// ProfileGenerator infers a listener profile from liked tracks.
type ProfileGenerator struct {
	backend  llm.Backend
	defaults model.Demographics
	opts     Options
	logger   *logger.Logger
}

// NewProfileGenerator creates a generator. defaults fill demographics the
// user does not carry.
func NewProfileGenerator(backend llm.Backend, defaults model.Demographics, opts Options) *ProfileGenerator {
	return &ProfileGenerator{
		backend:  backend,
		defaults: defaults,
		opts:     opts,
		logger:   logger.OrGlobal(opts.Logger).Named("profile"),
	}
}

// GenerateFromTracks makes one model call over the liked tracks and their
// artifacts. Demographics come from the user, never from the model.
func (g *ProfileGenerator) GenerateFromTracks(ctx context.Context, user model.User, liked model.Tracks, artifacts prompt.Artifacts) (*model.Profiling, error) {
	demo := user.Demographics().Merge(g.defaults)

	query, err := prompt.ProfileQuery.Render(prompt.Params{
		"age_group":          demo.AgeGroup,
		"country":            demo.Country,
		"gender":             demo.Gender,
		"preferred_language": demo.PreferredLanguage,
	})
	if err != nil {
		return nil, err
	}

	parts := []llm.Part{llm.TextPart(query)}
	parts = append(parts, prompt.TrackParts("## LISTENER TRACKS\n\n", liked, artifacts, prompt.DefaultTrackOptions)...)

	resp, err := g.backend.Generate(ctx, &llm.Request{
		Model:     g.opts.Model,
		MaxTokens: g.opts.MaxTokens,
		Messages:  []llm.Message{{Role: llm.RoleUser, Parts: parts}},
		Purpose:   llm.PurposeProfile,
	})
	if err != nil {
		return nil, err
	}

	var reply profileReply
	if err := prompt.Decode(resp.Text, prompt.ProfileQuery.Expected, &reply); err != nil {
		return nil, violation(prompt.ContractError(err, llm.PurposeProfile, 0))
	}

	profile := model.ListenerProfile{
		AgeGroup:                demo.AgeGroup,
		Country:                 demo.Country,
		Gender:                  demo.Gender,
		PreferredMusicalCulture: reply.PreferredMusicalCulture,
		PreferredLanguage:       demo.PreferredLanguage,
		Top1Artist:              reply.Top1Artist,
		Top1Genre:               reply.Top1Genre,
	}
	g.logger.Info("listener profile built",
		zap.String("top_1_artist", profile.Top1Artist),
		zap.String("top_1_genre", profile.Top1Genre),
	)

	return &model.Profiling{
		User:    user,
		Profile: profile,
		Summary: profile.PromptString(),
	}, nil
}
