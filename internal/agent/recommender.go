package agent

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/convsynth/internal/llm"
	"github.com/capitalize-ai/convsynth/internal/model"
	"github.com/capitalize-ai/convsynth/internal/prompt"
	"github.com/capitalize-ai/convsynth/internal/session"
	"github.com/capitalize-ai/convsynth/pkg/logger"
)

type recommendReply struct {
	Thought string `yaml:"thought"`
	TrackID string `yaml:"track_id"`
	Message string `yaml:"message"`
}

// Recommender produces the recommender's turns.
type Recommender struct {
	session *session.Session
	logger  *logger.Logger
}

// NewRecommender binds a recommender to its initialized session.
func NewRecommender(s *session.Session, log *logger.Logger) *Recommender {
	return &Recommender{
		session: s,
		logger:  logger.OrGlobal(log).Named("recommender"),
	}
}

// Recommend picks one track from remaining in answer to the listener. The
// chosen id must be in remaining and must not have been recommended before.
func (r *Recommender) Recommend(ctx context.Context, turn int, dialogue model.ConversationTurns, remaining model.Tracks, listenerMessage, language string) (model.RecsysTurn, error) {
	used := dialogue.UsedTrackIDs()
	text, err := prompt.RecsysTurn.Render(prompt.Params{
		"turn_num":            turn,
		"used_track_ids":      prompt.IDList(used),
		"remaining_track_ids": prompt.IDList(remaining.IDs()),
		"listener_message":    listenerMessage,
		"preferred_language":  language,
	})
	if err != nil {
		return model.RecsysTurn{}, err
	}

	resp, err := r.session.Send(ctx, llm.PurposeRecsysTurn, turn, llm.TextPart(text))
	if err != nil {
		return model.RecsysTurn{}, err
	}

	var reply recommendReply
	if err := prompt.Decode(resp.Text, prompt.RecsysTurn.Expected, &reply); err != nil {
		return model.RecsysTurn{}, violation(prompt.ContractError(err, llm.PurposeRecsysTurn, turn))
	}

	id := NormaliseTrackID(reply.TrackID)
	if slices.Contains(used, id) {
		return model.RecsysTurn{}, violation(&model.ContractError{
			Kind:    model.ContractRepeatedTrack,
			Purpose: llm.PurposeRecsysTurn,
			Turn:    turn,
			Detail:  fmt.Sprintf("track %q was already recommended", id),
		})
	}
	track, ok := remaining.Find(id)
	if !ok {
		return model.RecsysTurn{}, violation(&model.ContractError{
			Kind:    model.ContractUnknownTrack,
			Purpose: llm.PurposeRecsysTurn,
			Turn:    turn,
			Detail:  fmt.Sprintf("track %q is not in the remaining pool", id),
		})
	}

	r.logger.Debug("track recommended",
		zap.Int("turn", turn),
		zap.String("track_id", track.TrackID),
		zap.Int("remaining", len(remaining)-1),
	)
	return model.RecsysTurn{
		Turn:    turn,
		TrackID: track.TrackID,
		Message: reply.Message,
		Thought: reply.Thought,
		Track:   track,
	}, nil
}

// NormaliseTrackID strips the quoting models tend to wrap ids in.
func NormaliseTrackID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "\"'`[] ")
}
