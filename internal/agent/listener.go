// Package agent implements the two turn-taking personas.
package agent

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/convsynth/internal/llm"
	"github.com/capitalize-ai/convsynth/internal/model"
	"github.com/capitalize-ai/convsynth/internal/prompt"
	"github.com/capitalize-ai/convsynth/internal/session"
	"github.com/capitalize-ai/convsynth/pkg/logger"
	"github.com/capitalize-ai/convsynth/pkg/metrics"
)

type openingReply struct {
	Thought string `yaml:"thought"`
	Message string `yaml:"message"`
}

type reactionReply struct {
	Thought                string `yaml:"thought"`
	GoalProgressAssessment string `yaml:"goal_progress_assessment"`
	Message                string `yaml:"message"`
}

// Listener produces the simulated listener's turns.
type Listener struct {
	session *session.Session
	logger  *logger.Logger
}

// NewListener binds a listener to its initialized session.
func NewListener(s *session.Session, log *logger.Logger) *Listener {
	return &Listener{
		session: s,
		logger:  logger.OrGlobal(log).Named("listener"),
	}
}

// InitialRequest produces the opening turn. The message is expected to be one
// of the goal's initial query examples verbatim; a paraphrase is logged, not
// rejected.
func (l *Listener) InitialRequest(ctx context.Context, goal model.ConversationGoal, language string) (model.ListenerTurn, error) {
	text, err := prompt.ListenerOpening.Render(prompt.Params{
		"initial_query_examples": prompt.QuoteList(goal.InitialQueryExamples),
		"listener_goal":          goal.ListenerGoal,
		"preferred_language":     language,
	})
	if err != nil {
		return model.ListenerTurn{}, err
	}

	resp, err := l.session.Send(ctx, llm.PurposeListenerOpen, 1, llm.TextPart(text))
	if err != nil {
		return model.ListenerTurn{}, err
	}

	var reply openingReply
	if err := prompt.Decode(resp.Text, prompt.ListenerOpening.Expected, &reply); err != nil {
		return model.ListenerTurn{}, violation(prompt.ContractError(err, llm.PurposeListenerOpen, 1))
	}
	if !containsFold(goal.InitialQueryExamples, reply.Message) {
		l.logger.Warn("opening request is not one of the initial query examples",
			zap.String("message", reply.Message),
		)
	}

	return model.ListenerTurn{
		Turn:    1,
		Message: reply.Message,
		Thought: reply.Thought,
	}, nil
}

// React produces the listener's reaction to the track recommended in the
// previous turn. turn is the index of the listener turn being produced.
func (l *Listener) React(ctx context.Context, turn int, track model.Track, recsysMessage string, artifacts prompt.Artifacts, language string) (model.ListenerTurn, error) {
	tmpl := prompt.ReactionTurnN
	if turn == 2 {
		tmpl = prompt.ReactionTurn2
	}
	text, err := tmpl.Render(prompt.Params{
		"turn_num":           turn,
		"title":              track.Title,
		"artist":             track.Artist,
		"album":              track.Album,
		"recsys_message":     recsysMessage,
		"preferred_language": language,
	})
	if err != nil {
		return model.ListenerTurn{}, err
	}

	// The listener hears and sees the track before reading the prompt.
	var parts []llm.Part
	for _, h := range artifacts.For(track.TrackID) {
		parts = append(parts, llm.HandlePart(h))
	}
	parts = append(parts, llm.TextPart(text))

	resp, err := l.session.Send(ctx, llm.PurposeListenerTurn, turn, parts...)
	if err != nil {
		return model.ListenerTurn{}, err
	}

	var reply reactionReply
	if err := prompt.Decode(resp.Text, tmpl.Expected, &reply); err != nil {
		return model.ListenerTurn{}, violation(prompt.ContractError(err, llm.PurposeListenerTurn, turn))
	}
	gpa, err := model.ParseGoalProgress(reply.GoalProgressAssessment)
	if err != nil {
		return model.ListenerTurn{}, violation(&model.ContractError{
			Kind:    model.ContractInvalidAssessment,
			Purpose: llm.PurposeListenerTurn,
			Turn:    turn,
			Detail:  err.Error(),
		})
	}
	metrics.RecordGoalProgress(string(gpa))

	return model.ListenerTurn{
		Turn:                   turn,
		Message:                reply.Message,
		Thought:                reply.Thought,
		GoalProgressAssessment: gpa,
	}, nil
}

func containsFold(items []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, it := range items {
		if strings.EqualFold(strings.TrimSpace(it), s) {
			return true
		}
	}
	return false
}

func violation(ce *model.ContractError) *model.ContractError {
	metrics.RecordContractViolation(ce.Purpose, string(ce.Kind))
	return ce
}
