// Package eval scores saved conversations with LLM judges.
package eval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/convsynth/internal/llm"
	"github.com/capitalize-ai/convsynth/internal/model"
	"github.com/capitalize-ai/convsynth/internal/prompt"
	"github.com/capitalize-ai/convsynth/internal/store"
	"github.com/capitalize-ai/convsynth/pkg/logger"
	"github.com/capitalize-ai/convsynth/pkg/metrics"
)

// Metric names, in report order.
const (
	MetricGoalPlausibility      = "goal_plausibility"
	MetricProgressLabel         = "listener_progress_label"
	MetricListenerThought       = "listener_thought_quality"
	MetricRecsysThought         = "recsys_thought_quality"
	MetricListenerMessage       = "listener_message_quality"
	MetricRecsysMessage         = "recsys_message_quality"
	MetricListenerHelpfulness   = "listener_message_helpfulness"
	MetricRecsysMessageAccuracy = "recsys_message_alignment"
	MetricTrackRelevance        = "recsys_track_quality"
)

var metricOrder = []string{
	MetricGoalPlausibility,
	MetricProgressLabel,
	MetricListenerThought,
	MetricRecsysThought,
	MetricListenerMessage,
	MetricRecsysMessage,
	MetricListenerHelpfulness,
	MetricRecsysMessageAccuracy,
	MetricTrackRelevance,
}

// Judge call purposes.
const (
	PurposeGoalPlausibility = "judge_goal_plausibility"
	PurposeGoalProgress     = "judge_goal_progress"
	PurposeThought          = "judge_thought"
	PurposeMessage          = "judge_message"
	PurposeTrackRelevance   = "judge_track_relevance"
)

// scoreField maps a response field to the metric it feeds.
type scoreField struct {
	field  string
	metric string
}

type judge struct {
	purpose string
	tmpl    *prompt.Template
	scores  []scoreField
	applies func(*model.Outputs) bool
}

func hasGoal(out *model.Outputs) bool {
	g := out.ConversationGoal
	return g.CategoryCode != "" || g.ListenerGoal != ""
}

func hasTurns(out *model.Outputs) bool {
	return len(out.Chat) > 0
}

// Each judge is one model call per conversation.
var judges = []judge{
	{
		purpose: PurposeGoalPlausibility,
		tmpl:    prompt.JudgeGoalPlausibility,
		scores:  []scoreField{{"plausibility_score", MetricGoalPlausibility}},
		applies: hasGoal,
	},
	{
		purpose: PurposeGoalProgress,
		tmpl:    prompt.JudgeGoalProgress,
		scores:  []scoreField{{"accuracy_score", MetricProgressLabel}},
		applies: hasTurns,
	},
	{
		purpose: PurposeThought,
		tmpl:    prompt.JudgeThought,
		scores: []scoreField{
			{"listener_coherence_score", MetricListenerThought},
			{"recsys_coherence_score", MetricRecsysThought},
		},
		applies: hasTurns,
	},
	{
		purpose: PurposeMessage,
		tmpl:    prompt.JudgeMessage,
		scores: []scoreField{
			{"listener_quality_score", MetricListenerMessage},
			{"recsys_quality_score", MetricRecsysMessage},
			{"listener_helpfulness_score", MetricListenerHelpfulness},
			{"recsys_accuracy_score", MetricRecsysMessageAccuracy},
		},
		applies: hasTurns,
	},
	{
		purpose: PurposeTrackRelevance,
		tmpl:    prompt.JudgeTrackRelevance,
		scores:  []scoreField{{"recommendation_score", MetricTrackRelevance}},
		applies: hasTurns,
	},
}

// Options configure the judge calls.
type Options struct {
	Model     string
	MaxTokens int
	Logger    *logger.Logger
}

// Evaluator runs every judge over saved conversations.
type Evaluator struct {
	backend llm.Backend
	opts    Options
	log     *logger.Logger
}

// New creates an evaluator.
func New(backend llm.Backend, opts Options) *Evaluator {
	return &Evaluator{
		backend: backend,
		opts:    opts,
		log:     logger.OrGlobal(opts.Logger).Named("eval"),
	}
}

// ConversationScores holds the scores of one conversation. Score 0 means the
// judge reply carried no usable score.
type ConversationScores struct {
	Dir    string         `json:"dir"`
	Scores map[string]int `json:"scores"`
}

// Evaluate scores every conversation under st. Unreadable chats are skipped;
// a missing goal or profile only disables the judges that need it. Model-call
// errors abort the evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, st *store.Store) (*Report, error) {
	var results []ConversationScores
	skipped := 0

	err := st.Walk(func(dir string) error {
		out, ok := e.load(st, dir)
		if !ok {
			skipped++
			return nil
		}
		scores, err := e.EvaluateConversation(ctx, out)
		if err != nil {
			return fmt.Errorf("%s: %w", dir, err)
		}
		e.log.Info("conversation evaluated", zap.String("dir", dir), zap.Int("scores", len(scores)))
		results = append(results, ConversationScores{Dir: dir, Scores: scores})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return aggregate(results, skipped), nil
}

func (e *Evaluator) load(st *store.Store, dir string) (*model.Outputs, bool) {
	chat, err := st.LoadChat(dir)
	if err != nil {
		e.log.Warn("skipping unreadable conversation", zap.String("dir", dir), zap.Error(err))
		return nil, false
	}
	out, err := st.Load(dir)
	if err != nil {
		e.log.Warn("goal or profile unreadable, judging the chat alone", zap.String("dir", dir), zap.Error(err))
		return &model.Outputs{Chat: chat}, true
	}
	return out, true
}

// EvaluateConversation runs the applicable judges over one conversation and
// returns its scores by metric.
func (e *Evaluator) EvaluateConversation(ctx context.Context, out *model.Outputs) (map[string]int, error) {
	params, err := judgeParams(out)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]int)
	for _, j := range judges {
		if !j.applies(out) {
			continue
		}
		text, err := j.tmpl.Render(params)
		if err != nil {
			return nil, err
		}
		resp, err := e.backend.Generate(ctx, &llm.Request{
			Model:     e.opts.Model,
			MaxTokens: e.opts.MaxTokens,
			Messages:  []llm.Message{{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart(text)}}},
			Purpose:   j.purpose,
		})
		if err != nil {
			return nil, err
		}
		for _, sf := range j.scores {
			s := Score(resp.Text, sf.field)
			if s == 0 {
				e.log.Warn("judge reply has no usable score",
					zap.String("purpose", j.purpose),
					zap.String("field", sf.field),
				)
			}
			metrics.RecordJudgeScore(sf.metric, s)
			scores[sf.metric] = s
		}
	}
	return scores, nil
}
