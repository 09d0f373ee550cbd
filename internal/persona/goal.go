package persona

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/convsynth/internal/llm"
	"github.com/capitalize-ai/convsynth/internal/model"
	"github.com/capitalize-ai/convsynth/internal/prompt"
	"github.com/capitalize-ai/convsynth/pkg/logger"
	"github.com/capitalize-ai/convsynth/pkg/metrics"
)

// DefaultGoalsToSample is how many catalog goals are offered to the model.
const DefaultGoalsToSample = 3

type goalReply struct {
	CategoryCode           string `yaml:"category_code"`
	CategoryDescription    string `yaml:"category_description"`
	SpecificityCode        string `yaml:"specificity_code"`
	SpecificityDescription string `yaml:"specificity_description"`
	ListenerGoal           string `yaml:"listener_goal"`
	ListenerExpertise      string `yaml:"listener_expertise"`
	InitialQueryExample1   string `yaml:"initial_query_example_1"`
	InitialQueryExample2   string `yaml:"initial_query_example_2"`
	IterationQueryExample1 string `yaml:"iteration_query_example_1"`
	IterationQueryExample2 string `yaml:"iteration_query_example_2"`
	AchievedQueryExample1  string `yaml:"achieved_query_example_1"`
	AchievedQueryExample2  string `yaml:"achieved_query_example_2"`
	TargetTurnCount        int    `yaml:"target_turn_count"`
}

// GoalGenerator picks and fills in a conversation goal for a pool.
type GoalGenerator struct {
	backend llm.Backend
	catalog *Catalog
	rng     *rand.Rand
	sample  int
	opts    Options
	logger  *logger.Logger
}

// NewGoalGenerator creates a generator offering sample goals drawn with a
// generator seeded by seed.
func NewGoalGenerator(backend llm.Backend, catalog *Catalog, seed uint64, sample int, opts Options) *GoalGenerator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if sample <= 0 {
		sample = DefaultGoalsToSample
	}
	return &GoalGenerator{
		backend: backend,
		catalog: catalog,
		rng:     NewRand(seed),
		sample:  sample,
		opts:    opts,
		logger:  logger.OrGlobal(opts.Logger).Named("goal"),
	}
}

// GenerateFromPool makes one model call over the pool. The chosen codes must
// be one of the offered goals and the turn budget must be positive.
func (g *GoalGenerator) GenerateFromPool(ctx context.Context, pool model.Tracks, artifacts prompt.Artifacts) (*model.ConversationGoal, error) {
	offered, err := g.catalog.Sample(g.rng, g.sample)
	if err != nil {
		return nil, err
	}

	pt1, err := prompt.ConversationGoalPt1.Render(prompt.Params{"number_of_conversation_goals": len(offered)})
	if err != nil {
		return nil, err
	}
	pt2, err := prompt.ConversationGoalPt2.Render(prompt.Params{"conversation_goal_templates": offered.PromptString()})
	if err != nil {
		return nil, err
	}

	parts := []llm.Part{llm.TextPart(pt1)}
	parts = append(parts, prompt.TrackParts("## RECOMMENDATION POOL\n\n", pool, artifacts, prompt.DefaultTrackOptions)...)
	parts = append(parts, llm.TextPart(pt2))

	resp, err := g.backend.Generate(ctx, &llm.Request{
		Model:     g.opts.Model,
		MaxTokens: g.opts.MaxTokens,
		Messages:  []llm.Message{{Role: llm.RoleUser, Parts: parts}},
		Purpose:   llm.PurposeGoal,
	})
	if err != nil {
		return nil, err
	}

	var reply goalReply
	if err := prompt.Decode(resp.Text, prompt.ConversationGoalPt2.Expected, &reply); err != nil {
		return nil, violation(prompt.ContractError(err, llm.PurposeGoal, 0))
	}

	goal, err := resolveGoal(reply, offered)
	if err != nil {
		return nil, err
	}
	g.logger.Info("conversation goal chosen",
		zap.String("category", goal.CategoryCode),
		zap.String("specificity", goal.SpecificityCode),
		zap.Int("target_turn_count", goal.TargetTurnCount),
	)
	return goal, nil
}

func resolveGoal(reply goalReply, offered model.ConversationGoals) (*model.ConversationGoal, error) {
	category := normaliseCode(reply.CategoryCode)
	specificity := normaliseCode(reply.SpecificityCode)

	var base *model.ConversationGoal
	for i := range offered {
		if offered[i].CategoryCode == category && offered[i].SpecificityCode == specificity {
			base = &offered[i]
			break
		}
	}
	if base == nil {
		return nil, violation(&model.ContractError{
			Kind:    model.ContractInvalidGoal,
			Purpose: llm.PurposeGoal,
			Detail:  fmt.Sprintf("%s/%s is not one of the offered goals", category, specificity),
		})
	}
	if reply.TargetTurnCount <= 0 {
		return nil, violation(&model.ContractError{
			Kind:    model.ContractInvalidGoal,
			Purpose: llm.PurposeGoal,
			Detail:  fmt.Sprintf("target_turn_count must be positive, got %d", reply.TargetTurnCount),
		})
	}

	return &model.ConversationGoal{
		CategoryCode:           base.CategoryCode,
		CategoryDescription:    base.CategoryDescription,
		SpecificityCode:        base.SpecificityCode,
		SpecificityDescription: base.SpecificityDescription,
		ListenerGoal:           reply.ListenerGoal,
		ListenerExpertise:      reply.ListenerExpertise,
		InitialQueryExamples:   []string{reply.InitialQueryExample1, reply.InitialQueryExample2},
		IterationQueryExamples: []string{reply.IterationQueryExample1, reply.IterationQueryExample2},
		AchievedQueryExamples:  []string{reply.AchievedQueryExample1, reply.AchievedQueryExample2},
		TargetTurnCount:        reply.TargetTurnCount,
	}, nil
}

func normaliseCode(s string) string {
	return strings.ToUpper(strings.Trim(strings.TrimSpace(s), "[]\"'`"))
}

func violation(ce *model.ContractError) *model.ContractError {
	metrics.RecordContractViolation(ce.Purpose, string(ce.Kind))
	return ce
}
