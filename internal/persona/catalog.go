package persona

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/capitalize-ai/convsynth/internal/model"
)

//go:embed goal_catalog.yaml
var catalogYAML []byte

// DefaultTargetTurnCount is the turn budget of a catalog goal.
const DefaultTargetTurnCount = 8

// Specificity describes how precise the listener is at the start and at the end.
type Specificity struct {
	Code              string `yaml:"code"`
	Description       string `yaml:"description"`
	ListenerExpertise string `yaml:"listener_expertise"`
}

// GoalTemplate is one category at one specificity.
type GoalTemplate struct {
	ListenerGoal string   `yaml:"listener_goal"`
	Initial      []string `yaml:"initial"`
	Iteration    []string `yaml:"iteration"`
	Achieved     []string `yaml:"achieved"`
}

// Category is a kind of conversation goal.
type Category struct {
	Code        string                  `yaml:"code"`
	Description string                  `yaml:"description"`
	Goals       map[string]GoalTemplate `yaml:"goals"`
}

// Catalog holds every selectable goal template.
type Catalog struct {
	Specificities []Specificity `yaml:"specificities"`
	Categories    []Category    `yaml:"categories"`
}

// ParseCatalog decodes and validates a catalog. Every category must define a
// goal for every specificity.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse goal catalog: %w", err)
	}
	if len(c.Categories) == 0 || len(c.Specificities) == 0 {
		return nil, errors.New("goal catalog is empty")
	}
	for _, cat := range c.Categories {
		for _, spec := range c.Specificities {
			g, ok := cat.Goals[spec.Code]
			if !ok {
				return nil, fmt.Errorf("goal catalog: category %s has no %s goal", cat.Code, spec.Code)
			}
			if g.ListenerGoal == "" || len(g.Initial) == 0 {
				return nil, fmt.Errorf("goal catalog: %s/%s needs a listener goal and initial queries", cat.Code, spec.Code)
			}
		}
	}
	return &c, nil
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
})

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() *Catalog {
	c, err := defaultCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup builds the goal for a category and specificity code.
func (c *Catalog) Lookup(category, specificity string) (model.ConversationGoal, bool) {
	var spec *Specificity
	for i := range c.Specificities {
		if c.Specificities[i].Code == specificity {
			spec = &c.Specificities[i]
			break
		}
	}
	if spec == nil {
		return model.ConversationGoal{}, false
	}
	for _, cat := range c.Categories {
		if cat.Code != category {
			continue
		}
		g, ok := cat.Goals[specificity]
		if !ok {
			return model.ConversationGoal{}, false
		}
		return model.ConversationGoal{
			CategoryCode:           cat.Code,
			CategoryDescription:    cat.Description,
			SpecificityCode:        spec.Code,
			SpecificityDescription: spec.Description,
			ListenerGoal:           g.ListenerGoal,
			ListenerExpertise:      spec.ListenerExpertise,
			InitialQueryExamples:   g.Initial,
			IterationQueryExamples: g.Iteration,
			AchievedQueryExamples:  g.Achieved,
			TargetTurnCount:        DefaultTargetTurnCount,
		}, true
	}
	return model.ConversationGoal{}, false
}

// All returns every goal in catalog order, category-major.
func (c *Catalog) All() model.ConversationGoals {
	out := make(model.ConversationGoals, 0, len(c.Categories)*len(c.Specificities))
	for _, cat := range c.Categories {
		for _, spec := range c.Specificities {
			if g, ok := c.Lookup(cat.Code, spec.Code); ok {
				out = append(out, g)
			}
		}
	}
	return out
}

// Sample shuffles all goals with rng and returns the first n.
func (c *Catalog) Sample(rng *rand.Rand, n int) (model.ConversationGoals, error) {
	if n <= 0 {
		return nil, fmt.Errorf("cannot sample %d goals", n)
	}
	all := c.All()
	rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if n > len(all) {
		n = len(all)
	}
	return all[:n], nil
}

// NewRand returns the generator used for goal sampling.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}
