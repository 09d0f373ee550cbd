package model

import (
	"fmt"
	"strings"
)

// ListenerProfile is the synthetic listener persona.
type ListenerProfile struct {
	AgeGroup                string `json:"age_group" yaml:"age_group"`
	Country                 string `json:"country" yaml:"country"`
	Gender                  string `json:"gender" yaml:"gender"`
	PreferredMusicalCulture string `json:"preferred_musical_culture" yaml:"preferred_musical_culture"`
	PreferredLanguage       string `json:"preferred_language" yaml:"preferred_language"`
	Top1Artist              string `json:"top_1_artist" yaml:"top_1_artist"`
	Top1Genre               string `json:"top_1_genre" yaml:"top_1_genre"`
}

// PromptString renders the profile as a prompt section.
func (p ListenerProfile) PromptString() string {
	var b strings.Builder
	b.WriteString("## Listener Profile\n\n")
	fmt.Fprintf(&b, "- age_group: %s\n", p.AgeGroup)
	fmt.Fprintf(&b, "- country: %s\n", p.Country)
	fmt.Fprintf(&b, "- gender: %s\n", p.Gender)
	fmt.Fprintf(&b, "- preferred_musical_culture: %s\n", p.PreferredMusicalCulture)
	fmt.Fprintf(&b, "- preferred_language: %s\n", p.PreferredLanguage)
	fmt.Fprintf(&b, "- top_1_artist: %s\n", p.Top1Artist)
	fmt.Fprintf(&b, "- top_1_genre: %s\n", p.Top1Genre)
	return b.String()
}

// ConversationGoal is the outcome the listener steers the dialogue towards.
type ConversationGoal struct {
	CategoryCode           string   `json:"category_code"`
	CategoryDescription    string   `json:"category_description"`
	SpecificityCode        string   `json:"specificity_code"`
	SpecificityDescription string   `json:"specificity_description"`
	ListenerGoal           string   `json:"listener_goal"`
	ListenerExpertise      string   `json:"listener_expertise"`
	InitialQueryExamples   []string `json:"initial_query_examples"`
	IterationQueryExamples []string `json:"iteration_query_examples"`
	AchievedQueryExamples  []string `json:"achieved_query_examples"`
	TargetTurnCount        int      `json:"target_turn_count"`
}

// PromptString renders the goal as a prompt section.
func (g ConversationGoal) PromptString() string {
	var b strings.Builder
	b.WriteString("## Conversation Goal\n\n")
	fmt.Fprintf(&b, "- Category: %s\n", g.CategoryCode)
	fmt.Fprintf(&b, "- Category Description: %s\n", g.CategoryDescription)
	fmt.Fprintf(&b, "- Specificity: %s\n", g.SpecificityCode)
	fmt.Fprintf(&b, "- Specificity Description: %s\n", g.SpecificityDescription)
	fmt.Fprintf(&b, "- Listener goal: %s\n", g.ListenerGoal)
	fmt.Fprintf(&b, "- Listener expertise: %s\n", g.ListenerExpertise)
	fmt.Fprintf(&b, "- Target turn count: %d\n", g.TargetTurnCount)
	fmt.Fprintf(&b, "- Initial query example: %s\n", strings.Join(g.InitialQueryExamples, ", "))
	fmt.Fprintf(&b, "- Iteration query example: %s\n", strings.Join(g.IterationQueryExamples, ", "))
	fmt.Fprintf(&b, "- Achieved query example: %s", strings.Join(g.AchievedQueryExamples, ", "))
	return b.String()
}

// ConversationGoals is a list of goal templates offered to the model.
type ConversationGoals []ConversationGoal

// PromptString renders all goals as one prompt section.
func (gs ConversationGoals) PromptString() string {
	parts := make([]string, len(gs))
	for i, g := range gs {
		parts[i] = g.PromptString()
	}
	return "# Allowed Conversation Goals\n\n" + strings.Join(parts, "\n\n")
}
