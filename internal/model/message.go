package model

import (
	"fmt"
	"strings"
)

// GoalProgress is the listener's judgement of the latest recommendation.
type GoalProgress string

const (
	MovesTowardGoal       GoalProgress = "MOVES_TOWARD_GOAL"
	DoesNotMoveTowardGoal GoalProgress = "DOES_NOT_MOVE_TOWARD_GOAL"
)

// ParseGoalProgress normalises a model-produced assessment label.
func ParseGoalProgress(s string) (GoalProgress, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.Trim(v, "[]\"'`")
	v = strings.ReplaceAll(v, " ", "_")
	switch GoalProgress(v) {
	case MovesTowardGoal, DoesNotMoveTowardGoal:
		return GoalProgress(v), nil
	}
	return "", fmt.Errorf("unknown goal progress assessment %q", s)
}

// ListenerTurn is one listener utterance. GoalProgressAssessment is empty on
// the opening request.
type ListenerTurn struct {
	Turn                   int          `json:"turn"`
	Message                string       `json:"message"`
	Thought                string       `json:"thought,omitempty"`
	GoalProgressAssessment GoalProgress `json:"goal_progress_assessment,omitempty"`
}

// RecsysTurn is one recommendation with the recommender's utterance.
type RecsysTurn struct {
	Turn    int    `json:"turn"`
	TrackID string `json:"track_id"`
	Message string `json:"message"`
	Thought string `json:"thought,omitempty"`
	Track   Track  `json:"track"`
}
