package model

import (
	"fmt"
)

// ConversationTurn pairs the listener turn with the recommendation that answers it.
type ConversationTurn struct {
	Turn     int          `json:"turn"`
	Listener ListenerTurn `json:"listener"`
	Recsys   RecsysTurn   `json:"recsys"`
}

// ConversationTurns is the ordered, append-only transcript.
type ConversationTurns []ConversationTurn

// UsedTrackIDs returns the ids recommended so far, in order.
func (c ConversationTurns) UsedTrackIDs() []string {
	ids := make([]string, 0, len(c))
	for _, t := range c {
		ids = append(ids, t.Recsys.TrackID)
	}
	return ids
}

// Validate checks that turn indices run 1..n without gaps and that no track
// is recommended twice.
func (c ConversationTurns) Validate() error {
	seen := make(map[string]int, len(c))
	for i, t := range c {
		want := i + 1
		if t.Turn != want || t.Listener.Turn != want || t.Recsys.Turn != want {
			return fmt.Errorf("turn %d: index mismatch (turn=%d listener=%d recsys=%d)",
				want, t.Turn, t.Listener.Turn, t.Recsys.Turn)
		}
		if prev, ok := seen[t.Recsys.TrackID]; ok {
			return fmt.Errorf("turn %d: track %q already recommended in turn %d", want, t.Recsys.TrackID, prev)
		}
		seen[t.Recsys.TrackID] = want
	}
	return nil
}

// Profiling is the persisted persona description.
type Profiling struct {
	User    User            `json:"user"`
	Profile ListenerProfile `json:"profile"`
	Summary string          `json:"summary"`
}

// Outputs is the unit persisted per run.
type Outputs struct {
	Profiling        Profiling         `json:"profiling"`
	ConversationGoal ConversationGoal  `json:"conversation_goal"`
	Chat             ConversationTurns `json:"chat"`
}
