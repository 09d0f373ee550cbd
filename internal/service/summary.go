package service

import (
	"go.uber.org/zap"

	"github.com/capitalize-ai/convsynth/internal/store"
	"github.com/capitalize-ai/convsynth/pkg/logger"
)

// Summary aggregates every saved conversation under a store.
type Summary struct {
	Conversations     int            `json:"conversations"`
	Skipped           int            `json:"skipped"`
	Turns             int            `json:"turns"`
	AverageTurns      float64        `json:"average_turns"`
	GoalProgress      map[string]int `json:"goal_progress"`
	RecommendedTracks int            `json:"recommended_tracks"`
	UniqueTracks      int            `json:"unique_tracks"`
}

// Summarize reads every chat under st. Chats that cannot be read are logged
// and counted as skipped.
func Summarize(st *store.Store) (*Summary, error) {
	log := logger.Global().Named("summary")
	s := &Summary{GoalProgress: make(map[string]int)}
	unique := make(map[string]struct{})

	err := st.Walk(func(dir string) error {
		chat, err := st.LoadChat(dir)
		if err != nil {
			log.Warn("skipping unreadable conversation", zap.String("dir", dir), zap.Error(err))
			s.Skipped++
			return nil
		}
		s.Conversations++
		s.Turns += len(chat)
		for _, t := range chat {
			if a := t.Listener.GoalProgressAssessment; a != "" {
				s.GoalProgress[string(a)]++
			}
			if t.Recsys.TrackID != "" {
				s.RecommendedTracks++
				unique[t.Recsys.TrackID] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.UniqueTracks = len(unique)
	if s.Conversations > 0 {
		s.AverageTurns = float64(s.Turns) / float64(s.Conversations)
	}
	return s, nil
}
