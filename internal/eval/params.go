package eval

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/capitalize-ai/convsynth/internal/model"
	"github.com/capitalize-ai/convsynth/internal/prompt"
)

type personaView struct {
	Thought string `json:"thought"`
	Message string `json:"message"`
}

type trackView struct {
	TrackID string `json:"track_id"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Album   string `json:"album"`
}

type recsysView struct {
	Thought string    `json:"thought"`
	Message string    `json:"message"`
	Track   trackView `json:"track"`
}

type turnView struct {
	TurnNumber int         `json:"turn_number"`
	Listener   personaView `json:"listener"`
	Recsys     recsysView  `json:"recsys"`
}

type assessmentView struct {
	TurnNumber int    `json:"turn_number"`
	Assessment string `json:"assessment"`
}

var judgeTrackOptions = prompt.TrackOptions{LyricChars: 100, MaxTags: 10}

// judgeParams renders one conversation into the parameters every judge
// template draws from.
func judgeParams(out *model.Outputs) (prompt.Params, error) {
	turns := make([]turnView, 0, len(out.Chat))
	assessments := make([]assessmentView, 0, len(out.Chat))
	recommended := make([]model.Track, 0, len(out.Chat))
	for _, t := range out.Chat {
		track := t.Recsys.Track
		if track.TrackID == "" {
			track.TrackID = t.Recsys.TrackID
		}
		turns = append(turns, turnView{
			TurnNumber: t.Turn,
			Listener:   personaView{Thought: t.Listener.Thought, Message: t.Listener.Message},
			Recsys: recsysView{
				Thought: t.Recsys.Thought,
				Message: t.Recsys.Message,
				Track:   trackView{TrackID: track.TrackID, Title: track.Title, Artist: track.Artist, Album: track.Album},
			},
		})
		assessments = append(assessments, assessmentView{TurnNumber: t.Turn, Assessment: string(t.Listener.GoalProgressAssessment)})
		recommended = append(recommended, track)
	}

	goal, err := json.MarshalIndent(out.ConversationGoal, "", "  ")
	if err != nil {
		return nil, err
	}
	turnsJSON, err := json.Marshal(turns)
	if err != nil {
		return nil, err
	}
	profile, err := json.Marshal(out.Profiling.Profile)
	if err != nil {
		return nil, err
	}
	assessJSON, err := json.Marshal(assessments)
	if err != nil {
		return nil, err
	}

	tracks := recommendedTracks(model.NewTracks(recommended...))
	return prompt.Params{
		"conversation_goal":           string(goal),
		"conversation_turns":          string(turnsJSON),
		"listener_profile":            string(profile),
		"goal_progress_assessment":    string(assessJSON),
		"recommended_tracks_content":  tracks,
		"recommendation_pool_content": tracks,
	}, nil
}

// recommendedTracks renders the tracks the recommender used. Saved runs keep
// no pool, so they stand in for it too.
func recommendedTracks(tracks model.Tracks) string {
	var b strings.Builder
	b.WriteString("## RECOMMENDED TRACKS:\n")
	if len(tracks) == 0 {
		b.WriteString("(none)\n")
	}
	for _, t := range tracks {
		b.WriteString(prompt.TrackText(t, judgeTrackOptions))
	}
	return b.String()
}

// Score reads a 1-4 score for field from a judge reply. A value that is not
// a plain number yields its first digit in 1-4. When the field is missing the
// first such digit anywhere in the reply is used. 0 means no score was found.
func Score(text, field string) int {
	var fields map[string]string
	if err := prompt.Decode(text, []string{field}, &fields); err != nil {
		return firstScoreDigit(text)
	}
	v := strings.TrimSpace(fields[field])
	if n, err := strconv.Atoi(v); err == nil {
		if validScore(n) {
			return n
		}
		return 0
	}
	return firstScoreDigit(v)
}

func validScore(n int) bool {
	return n >= 1 && n <= 4
}

func firstScoreDigit(s string) int {
	for _, r := range s {
		if r >= '1' && r <= '4' {
			return int(r - '0')
		}
	}
	return 0
}
