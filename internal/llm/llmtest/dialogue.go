package llmtest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/capitalize-ai/convsynth/internal/llm"
)

var (
	offeredGoalRe = regexp.MustCompile(`- Category: (\w+)\n[\s\S]*?- Specificity: (\w+)\n`)
	remainingRe   = regexp.MustCompile(`\*\*Remaining Track IDs\*\* \(choose from these only\): \[([^\]]*)\]`)
)

// RemainingIDs extracts the ids offered to the recommender by a turn prompt.
func RemainingIDs(req *llm.Request) []string {
	m := remainingRe.FindStringSubmatch(req.LastUserText())
	if m == nil || m[1] == "" {
		return nil
	}
	return strings.Split(m[1], ", ")
}

// Dialogue answers every call of a run with a well formed reply. The goal is
// the first offered one and the recommender always takes the first remaining
// track.
func Dialogue(req *llm.Request) (string, error) {
	switch req.Purpose {
	case llm.PurposeProfile:
		return "preferred_musical_culture: K-pop\ntop_1_artist: IU\ntop_1_genre: ballad", nil
	case llm.PurposeGoal:
		m := offeredGoalRe.FindStringSubmatch(req.LastUserText())
		if m == nil {
			return "", fmt.Errorf("no offered goal in prompt")
		}
		return fmt.Sprintf(`category_code: %s
category_description: x
specificity_code: %s
specificity_description: y
listener_goal: Find calm music
listener_expertise: casual
initial_query_example_1: Something calm?
initial_query_example_2: Quiet music please.
iteration_query_example_1: Softer.
iteration_query_example_2: No vocals.
achieved_query_example_1: Perfect.
achieved_query_example_2: This is it.
target_turn_count: 4
`, m[1], m[2]), nil
	case llm.PurposeRecsysInit, llm.PurposeListenerInit:
		return "Understood.", nil
	case llm.PurposeListenerOpen:
		return "thought: start\nmessage: Something calm?", nil
	case llm.PurposeRecsysTurn:
		ids := RemainingIDs(req)
		if len(ids) == 0 {
			return "", fmt.Errorf("no remaining ids in prompt")
		}
		return fmt.Sprintf("thought: fits\ntrack_id: %s\nmessage: Try this one.", ids[0]), nil
	case llm.PurposeListenerTurn:
		return "thought: nice\ngoal_progress_assessment: MOVES_TOWARD_GOAL\nmessage: More like that.", nil
	}
	return "", fmt.Errorf("no scripted reply for purpose %q", req.Purpose)
}
