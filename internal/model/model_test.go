package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

func TestNewTracksDeduplicates(t *testing.T) {
	ts := NewTracks(
		Track{TrackID: "a", Title: "first"},
		Track{TrackID: "b"},
		Track{TrackID: "a", Title: "second"},
	)
	if len(ts) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(ts))
	}
	if ts[0].Title != "first" {
		t.Errorf("expected first occurrence to win, got '%s'", ts[0].Title)
	}
}

func TestTracksWithout(t *testing.T) {
	ts := NewTracks(Track{TrackID: "a"}, Track{TrackID: "b"}, Track{TrackID: "c"})
	rest := ts.Without("b")
	if len(rest) != 2 || rest.Contains("b") {
		t.Errorf("expected b removed, got %v", rest.IDs())
	}
	if len(ts) != 3 {
		t.Errorf("Without must not modify the receiver, got %v", ts.IDs())
	}
}

func TestTracksConcat(t *testing.T) {
	liked := NewTracks(Track{TrackID: "a"}, Track{TrackID: "b"})
	pool := NewTracks(Track{TrackID: "b"}, Track{TrackID: "c"})
	all := liked.Concat(pool)
	want := []string{"a", "b", "c"}
	if fmt.Sprint(all.IDs()) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, all.IDs())
	}
}

func TestArtifactPath(t *testing.T) {
	tr := Track{AudioPath: "a/1.mp3", ImagePath: "/abs/1.jpg"}
	if got := tr.ArtifactPath("audio", "/data"); got != filepath.Join("/data", "a/1.mp3") {
		t.Errorf("unexpected audio path '%s'", got)
	}
	if got := tr.ArtifactPath("image", "/data"); got != "/abs/1.jpg" {
		t.Errorf("absolute path must be kept, got '%s'", got)
	}
	if got := (Track{}).ArtifactPath("audio", "/data"); got != "" {
		t.Errorf("expected empty path, got '%s'", got)
	}
}

func TestParseGoalProgress(t *testing.T) {
	cases := map[string]GoalProgress{
		"MOVES_TOWARD_GOAL":           MovesTowardGoal,
		" moves_toward_goal ":         MovesTowardGoal,
		"[DOES_NOT_MOVE_TOWARD_GOAL]": DoesNotMoveTowardGoal,
		"does not move toward goal":   DoesNotMoveTowardGoal,
	}
	for in, want := range cases {
		got, err := ParseGoalProgress(in)
		if err != nil {
			t.Errorf("ParseGoalProgress(%q): unexpected error %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseGoalProgress(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseGoalProgress("MAYBE"); err == nil {
		t.Error("expected error for unknown label")
	}
}

func turn(i int, id string) ConversationTurn {
	return ConversationTurn{
		Turn:     i,
		Listener: ListenerTurn{Turn: i, Message: "m"},
		Recsys:   RecsysTurn{Turn: i, TrackID: id},
	}
}

func TestConversationTurnsValidate(t *testing.T) {
	ok := ConversationTurns{turn(1, "a"), turn(2, "b"), turn(3, "c")}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got := ok.UsedTrackIDs(); fmt.Sprint(got) != "[a b c]" {
		t.Errorf("unexpected used ids %v", got)
	}

	gap := ConversationTurns{turn(1, "a"), turn(3, "b")}
	if err := gap.Validate(); err == nil {
		t.Error("expected error for index gap")
	}

	repeat := ConversationTurns{turn(1, "a"), turn(2, "a")}
	if err := repeat.Validate(); err == nil {
		t.Error("expected error for repeated track")
	}
}

func TestContractErrorIs(t *testing.T) {
	err := fmt.Errorf("run failed: %w", &ContractError{Kind: ContractUnknownTrack, Purpose: "recsys_turn", Turn: 2, Detail: "x"})
	if !errors.Is(err, ErrContractViolation) {
		t.Error("expected errors.Is to match ErrContractViolation")
	}
	var ce *ContractError
	if !errors.As(err, &ce) || ce.Kind != ContractUnknownTrack {
		t.Errorf("expected ContractError with kind unknown_track, got %v", ce)
	}
}

func TestDemographicsMerge(t *testing.T) {
	defaults := Demographics{AgeGroup: "20s", Country: "US", Gender: "male", PreferredLanguage: "English"}
	got := User{UserID: "u1", Country: "KR"}.Demographics().Merge(defaults)
	want := Demographics{AgeGroup: "20s", Country: "KR", Gender: "male", PreferredLanguage: "English"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestReportTotalUsage(t *testing.T) {
	r := RunReport{Usage: map[string]TokenUsage{
		"profile": {InputTextTokens: 10, InputAudioTokens: 5, OutputTokens: 3},
		"goal":    {InputTextTokens: 1, InputImageTokens: 2, OutputTokens: 1},
	}}
	total := r.TotalUsage()
	if total.Input() != 18 || total.OutputTokens != 4 || total.Total() != 22 {
		t.Errorf("unexpected total %+v", total)
	}
}
