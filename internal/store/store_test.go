package store

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/capitalize-ai/convsynth/internal/model"
)

func sampleOutputs() *model.Outputs {
	track := model.Track{TrackID: "t1", Title: "Rock & Roll <live>", Artist: "Band", Album: "Album", Tags: []string{"rock"}, AudioPath: "t1.mp3"}
	return &model.Outputs{
		Profiling: model.Profiling{
			User:    model.User{UserID: "u1", Country: "KR"},
			Profile: model.ListenerProfile{Country: "KR", PreferredLanguage: "Korean", Top1Artist: "아이유"},
			Summary: "## Listener Profile\n",
		},
		ConversationGoal: model.ConversationGoal{
			CategoryCode:         "A",
			SpecificityCode:      "LL",
			ListenerGoal:         "explore",
			InitialQueryExamples: []string{"hi", "hello"},
			TargetTurnCount:      4,
		},
		Chat: model.ConversationTurns{
			{
				Turn:     1,
				Listener: model.ListenerTurn{Turn: 1, Message: "hi"},
				Recsys:   model.RecsysTurn{Turn: 1, TrackID: "t1", Message: "try", Thought: "fits", Track: track},
			},
			{
				Turn:     2,
				Listener: model.ListenerTurn{Turn: 2, Message: "more", GoalProgressAssessment: model.MovesTowardGoal},
				Recsys:   model.RecsysTurn{Turn: 2, TrackID: "t2", Message: "ok", Track: model.Track{TrackID: "t2", Tags: []string{}}},
			},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	empty := sampleOutputs()
	empty.Chat = model.ConversationTurns{}

	tests := []struct {
		name string
		out  *model.Outputs
	}{
		{"dialogue", sampleOutputs()},
		{"empty pool", empty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(t.TempDir())
			dir := s.RunDir("gemini-2.5-flash", "dummy", "u1", "s1", "r1")

			if err := s.Save(dir, tt.out, nil, nil); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := s.Load(dir)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !reflect.DeepEqual(got, tt.out) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, tt.out)
			}

			if _, err := os.Stat(filepath.Join(dir, ReportFile)); !os.IsNotExist(err) {
				t.Error("run.json must not be written without a report")
			}
		})
	}
}

func TestSaveWritesReadableJSON(t *testing.T) {
	s := New(t.TempDir())
	dir := s.RunDir("m", "dummy", "u1", "s1", "r1")
	report := &model.RunReport{RunID: "r1", Turns: 2, StartedAt: time.Unix(0, 0).UTC()}
	interactions := []model.Interaction{{Purpose: "profile", Prompt: "p", Response: "r"}}

	if err := s.Save(dir, sampleOutputs(), report, interactions); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ChatFile))
	if err != nil {
		t.Fatalf("read chat: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "Rock & Roll <live>") {
		t.Error("HTML characters must not be escaped")
	}
	if !strings.Contains(text, "\n  {\n    \"turn\": 1,") {
		t.Errorf("expected 2-space indentation, got:\n%s", text[:60])
	}
	if !strings.Contains(text, `"goal_progress_assessment": "MOVES_TOWARD_GOAL"`) {
		t.Error("assessment missing from chat")
	}

	profiling, _ := os.ReadFile(filepath.Join(dir, ProfilingFile))
	if !strings.Contains(string(profiling), "아이유") {
		t.Error("non-ASCII text must be written as is")
	}

	r, err := s.LoadReport(dir)
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	if r.RunID != "r1" || r.Turns != 2 {
		t.Errorf("unexpected report %+v", r)
	}
	if _, err := os.Stat(filepath.Join(dir, InteractionsFile)); err != nil {
		t.Errorf("interactions.json not written: %v", err)
	}
}

func TestEmptyChatIsArray(t *testing.T) {
	s := New(t.TempDir())
	dir := filepath.Join(s.Root(), "run")
	out := sampleOutputs()
	out.Chat = nil

	if err := s.Save(dir, out, nil, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, ChatFile))
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("expected empty array, got %q", data)
	}
}

func TestRunDirAndWalk(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	dir := s.RunDir("models/gemini", "dummy", "u1", "s1", "r1")
	if want := filepath.Join(root, "models_gemini", "dummy", "u1", "s1", "r1"); dir != want {
		t.Errorf("RunDir = %q, want %q", dir, want)
	}

	dirs := []string{dir, s.RunDir("models/gemini", "dummy", "u1", "s1", "r2"), s.RunDir("m", "dummy", "u2", "s9", "r3")}
	for _, d := range dirs {
		if err := s.Save(d, sampleOutputs(), nil, nil); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "stray"), 0o755); err != nil {
		t.Fatal(err)
	}

	var found []string
	if err := s.Walk(func(d string) error {
		found = append(found, d)
		return nil
	}); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	sort.Strings(found)
	sort.Strings(dirs)
	if !reflect.DeepEqual(found, dirs) {
		t.Errorf("Walk found %v, want %v", found, dirs)
	}

	if err := New(filepath.Join(root, "missing")).Walk(func(string) error { return nil }); err != nil {
		t.Errorf("missing root should not fail: %v", err)
	}
}
