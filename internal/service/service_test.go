package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/capitalize-ai/convsynth/internal/llm"
	"github.com/capitalize-ai/convsynth/internal/llm/llmtest"
	"github.com/capitalize-ai/convsynth/internal/model"
	"github.com/capitalize-ai/convsynth/internal/store"
	"github.com/capitalize-ai/convsynth/pkg/logger"
)

func tracks(prefix string, n int) model.Tracks {
	var ts []model.Track
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("%s%d", prefix, i)
		ts = append(ts, model.Track{TrackID: id, Title: "Song " + id, Artist: "Artist", Album: "Album", Tags: []string{}})
	}
	return model.NewTracks(ts...)
}

func sessionData(liked, pool int) *model.SessionData {
	return &model.SessionData{
		SessionID: "sess_1",
		User:      model.User{UserID: "u_1", Country: "KR", PreferredLanguage: "Korean"},
		Liked:     tracks("l", liked),
		Pool:      tracks("p", pool),
		Source:    "test",
	}
}

func newOrchestrator(backend llm.Backend, opts Options) *Orchestrator {
	opts.Model = "test-model"
	opts.Seed = 7
	opts.Logger = logger.Nop()
	return New(backend, opts)
}

func TestGenerateFullDialogue(t *testing.T) {
	backend := llmtest.New(llmtest.Dialogue)
	o := newOrchestrator(backend, Options{})

	res, err := o.Generate(context.Background(), sessionData(2, 6), 4)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	chat := res.Outputs.Chat
	if len(chat) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(chat))
	}
	seen := make(map[string]bool)
	for i, c := range chat {
		if c.Turn != i+1 || c.Listener.Turn != i+1 || c.Recsys.Turn != i+1 {
			t.Errorf("turn %d has indices %d/%d/%d", i+1, c.Turn, c.Listener.Turn, c.Recsys.Turn)
		}
		if seen[c.Recsys.TrackID] {
			t.Errorf("track %s recommended twice", c.Recsys.TrackID)
		}
		seen[c.Recsys.TrackID] = true
		if c.Recsys.Track.TrackID != c.Recsys.TrackID {
			t.Errorf("turn %d carries track %q for id %q", c.Turn, c.Recsys.Track.TrackID, c.Recsys.TrackID)
		}
	}
	if chat[0].Listener.GoalProgressAssessment != "" {
		t.Error("the opening request carries no assessment")
	}
	if chat[1].Listener.GoalProgressAssessment != model.MovesTowardGoal {
		t.Errorf("unexpected assessment %q", chat[1].Listener.GoalProgressAssessment)
	}

	if got := len(backend.RequestsFor(llm.PurposeListenerTurn)); got != 3 {
		t.Errorf("expected 3 reactions for 4 turns, got %d", got)
	}
	if res.Report.Turns != 4 || res.Report.PoolExhausted {
		t.Errorf("unexpected report %+v", res.Report)
	}
	if res.Report.RunID == "" || res.Report.Backend != "fake" || res.Report.RequestedTurns != 4 {
		t.Errorf("report not labelled: %+v", res.Report)
	}
	if _, ok := res.Report.Usage[llm.PurposeRecsysTurn]; !ok {
		t.Error("usage missing for recsys turns")
	}
	if len(res.Interactions) != len(backend.Requests()) {
		t.Errorf("expected one interaction per request, got %d for %d", len(res.Interactions), len(backend.Requests()))
	}
	if res.Outputs.Profiling.Profile.Country != "KR" {
		t.Errorf("profile lost user demographics: %+v", res.Outputs.Profiling.Profile)
	}
}

func TestGenerateStopsWhenPoolIsExhausted(t *testing.T) {
	backend := llmtest.New(llmtest.Dialogue)
	o := newOrchestrator(backend, Options{})

	res, err := o.Generate(context.Background(), sessionData(1, 3), 5)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	chat := res.Outputs.Chat
	if len(chat) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(chat))
	}
	ids := make(map[string]bool)
	for _, c := range chat {
		ids[c.Recsys.TrackID] = true
	}
	if len(ids) != 3 {
		t.Errorf("expected 3 distinct tracks, got %v", ids)
	}
	if !res.Report.PoolExhausted {
		t.Error("report should flag the exhausted pool")
	}
	if got := len(backend.RequestsFor(llm.PurposeListenerTurn)); got != 2 {
		t.Errorf("no reaction may follow the last recommendation, got %d reactions", got)
	}
}

func TestGenerateRemovesRecommendedTracks(t *testing.T) {
	backend := llmtest.New(llmtest.Dialogue)
	o := newOrchestrator(backend, Options{})

	if _, err := o.Generate(context.Background(), sessionData(1, 4), 4); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	reqs := backend.RequestsFor(llm.PurposeRecsysTurn)
	want := []string{"[p1, p2, p3, p4]", "[p2, p3, p4]", "[p3, p4]", "[p4]"}
	if len(reqs) != len(want) {
		t.Fatalf("expected %d recsys requests, got %d", len(want), len(reqs))
	}
	for i, r := range reqs {
		if got := "[" + strings.Join(llmtest.RemainingIDs(&r), ", ") + "]"; got != want[i] {
			t.Errorf("turn %d offered %s, want %s", i+1, got, want[i])
		}
	}
}

func TestGenerateEmptyPool(t *testing.T) {
	backend := llmtest.New(llmtest.Dialogue)
	o := newOrchestrator(backend, Options{})

	res, err := o.Generate(context.Background(), sessionData(2, 0), 3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Outputs.Chat == nil || len(res.Outputs.Chat) != 0 {
		t.Errorf("expected an empty, non-nil chat, got %#v", res.Outputs.Chat)
	}
	if len(backend.RequestsFor(llm.PurposeListenerOpen)) != 1 {
		t.Error("the opening request is still made")
	}
}

func TestGenerateRejectsNonPositiveTurns(t *testing.T) {
	o := newOrchestrator(llmtest.New(llmtest.Dialogue), Options{})
	if _, err := o.Generate(context.Background(), sessionData(1, 1), 0); !errors.Is(err, ErrInvalidTurns) {
		t.Fatalf("expected ErrInvalidTurns, got %v", err)
	}
}

func TestGenerateUploadFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	data := sessionData(0, 5)
	for i := range data.Pool {
		name := data.Pool[i].TrackID + ".mp3"
		if err := os.WriteFile(filepath.Join(dir, name), []byte("audio"), 0o644); err != nil {
			t.Fatal(err)
		}
		data.Pool[i].AudioPath = name
	}

	backend := llmtest.New(llmtest.Dialogue)
	backend.UploadErr = func(path string) error {
		if filepath.Base(path) == "p3.mp3" {
			return errors.New("quota exceeded")
		}
		return nil
	}
	o := newOrchestrator(backend, Options{AudioBasePath: dir})

	res, err := o.Generate(context.Background(), data, 5)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Outputs.Chat) != 5 {
		t.Errorf("expected 5 turns, got %d", len(res.Outputs.Chat))
	}
	if len(res.Report.Warnings) != 1 || res.Report.Warnings[0].TrackID != "p3" {
		t.Errorf("expected one warning for p3, got %+v", res.Report.Warnings)
	}
	var recommended bool
	for _, c := range res.Outputs.Chat {
		if c.Recsys.TrackID == "p3" {
			recommended = true
		}
	}
	if !recommended {
		t.Error("a track without artifacts stays recommendable")
	}
}

func TestGenerateCallErrorIsFatal(t *testing.T) {
	boom := errors.New("service unavailable")
	backend := llmtest.New(func(req *llm.Request) (string, error) {
		if req.Purpose == llm.PurposeListenerTurn {
			return "", boom
		}
		return llmtest.Dialogue(req)
	})
	o := newOrchestrator(backend, Options{})

	_, err := o.Generate(context.Background(), sessionData(1, 4), 4)
	var ce *llm.CallError
	if !errors.As(err, &ce) || ce.Purpose != llm.PurposeListenerTurn {
		t.Fatalf("expected a listener call error, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("call error must wrap the backend error")
	}
	if !strings.HasPrefix(err.Error(), string(StateListenerReaction)) {
		t.Errorf("error should name the failing state, got %q", err)
	}
}

func TestGenerateContractViolationIsFatal(t *testing.T) {
	backend := llmtest.New(func(req *llm.Request) (string, error) {
		if req.Purpose == llm.PurposeRecsysTurn {
			return "thought: hm\ntrack_id: nope\nmessage: here", nil
		}
		return llmtest.Dialogue(req)
	})
	o := newOrchestrator(backend, Options{})

	_, err := o.Generate(context.Background(), sessionData(1, 4), 4)
	if !errors.Is(err, model.ErrContractViolation) {
		t.Fatalf("expected a contract violation, got %v", err)
	}
	var ce *model.ContractError
	if !errors.As(err, &ce) || ce.Kind != model.ContractUnknownTrack || ce.Turn != 1 {
		t.Errorf("unexpected contract error %+v", ce)
	}
}

type fixedSessions struct {
	data *model.SessionData
}

func (f fixedSessions) FirstSession(context.Context) (*model.SessionData, error) {
	return f.data, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*model.RunEvent
	err    error
}

func (p *recordingPublisher) PublishRunCompleted(_ context.Context, e *model.RunEvent) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return uint64(len(p.events)), p.err
}

func TestRunnerSavesAndPublishes(t *testing.T) {
	st := store.New(t.TempDir())
	pub := &recordingPublisher{}
	r := NewRunner(newOrchestrator(llmtest.New(llmtest.Dialogue), Options{}), fixedSessions{sessionData(1, 3)}, st, pub, logger.Nop())

	report, err := r.Run(context.Background(), 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	dir := st.RunDir("test-model", "test", "u_1", "sess_1", report.RunID)
	if report.OutputDir != dir {
		t.Errorf("output dir %q, want %q", report.OutputDir, dir)
	}
	out, err := st.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out.Chat) != 2 {
		t.Errorf("expected 2 saved turns, got %d", len(out.Chat))
	}
	saved, err := st.LoadReport(dir)
	if err != nil || saved.RunID != report.RunID {
		t.Errorf("manifest not saved: %v %+v", err, saved)
	}

	if len(pub.events) != 1 || pub.events[0].RunID != report.RunID || pub.events[0].Turns != 2 {
		t.Errorf("unexpected events %+v", pub.events)
	}

	got, err := r.Get(context.Background(), report.RunID)
	if err != nil || got.RunID != report.RunID {
		t.Errorf("Get: %v %+v", err, got)
	}
	if _, err := r.Get(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRunnerPublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("no responders")}
	r := NewRunner(newOrchestrator(llmtest.New(llmtest.Dialogue), Options{}), fixedSessions{sessionData(1, 2)}, store.New(t.TempDir()), pub, logger.Nop())

	if _, err := r.Run(context.Background(), 2); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunnerKeepsEveryRunDir(t *testing.T) {
	st := store.New(t.TempDir())
	r := NewRunner(newOrchestrator(llmtest.New(llmtest.Dialogue), Options{}), fixedSessions{sessionData(1, 2)}, st, nil, logger.Nop())

	first, err := r.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := r.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if first.OutputDir == second.OutputDir {
		t.Fatalf("runs of one session share %s", first.OutputDir)
	}
	for _, rep := range []*model.RunReport{first, second} {
		saved, err := st.LoadReport(rep.OutputDir)
		if err != nil || saved.RunID != rep.RunID {
			t.Errorf("run %s: saved manifest %+v, %v", rep.RunID, saved, err)
		}
	}
}

func TestRunnerWaitHonoursContext(t *testing.T) {
	backend := llmtest.New(llmtest.Dialogue)
	r := NewRunner(newOrchestrator(backend, Options{}), fixedSessions{sessionData(1, 2)}, store.New(t.TempDir()), nil, logger.Nop())

	// Another run holds the slot.
	r.slot <- struct{}{}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if n := len(backend.Requests()); n != 0 {
		t.Errorf("a waiting run must not call the model, got %d requests", n)
	}

	<-r.slot
	if _, err := r.Run(context.Background(), 1); err != nil {
		t.Errorf("Run after the slot is free: %v", err)
	}
}

func TestRunnerListIsNewestFirst(t *testing.T) {
	r := NewRunner(newOrchestrator(llmtest.New(llmtest.Dialogue), Options{}), fixedSessions{sessionData(1, 2)}, store.New(t.TempDir()), nil, logger.Nop())

	var ids []string
	for i := 0; i < 3; i++ {
		report, err := r.Run(context.Background(), 1)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		ids = append(ids, report.RunID)
	}

	page := r.List(context.Background(), 2, 0)
	if page.Total != 3 || !page.HasMore || len(page.Runs) != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Runs[0].RunID != ids[2] || page.Runs[1].RunID != ids[1] {
		t.Errorf("runs not newest first")
	}
	last := r.List(context.Background(), 2, 2)
	if last.HasMore || len(last.Runs) != 1 || last.Runs[0].RunID != ids[0] {
		t.Errorf("unexpected last page %+v", last)
	}
	if empty := r.List(context.Background(), 10, 50); len(empty.Runs) != 0 {
		t.Errorf("offset past the end should be empty, got %d", len(empty.Runs))
	}
}

func TestSummarize(t *testing.T) {
	st := store.New(t.TempDir())
	turn := func(i int, id string, a model.GoalProgress) model.ConversationTurn {
		return model.ConversationTurn{
			Turn:     i,
			Listener: model.ListenerTurn{Turn: i, Message: "m", GoalProgressAssessment: a},
			Recsys:   model.RecsysTurn{Turn: i, TrackID: id, Message: "r"},
		}
	}
	runs := map[string]model.ConversationTurns{
		"s1": {turn(1, "a", ""), turn(2, "b", model.MovesTowardGoal), turn(3, "c", model.DoesNotMoveTowardGoal)},
		"s2": {turn(1, "a", "")},
	}
	for sess, chat := range runs {
		dir := st.RunDir("m", "src", "u", sess, "r1")
		if err := st.Save(dir, &model.Outputs{Chat: chat}, nil, nil); err != nil {
			t.Fatal(err)
		}
	}

	s, err := Summarize(st)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Conversations != 2 || s.Turns != 4 || s.AverageTurns != 2 {
		t.Errorf("unexpected counts %+v", s)
	}
	if s.RecommendedTracks != 4 || s.UniqueTracks != 3 {
		t.Errorf("unexpected track counts %+v", s)
	}
	if s.GoalProgress[string(model.MovesTowardGoal)] != 1 || s.GoalProgress[string(model.DoesNotMoveTowardGoal)] != 1 {
		t.Errorf("unexpected distribution %v", s.GoalProgress)
	}
}

func TestSummarizeSkipsUnreadableChat(t *testing.T) {
	st := store.New(t.TempDir())
	chat := model.ConversationTurns{{
		Turn:     1,
		Listener: model.ListenerTurn{Turn: 1, Message: "m"},
		Recsys:   model.RecsysTurn{Turn: 1, TrackID: "a", Message: "r"},
	}}
	if err := st.Save(st.RunDir("m", "src", "u", "s1", "r1"), &model.Outputs{Chat: chat}, nil, nil); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(st.Root(), "bad")
	if err := os.MkdirAll(bad, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bad, store.ChatFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Summarize(st)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Conversations != 1 || s.Skipped != 1 || s.Turns != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestSummarizeMissingRoot(t *testing.T) {
	s, err := Summarize(store.New(filepath.Join(t.TempDir(), "none")))
	if err != nil || s.Conversations != 0 {
		t.Errorf("missing root should summarize to zero, got %+v %v", s, err)
	}
}
