package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/capitalize-ai/convsynth/internal/dataset"
	"github.com/capitalize-ai/convsynth/internal/llm"
	"github.com/capitalize-ai/convsynth/internal/llm/llmtest"
	"github.com/capitalize-ai/convsynth/internal/middleware"
	"github.com/capitalize-ai/convsynth/internal/model"
	"github.com/capitalize-ai/convsynth/internal/service"
	"github.com/capitalize-ai/convsynth/internal/store"
	"github.com/capitalize-ai/convsynth/pkg/logger"
)

type sessions struct {
	data *model.SessionData
	err  error
}

func (s sessions) FirstSession(context.Context) (*model.SessionData, error) {
	return s.data, s.err
}

type connState bool

func (c connState) IsConnected() bool { return bool(c) }

type events struct {
	after uint64
	limit int
}

func (e *events) GetRunEvents(_ context.Context, after uint64, limit int) ([]model.RunEvent, uint64, bool, error) {
	e.after, e.limit = after, limit
	return []model.RunEvent{{RunID: "r1", Turns: 3}}, after + 1, false, nil
}

func sessionData() *model.SessionData {
	return &model.SessionData{
		SessionID: "sess_1",
		User:      model.User{UserID: "u_1"},
		Liked:     model.NewTracks(model.Track{TrackID: "l1", Title: "Liked"}),
		Pool: model.NewTracks(
			model.Track{TrackID: "p1", Title: "One"},
			model.Track{TrackID: "p2", Title: "Two"},
			model.Track{TrackID: "p3", Title: "Three"},
		),
		Source: "test",
	}
}

func newRouter(t *testing.T, respond llmtest.RespondFunc, provider service.SessionProvider, ev EventReader, secret string) http.Handler {
	t.Helper()
	orch := service.New(llmtest.New(respond), service.Options{Model: "test-model", Logger: logger.Nop()})
	runner := service.NewRunner(orch, provider, store.New(t.TempDir()), nil, logger.Nop())
	return NewRouter(RouterConfig{
		Health:    NewHealthHandler(nil),
		Runs:      NewRunHandler(runner, ev, 2, logger.Nop()),
		JWTSecret: secret,
		Logger:    logger.Nop(),
	})
}

func do(h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(nil).Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ready without NATS should be 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewHealthHandler(connState(false)).Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("disconnected NATS should be 503, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewHealthHandler(connState(false)).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health should be 200, got %d", rec.Code)
	}
}

func TestCreateAndGetRun(t *testing.T) {
	h := newRouter(t, llmtest.Dialogue, sessions{data: sessionData()}, nil, "")

	rec := do(h, http.MethodPost, "/api/v1/runs", `{"num_turns": 3}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body)
	}
	var report model.RunReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Turns != 3 || report.RunID == "" {
		t.Errorf("unexpected report %+v", report)
	}
	if loc := rec.Header().Get("Location"); loc != "/api/v1/runs/"+report.RunID {
		t.Errorf("unexpected Location %q", loc)
	}

	rec = do(h, http.MethodGet, "/api/v1/runs/"+report.RunID, "")
	if rec.Code != http.StatusOK {
		t.Errorf("get: status %d", rec.Code)
	}

	rec = do(h, http.MethodGet, "/api/v1/runs", "")
	var page model.ListRunsResponse
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil || page.Total != 1 {
		t.Errorf("list: %v %+v", err, page)
	}

	rec = do(h, http.MethodGet, "/api/v1/summary", "")
	var summary service.Summary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil || summary.Conversations != 1 || summary.Turns != 3 {
		t.Errorf("summary: %v %+v", err, summary)
	}
}

func TestCreateRunDefaultsAndValidation(t *testing.T) {
	h := newRouter(t, llmtest.Dialogue, sessions{data: sessionData()}, nil, "")

	rec := do(h, http.MethodPost, "/api/v1/runs", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("empty body should use the default, got %d", rec.Code)
	}
	var report model.RunReport
	json.NewDecoder(rec.Body).Decode(&report)
	if report.RequestedTurns != 2 {
		t.Errorf("expected default of 2 turns, got %d", report.RequestedTurns)
	}

	for _, body := range []string{`{"num_turns": 0}`, `{"num_turns": 500}`, `not json`} {
		if rec := do(h, http.MethodPost, "/api/v1/runs", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}

	if rec := do(h, http.MethodGet, "/api/v1/runs/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/api/v1/runs/0190b2a4-7f3e-7c1a-9d2b-1e2f3a4b5c6d", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: expected 404, got %d", rec.Code)
	}
}

func TestCreateRunErrors(t *testing.T) {
	badTrack := func(req *llm.Request) (string, error) {
		if req.Purpose == llm.PurposeRecsysTurn {
			return "thought: x\ntrack_id: ghost\nmessage: y", nil
		}
		return llmtest.Dialogue(req)
	}
	down := func(*llm.Request) (string, error) { return "", errors.New("unavailable") }

	tests := []struct {
		name     string
		respond  llmtest.RespondFunc
		provider service.SessionProvider
		want     int
	}{
		{"no session", llmtest.Dialogue, sessions{err: dataset.ErrNoSessions}, http.StatusNotFound},
		{"contract violation", badTrack, sessions{data: sessionData()}, http.StatusBadGateway},
		{"model down", down, sessions{data: sessionData()}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(t, tt.respond, tt.provider, nil, "")
			if rec := do(h, http.MethodPost, "/api/v1/runs", `{"num_turns": 2}`); rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body)
			}
		})
	}
}

func TestEvents(t *testing.T) {
	h := newRouter(t, llmtest.Dialogue, sessions{data: sessionData()}, nil, "")
	if rec := do(h, http.MethodGet, "/api/v1/events", ""); rec.Code != http.StatusNotFound {
		t.Errorf("disabled events: expected 404, got %d", rec.Code)
	}

	ev := &events{}
	h = newRouter(t, llmtest.Dialogue, sessions{data: sessionData()}, ev, "")
	rec := do(h, http.MethodGet, "/api/v1/events?after=41&limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("events: status %d", rec.Code)
	}
	var resp model.ListRunEventsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.after != 41 || ev.limit != 5 || resp.LastSequence != 42 || len(resp.Events) != 1 {
		t.Errorf("unexpected paging: after=%d limit=%d resp=%+v", ev.after, ev.limit, resp)
	}
	if rec := do(h, http.MethodGet, "/api/v1/events?after=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad after: expected 400, got %d", rec.Code)
	}
}

func TestRouterAuth(t *testing.T) {
	const secret = "s3cret"
	h := newRouter(t, llmtest.Dialogue, sessions{data: sessionData()}, nil, secret)

	if rec := do(h, http.MethodGet, "/api/v1/runs", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health must not require auth, got %d", rec.Code)
	}

	token := func(scopes ...string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "bob", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
			TenantID:         "t1",
			Scopes:           scopes,
		}).SignedString([]byte(secret))
		if err != nil {
			t.Fatal(err)
		}
		return "Bearer " + s
	}

	readOnly := token(middleware.ScopeRunsRead)
	if rec := do(h, http.MethodGet, "/api/v1/runs", "", "Authorization", readOnly); rec.Code != http.StatusOK {
		t.Errorf("read scope: expected 200, got %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/api/v1/runs", `{"num_turns":1}`, "Authorization", readOnly); rec.Code != http.StatusForbidden {
		t.Errorf("read scope cannot create runs, got %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/api/v1/runs", `{"num_turns":1}`, "Authorization", token(middleware.ScopeRunsWrite)); rec.Code != http.StatusCreated {
		t.Errorf("write scope: expected 201, got %d", rec.Code)
	}
}
