package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/convsynth/internal/dataset"
	"github.com/capitalize-ai/convsynth/internal/llm"
	"github.com/capitalize-ai/convsynth/internal/middleware"
	"github.com/capitalize-ai/convsynth/internal/model"
	"github.com/capitalize-ai/convsynth/internal/service"
	"github.com/capitalize-ai/convsynth/pkg/logger"
)

// EventReader pages through completed-run events.
type EventReader interface {
	GetRunEvents(ctx context.Context, afterSequence uint64, limit int) ([]model.RunEvent, uint64, bool, error)
}

// RunHandler handles run endpoints.
type RunHandler struct {
	runner       *service.Runner
	events       EventReader
	defaultTurns int
	logger       *logger.Logger
}

// NewRunHandler creates a run handler. events may be nil.
func NewRunHandler(runner *service.Runner, events EventReader, defaultTurns int, log *logger.Logger) *RunHandler {
	return &RunHandler{
		runner:       runner,
		events:       events,
		defaultTurns: defaultTurns,
		logger:       logger.OrGlobal(log).Named("handler"),
	}
}

// Create handles POST /api/v1/runs. An empty body uses the default turn count.
func (h *RunHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := model.CreateRunRequest{NumTurns: h.defaultTurns}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateNumTurns(req.NumTurns); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.runner.Run(ctx, req.NumTurns)
	if err != nil {
		status, msg := runErrorStatus(err)
		h.logger.WithRequest(middleware.GetCorrelationID(ctx), middleware.GetTenantID(ctx), middleware.GetUserID(ctx)).
			Error("run failed", zap.Int("num_turns", req.NumTurns), zap.Error(err))
		writeError(w, status, msg)
		return
	}

	w.Header().Set("Location", "/api/v1/runs/"+report.RunID)
	writeJSON(w, http.StatusCreated, report)
}

func runErrorStatus(err error) (int, string) {
	var callErr *llm.CallError
	switch {
	case errors.Is(err, service.ErrInvalidTurns):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, dataset.ErrNoSessions):
		return http.StatusNotFound, "no session available"
	case errors.Is(err, model.ErrContractViolation):
		return http.StatusBadGateway, "model response violated the dialogue contract"
	case errors.As(err, &callErr):
		return http.StatusBadGateway, "model call failed"
	}
	return http.StatusInternalServerError, "failed to generate run"
}

// List handles GET /api/v1/runs
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	writeJSON(w, http.StatusOK, h.runner.List(r.Context(), limit, offset))
}

// Get handles GET /api/v1/runs/{id}
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if err := middleware.ValidateRunID(runID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.runner.Get(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Summary handles GET /api/v1/summary
func (h *RunHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := service.Summarize(h.runner.Store())
	if err != nil {
		h.logger.Error("failed to summarize outputs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to summarize outputs")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Events handles GET /api/v1/events
func (h *RunHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, http.StatusNotFound, "run events are disabled")
		return
	}

	limit, _ := pagination(r)
	var after uint64
	if a := r.URL.Query().Get("after"); a != "" {
		parsed, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after sequence")
			return
		}
		after = parsed
	}

	events, last, more, err := h.events.GetRunEvents(r.Context(), after, limit)
	if err != nil {
		h.logger.Error("failed to read run events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read run events")
		return
	}
	if events == nil {
		events = []model.RunEvent{}
	}
	writeJSON(w, http.StatusOK, model.ListRunEventsResponse{
		Events:       events,
		LastSequence: last,
		HasMore:      more,
	})
}
