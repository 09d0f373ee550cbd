package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/convsynth/internal/model"
	"github.com/capitalize-ai/convsynth/internal/store"
	"github.com/capitalize-ai/convsynth/pkg/logger"
	"github.com/capitalize-ai/convsynth/pkg/metrics"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// SessionProvider supplies the input of a run.
type SessionProvider interface {
	FirstSession(ctx context.Context) (*model.SessionData, error)
}

// Publisher announces saved runs.
type Publisher interface {
	PublishRunCompleted(ctx context.Context, event *model.RunEvent) (uint64, error)
}

// Runner loads a session, generates a dialogue and saves it. It keeps the
// manifests of the runs it made in memory.
type Runner struct {
	orchestrator *Orchestrator
	sessions     SessionProvider
	store        *store.Store
	publisher    Publisher
	logger       *logger.Logger

	// One generation at a time; waiting callers give up with their context.
	slot chan struct{}

	mu    sync.RWMutex
	runs  map[string]*model.RunReport
	order []string
}

// NewRunner creates a runner. publisher may be nil.
func NewRunner(orchestrator *Orchestrator, sessions SessionProvider, st *store.Store, publisher Publisher, log *logger.Logger) *Runner {
	return &Runner{
		orchestrator: orchestrator,
		sessions:     sessions,
		store:        st,
		publisher:    publisher,
		logger:       logger.OrGlobal(log).Named("runner"),
		slot:         make(chan struct{}, 1),
		runs:         make(map[string]*model.RunReport),
	}
}

// Store returns the output store.
func (r *Runner) Store() *store.Store {
	return r.store
}

// Run generates and saves one conversation of at most numTurns turns.
func (r *Runner) Run(ctx context.Context, numTurns int) (*model.RunReport, error) {
	select {
	case r.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for run slot: %w", ctx.Err())
	}
	defer func() { <-r.slot }()

	data, err := r.sessions.FirstSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	r.logger.Info("session loaded",
		zap.String("session_id", data.SessionID),
		zap.String("user_id", data.User.UserID),
		zap.Int("liked", len(data.Liked)),
		zap.Int("pool", len(data.Pool)),
	)

	res, err := r.orchestrator.Generate(ctx, data, numTurns)
	if err != nil {
		return nil, err
	}

	dir := r.store.RunDir(r.orchestrator.ModelName(), data.Source, data.User.UserID, data.SessionID, res.Report.RunID)
	res.Report.OutputDir = dir
	if err := r.store.Save(dir, &res.Outputs, &res.Report, res.Interactions); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}
	r.logger.Info("run saved", zap.String("run_id", res.Report.RunID), zap.String("dir", dir))

	r.publish(ctx, &res.Report)

	report := res.Report
	r.mu.Lock()
	r.runs[report.RunID] = &report
	r.order = append(r.order, report.RunID)
	r.mu.Unlock()

	return &report, nil
}

func (r *Runner) publish(ctx context.Context, report *model.RunReport) {
	if r.publisher == nil {
		return
	}
	seq, err := r.publisher.PublishRunCompleted(ctx, report.Event())
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues("failed").Inc()
		r.logger.Warn("failed to publish run event", zap.String("run_id", report.RunID), zap.Error(err))
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues("published").Inc()
	r.logger.Debug("run event published", zap.String("run_id", report.RunID), zap.Uint64("sequence", seq))
}

// Get returns the manifest of a run made by this runner.
func (r *Runner) Get(ctx context.Context, runID string) (*model.RunReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	cp := *report
	return &cp, nil
}

// List returns a page of manifests, newest first.
func (r *Runner) List(ctx context.Context, limit, offset int) *model.ListRunsResponse {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.order)
	start := min(max(offset, 0), total)
	end := min(start+max(limit, 0), total)

	runs := make([]model.RunReport, 0, end-start)
	for i := start; i < end; i++ {
		runs = append(runs, *r.runs[r.order[total-1-i]])
	}
	return &model.ListRunsResponse{
		Runs:    runs,
		Total:   total,
		HasMore: end < total,
	}
}
