// Package service runs dialogue generation end to end.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/convsynth/internal/agent"
	"github.com/capitalize-ai/convsynth/internal/artifact"
	"github.com/capitalize-ai/convsynth/internal/llm"
	"github.com/capitalize-ai/convsynth/internal/model"
	"github.com/capitalize-ai/convsynth/internal/persona"
	"github.com/capitalize-ai/convsynth/internal/prompt"
	"github.com/capitalize-ai/convsynth/internal/session"
	"github.com/capitalize-ai/convsynth/pkg/logger"
	"github.com/capitalize-ai/convsynth/pkg/metrics"
	"github.com/capitalize-ai/convsynth/pkg/tracing"
)

// State is a step of a generation run.
type State string

const (
	StateUploadingArtifacts     State = "uploading_artifacts"
	StateBuildingPersonaAndGoal State = "building_persona_and_goal"
	StateInitializingSessions   State = "initializing_sessions"
	StateListenerOpening        State = "listener_opening"
	StateRecsysTurn             State = "recsys_turn"
	StateListenerReaction       State = "listener_reaction"
	StateDone                   State = "done"
)

// ErrInvalidTurns is returned for a non-positive turn count.
var ErrInvalidTurns = errors.New("number of turns must be positive")

// Options configure an Orchestrator.
type Options struct {
	Model         string
	MaxTokens     int
	AudioBasePath string
	ImageBasePath string
	// Defaults fill demographics the user does not carry.
	Defaults      model.Demographics
	GoalsToSample int
	Seed          int64
	Catalog       *persona.Catalog

	APIDelay     time.Duration
	ModelTimeout time.Duration
	MaxRetries   int

	Tracer trace.Tracer
	Logger *logger.Logger
}

// Result is the product of one run.
type Result struct {
	Outputs      model.Outputs
	Report       model.RunReport
	Interactions []model.Interaction
}

// Orchestrator drives one dialogue from artifact upload to the last turn.
// Runs are independent; each builds its own uploaders and sessions.
type Orchestrator struct {
	backend llm.Backend
	opts    Options
	logger  *logger.Logger
	tracer  trace.Tracer
}

// New creates an orchestrator over a raw backend. Pacing, timeouts, retries
// and instrumentation are layered on per run.
func New(backend llm.Backend, opts Options) *Orchestrator {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.Tracer()
	}
	return &Orchestrator{
		backend: backend,
		opts:    opts,
		logger:  logger.OrGlobal(opts.Logger).Named("orchestrator"),
		tracer:  tracer,
	}
}

// ModelName returns the model the orchestrator generates with.
func (o *Orchestrator) ModelName() string {
	return o.opts.Model
}

// BackendName returns the provider name.
func (o *Orchestrator) BackendName() string {
	return o.backend.Name()
}

type run struct {
	state  State
	log    *logger.Logger
	span   trace.Span
	start  time.Time
	report model.RunReport
}

func (r *run) transition(s State) {
	r.state = s
	metrics.RecordTransition(string(s))
	r.span.AddEvent("state", trace.WithAttributes(attribute.String("state", string(s))))
	r.log.Info("state transition", zap.String("state", string(s)))
}

// Generate runs one conversation over data for at most numTurns turns. It
// stops early when the pool is exhausted. Model-call failures and contract
// violations abort the run; artifact problems only add warnings.
func (o *Orchestrator) Generate(ctx context.Context, data *model.SessionData, numTurns int) (*Result, error) {
	if numTurns <= 0 {
		return nil, ErrInvalidTurns
	}

	runID := uuid.Must(uuid.NewV7()).String()
	log := o.logger.WithRun(runID, data.SessionID, data.User.UserID)

	ctx, span := o.tracer.Start(ctx, "orchestrator.generate", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("session.id", data.SessionID),
		attribute.Int("turns.requested", numTurns),
	))
	defer span.End()

	metrics.RunsActive.Inc()
	defer metrics.RunsActive.Dec()

	r := &run{
		log:   log,
		span:  span,
		start: time.Now().UTC(),
		report: model.RunReport{
			RunID:          runID,
			SessionID:      data.SessionID,
			UserID:         data.User.UserID,
			Model:          o.opts.Model,
			Backend:        o.backend.Name(),
			RequestedTurns: numTurns,
		},
	}
	r.report.StartedAt = r.start

	recorder := llm.NewRecorder(llm.Instrument(
		llm.WithRetry(o.backend, o.opts.MaxRetries, log),
		llm.InstrumentOptions{
			Delay:   o.opts.APIDelay,
			Timeout: o.opts.ModelTimeout,
			Tracer:  o.tracer,
			Logger:  log,
		},
	))

	res, err := o.generate(ctx, r, recorder, data, numTurns)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		log.Error("generation failed", zap.String("state", string(r.state)), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", r.state, err)
	}

	metrics.RunsTotal.WithLabelValues("succeeded").Inc()
	log.Info("generation completed",
		zap.Int("turns", res.Report.Turns),
		zap.Bool("pool_exhausted", res.Report.PoolExhausted),
		zap.Int("warnings", len(res.Report.Warnings)),
		zap.Int("tokens", res.Report.TotalUsage().Total()),
		zap.Duration("duration", res.Report.CompletedAt.Sub(res.Report.StartedAt)),
	)
	return res, nil
}

func (o *Orchestrator) generate(ctx context.Context, r *run, backend *llm.Recorder, data *model.SessionData, numTurns int) (*Result, error) {
	// Artifacts
	r.transition(StateUploadingArtifacts)
	tracks := data.Liked.Concat(data.Pool)
	audio := artifact.NewUploader(backend, llm.ModalityAudio, o.opts.AudioBasePath, r.log)
	image := artifact.NewUploader(backend, llm.ModalityImage, o.opts.ImageBasePath, r.log)
	audioHandles, err := audio.BatchUpload(ctx, tracks)
	if err != nil {
		return nil, err
	}
	imageHandles, err := image.BatchUpload(ctx, tracks)
	if err != nil {
		return nil, err
	}
	artifacts := prompt.NewArtifacts(audioHandles, imageHandles)
	r.report.Warnings = append(audio.Warnings(), image.Warnings()...)

	// Persona and goal
	r.transition(StateBuildingPersonaAndGoal)
	personaOpts := persona.Options{Model: o.opts.Model, MaxTokens: o.opts.MaxTokens, Logger: r.log}
	profiling, err := persona.NewProfileGenerator(backend, o.opts.Defaults, personaOpts).
		GenerateFromTracks(ctx, data.User, data.Liked, artifacts)
	if err != nil {
		return nil, err
	}
	goal, err := persona.NewGoalGenerator(backend, o.opts.Catalog, uint64(o.opts.Seed), o.opts.GoalsToSample, personaOpts).
		GenerateFromPool(ctx, data.Pool, artifacts)
	if err != nil {
		return nil, err
	}
	profile := profiling.Profile
	language := profile.PreferredLanguage

	// Sessions
	r.transition(StateInitializingSessions)
	initializer := session.NewInitializer(backend, session.Options{Model: o.opts.Model, MaxTokens: o.opts.MaxTokens, Logger: r.log})
	recsysSession, err := initializer.InitializeRecsys(ctx, profile, data.Pool, artifacts)
	if err != nil {
		return nil, err
	}
	listenerSession, err := initializer.InitializeListener(ctx, profile, *goal, data.Liked, artifacts)
	if err != nil {
		return nil, err
	}
	listener := agent.NewListener(listenerSession, r.log)
	recommender := agent.NewRecommender(recsysSession, r.log)

	// Dialogue
	r.transition(StateListenerOpening)
	listenerTurn, err := listener.InitialRequest(ctx, *goal, language)
	if err != nil {
		return nil, err
	}

	remaining := append(model.Tracks{}, data.Pool...)
	chat := model.ConversationTurns{}
	for turn := 1; turn <= numTurns && len(remaining) > 0; turn++ {
		r.transition(StateRecsysTurn)
		recsysTurn, err := recommender.Recommend(ctx, turn, chat, remaining, listenerTurn.Message, language)
		if err != nil {
			return nil, err
		}
		chat = append(chat, model.ConversationTurn{Turn: turn, Listener: listenerTurn, Recsys: recsysTurn})
		remaining = remaining.Without(recsysTurn.TrackID)
		metrics.ConversationTurnsTotal.Inc()

		if turn == numTurns || len(remaining) == 0 {
			break
		}

		r.transition(StateListenerReaction)
		listenerTurn, err = listener.React(ctx, turn+1, recsysTurn.Track, recsysTurn.Message, artifacts, language)
		if err != nil {
			return nil, err
		}
	}
	if err := chat.Validate(); err != nil {
		return nil, err
	}

	r.transition(StateDone)
	r.report.Turns = len(chat)
	r.report.PoolExhausted = len(remaining) == 0
	r.report.Usage = backend.UsageByPurpose()
	r.report.CompletedAt = time.Now().UTC()

	return &Result{
		Outputs: model.Outputs{
			Profiling:        *profiling,
			ConversationGoal: *goal,
			Chat:             chat,
		},
		Report:       r.report,
		Interactions: backend.Interactions(),
	}, nil
}
