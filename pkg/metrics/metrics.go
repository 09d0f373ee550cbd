// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMCallDuration tracks model call latency by purpose.
	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_call_duration_seconds",
			Help:    "Model call duration in seconds",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"backend", "purpose", "status"},
	)

	// LLMTokensTotal tracks tokens processed, by modality for input.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"backend", "direction"},
	)

	// LLMRetriesTotal counts retried model calls.
	LLMRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_retries_total",
			Help: "Model calls retried after a transient failure",
		},
		[]string{"backend", "purpose"},
	)

	// ArtifactUploadsTotal counts artifact uploads by outcome.
	ArtifactUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_uploads_total",
			Help: "Artifact uploads by modality and status",
		},
		[]string{"modality", "status"},
	)

	// OrchestratorTransitions counts state machine transitions.
	OrchestratorTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_state_transitions_total",
			Help: "Orchestrator state transitions",
		},
		[]string{"state"},
	)

	// ConversationTurnsTotal counts transcript entries produced.
	ConversationTurnsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversation_turns_total",
			Help: "Conversation turns produced",
		},
	)

	// GoalProgressTotal counts listener assessments by label.
	GoalProgressTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listener_goal_progress_total",
			Help: "Listener goal progress assessments",
		},
		[]string{"assessment"},
	)

	// ContractViolationsTotal counts rejected model responses.
	ContractViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contract_violations_total",
			Help: "Model responses rejected by the turn contract",
		},
		[]string{"purpose", "kind"},
	)

	// RunsTotal counts finished runs by status.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runs_total",
			Help: "Generation runs by status",
		},
		[]string{"status"},
	)

	// RunsActive tracks runs in progress.
	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "runs_active",
			Help: "Generation runs in progress",
		},
	)

	// EventsPublishedTotal counts run events sent to NATS.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "run_events_published_total",
			Help: "Run events published to JetStream",
		},
		[]string{"status"},
	)

	// JudgeScoresTotal counts judge scores per metric; score 0 is unparseable.
	JudgeScoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judge_scores_total",
			Help: "LLM judge scores by metric and score",
		},
		[]string{"metric", "score"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMCall records metrics for one model call.
func RecordLLMCall(backend, purpose, status string, duration float64, textIn, imageIn, audioIn, out int) {
	LLMCallDuration.WithLabelValues(backend, purpose, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(backend, "in_text").Add(float64(textIn))
	LLMTokensTotal.WithLabelValues(backend, "in_image").Add(float64(imageIn))
	LLMTokensTotal.WithLabelValues(backend, "in_audio").Add(float64(audioIn))
	LLMTokensTotal.WithLabelValues(backend, "out").Add(float64(out))
}

// RecordUpload records the outcome of one artifact upload.
func RecordUpload(modality, status string) {
	ArtifactUploadsTotal.WithLabelValues(modality, status).Inc()
}

// RecordTransition records an orchestrator state change.
func RecordTransition(state string) {
	OrchestratorTransitions.WithLabelValues(state).Inc()
}

// RecordContractViolation records a rejected model response.
func RecordContractViolation(purpose, kind string) {
	ContractViolationsTotal.WithLabelValues(purpose, kind).Inc()
}

// RecordGoalProgress records one listener assessment.
func RecordGoalProgress(assessment string) {
	GoalProgressTotal.WithLabelValues(assessment).Inc()
}

// RecordJudgeScore records one judge score.
func RecordJudgeScore(metric string, score int) {
	JudgeScoresTotal.WithLabelValues(metric, strconv.Itoa(score)).Inc()
}
