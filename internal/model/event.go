package model

import (
	"time"
)

// ArtifactWarning records an artifact that could not be uploaded.
type ArtifactWarning struct {
	TrackID  string `json:"track_id"`
	Modality string `json:"modality"`
	Path     string `json:"path"`
	Reason   string `json:"reason"`
}

// Interaction is one model call made during a run.
type Interaction struct {
	Purpose   string     `json:"purpose"`
	Turn      int        `json:"turn"`
	Prompt    string     `json:"prompt"`
	Response  string     `json:"response"`
	Usage     TokenUsage `json:"token_usage"`
	LatencyMs int64      `json:"latency_ms"`
}

// RunReport is the manifest written next to a run's outputs.
type RunReport struct {
	RunID          string                `json:"run_id"`
	SessionID      string                `json:"session_id"`
	UserID         string                `json:"user_id"`
	Model          string                `json:"model"`
	Backend        string                `json:"backend"`
	RequestedTurns int                   `json:"requested_turns"`
	Turns          int                   `json:"turns"`
	PoolExhausted  bool                  `json:"pool_exhausted"`
	OutputDir      string                `json:"output_dir"`
	Warnings       []ArtifactWarning     `json:"warnings"`
	Usage          map[string]TokenUsage `json:"token_usage"`
	StartedAt      time.Time             `json:"started_at"`
	CompletedAt    time.Time             `json:"completed_at"`
}

// TotalUsage sums the usage of every purpose.
func (r RunReport) TotalUsage() TokenUsage {
	var total TokenUsage
	for _, u := range r.Usage {
		total = total.Add(u)
	}
	return total
}

// RunEvent is published when a run has been saved.
type RunEvent struct {
	RunID       string    `json:"run_id"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	Model       string    `json:"model"`
	Turns       int       `json:"turns"`
	OutputDir   string    `json:"output_dir"`
	Warnings    int       `json:"warnings"`
	CompletedAt time.Time `json:"completed_at"`
}

// Event builds the completion event for the report.
func (r RunReport) Event() *RunEvent {
	return &RunEvent{
		RunID:       r.RunID,
		SessionID:   r.SessionID,
		UserID:      r.UserID,
		Model:       r.Model,
		Turns:       r.Turns,
		OutputDir:   r.OutputDir,
		Warnings:    len(r.Warnings),
		CompletedAt: r.CompletedAt,
	}
}

// CreateRunRequest is the body of a run request.
type CreateRunRequest struct {
	NumTurns int `json:"num_turns"`
}

// ListRunsResponse is one page of run manifests, newest first.
type ListRunsResponse struct {
	Runs    []RunReport `json:"runs"`
	Total   int         `json:"total"`
	HasMore bool        `json:"has_more"`
}

// ListRunEventsResponse is one page of completed-run events.
type ListRunEventsResponse struct {
	Events       []RunEvent `json:"events"`
	LastSequence uint64     `json:"last_sequence"`
	HasMore      bool       `json:"has_more"`
}
