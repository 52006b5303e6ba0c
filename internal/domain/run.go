package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of an asynchronous run.
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// Run is a persisted download run submitted through the HTTP API.
type Run struct {
	ID        uuid.UUID  `json:"id"`
	Status    RunStatus  `json:"status"`
	Selection Selection  `json:"selection"`
	Options   RunOptions `json:"options"`
	Report    *RunReport `json:"report,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CreateRunRequest represents the request body for submitting a new run.
type CreateRunRequest struct {
	Selection Selection  `json:"selection" validate:"required"`
	Options   RunOptions `json:"options"`
}

// RunResponse is returned for GET /runs/{runID}.
type RunResponse struct {
	ID        uuid.UUID  `json:"run_id"`
	Status    RunStatus  `json:"status"`
	Report    *RunReport `json:"report,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewRunResponse projects a Run onto its API representation.
func NewRunResponse(r *Run) RunResponse {
	return RunResponse{
		ID:        r.ID,
		Status:    r.Status,
		Report:    r.Report,
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
