// Package runs tracks the lifecycle of asynchronous summarization runs.
// The journal is the only server-side state: every run accepted on the
// async path gets a row, and callers poll it by run identifier.
package runs

import (
	"context"
	"errors"
	"time"
)

// Run statuses. A run moves pending -> running -> succeeded|failed and
// never back.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrNotFound is returned when no run exists for the given identifier.
var ErrNotFound = errors.New("run not found")

// ErrDuplicate is returned when a run with the same identifier already exists.
var ErrDuplicate = errors.New("run already exists")

// Run is one journaled summarization run.
type Run struct {
	ID        string `json:"id"`
	SubjectID string `json:"subjectId"`
	UserID    string `json:"userId,omitempty"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`

	MonthlyCount     int `json:"monthlyCount"`
	QuarterlyCount   int `json:"quarterlyCount"`
	GenerationErrors int `json:"generationErrors"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists run state. MarkRunning and MarkFinished match the
// pipeline's journal contract so a Store can be handed to the
// orchestrator directly.
type Store interface {
	// CreateRun journals a newly accepted run in pending state.
	CreateRun(ctx context.Context, run *Run) error

	// MarkRunning flips a pending run to running.
	MarkRunning(ctx context.Context, runID string) error

	// MarkFinished records the terminal state and result counts.
	MarkFinished(ctx context.Context, runID string, succeeded bool, message string, monthly, quarterly, generationErrors int) error

	// GetRun fetches one run by identifier.
	GetRun(ctx context.Context, runID string) (*Run, error)
}
