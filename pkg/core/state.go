package core

import (
	"context"
	"time"
)

// RunStore records transform runs.
type RunStore interface {
	Close() error

	CreateRun(ctx context.Context, run *Run) error
	CompleteRun(ctx context.Context, id string, result RunResult) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	DeleteOldRuns(ctx context.Context, keep int) (int64, error)
}

// RunStatus represents the status of a transform run.
type RunStatus string

// RunStatus values.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded transform of an input table.
type Run struct {
	ID           string     `json:"id"`
	Mapping      string     `json:"mapping"`
	InputPath    string     `json:"input_path"`
	OutputPath   string     `json:"output_path,omitempty"`
	InputFormat  string     `json:"input_format,omitempty"`
	OutputFormat string     `json:"output_format,omitempty"`
	Status       RunStatus  `json:"status"`
	Rows         int        `json:"rows"`
	Columns      int        `json:"columns"`
	TypeErrors   int        `json:"type_errors"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunResult is the outcome recorded when a run finishes.
type RunResult struct {
	Status     RunStatus
	Rows       int
	Columns    int
	TypeErrors int
	Error      string
}
