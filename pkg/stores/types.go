package stores

import (
	"time"
)

// RunStatus represents the status of a render run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents one render of a graph against an environment.
type Run struct {
	ID          string     `json:"id"`
	Graph       string     `json:"graph"`
	Environment string     `json:"environment"`
	Runtime     string     `json:"runtime"`
	Status      RunStatus  `json:"status"`
	RecordCount int        `json:"record_count"`
	Error       *string    `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Artifact is one serialized output record as produced by a run.
type Artifact struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Name      string    `json:"name"`
	Format    string    `json:"format"`
	Plugins   string    `json:"plugins"` // JSON array of plugin names
	Data      string    `json:"data"`    // serialized payload
	CreatedAt time.Time `json:"created_at"`
}
