package model

import "time"

// RunStatus is the lifecycle state of an ingestion run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunSummary is the persisted view of one ingestion run.
type RunSummary struct {
	ID          string        `json:"id"`
	Status      RunStatus     `json:"status"`
	Processed   int           `json:"processed"`
	Quarantined int           `json:"quarantined"`
	Rows        int           `json:"rows"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Files       []FileOutcome `json:"files,omitempty"`
}
