package model

import "time"

// FileStatus is the terminal location of an ingested file.
type FileStatus string

const (
	FileProcessed   FileStatus = "processed"
	FileQuarantined FileStatus = "quarantined"
)

// FileOutcome is the per-file result of one ingestion run.
type FileOutcome struct {
	File        string        `json:"file"`
	Status      FileStatus    `json:"status"`
	Destination string        `json:"destination"`
	Rows        int           `json:"rows"`
	Attempts    int           `json:"attempts"`
	Error       string        `json:"error,omitempty"`
	Validation  string        `json:"validation,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// ExportResult represents the result of an export operation
type ExportResult struct {
	Type        string    `json:"type"` // "csv", "database"
	Path        string    `json:"path"` // file path or table name
	RecordCount int       `json:"record_count"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// IngestReport summarizes one BatchIngestor run.
type IngestReport struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Files      []FileOutcome  `json:"files"`
	Rows       int            `json:"rows"`
	NoOp       bool           `json:"no_op"`
	Exports    []ExportResult `json:"exports,omitempty"`
}

// Processed returns the outcomes that ended in the processed directory.
func (r *IngestReport) Processed() []FileOutcome {
	return r.filter(FileProcessed)
}

// Quarantined returns the outcomes that ended in the error directory.
func (r *IngestReport) Quarantined() []FileOutcome {
	return r.filter(FileQuarantined)
}

func (r *IngestReport) filter(status FileStatus) []FileOutcome {
	var out []FileOutcome
	for _, f := range r.Files {
		if f.Status == status {
			out = append(out, f)
		}
	}
	return out
}
