package pipeline

import (
	"context"
	"log/slog"

	"sales-pipeline/internal/model"
)

// RunStore persists the lifecycle of ingestion runs.
type RunStore interface {
	CreateRun(ctx context.Context, runID string) error
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, report *model.IngestReport) error
	FailRun(ctx context.Context, runID string, runErr error) error
}

// RunTracker records run state transitions. Tracking failures are logged and
// never fail the run itself. A tracker with a nil store only logs.
type RunTracker struct {
	store  RunStore
	logger *slog.Logger
}

// NewRunTracker creates a tracker over store, which may be nil.
func NewRunTracker(store RunStore, logger *slog.Logger) *RunTracker {
	return &RunTracker{
		store:  store,
		logger: logger.With(slog.String("component", "run_tracker")),
	}
}

// Start registers a run and moves it to running.
func (t *RunTracker) Start(ctx context.Context, runID string) {
	t.logger.Info("ingestion run started", slog.String("run_id", runID))
	if t.store == nil {
		return
	}
	if err := t.store.CreateRun(ctx, runID); err != nil {
		t.warn("create", runID, err)
		return
	}
	if err := t.store.UpdateRunStatus(ctx, runID, model.RunRunning); err != nil {
		t.warn("update", runID, err)
	}
}

// Complete stores the final report of a run.
func (t *RunTracker) Complete(ctx context.Context, report *model.IngestReport) {
	t.logger.Info("ingestion run completed",
		slog.String("run_id", report.RunID),
		slog.Int("processed", len(report.Processed())),
		slog.Int("quarantined", len(report.Quarantined())),
		slog.Int("rows", report.Rows),
		slog.Bool("no_op", report.NoOp),
		slog.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))
	if t.store == nil {
		return
	}
	if err := t.store.CompleteRun(ctx, report); err != nil {
		t.warn("complete", report.RunID, err)
	}
}

// Fail marks a run failed.
func (t *RunTracker) Fail(ctx context.Context, runID string, runErr error) {
	t.logger.Error("ingestion run failed", slog.String("run_id", runID), slog.String("error", runErr.Error()))
	if t.store == nil {
		return
	}
	// The run context may already be cancelled; the failure still has to land.
	if err := t.store.FailRun(context.WithoutCancel(ctx), runID, runErr); err != nil {
		t.warn("fail", runID, err)
	}
}

func (t *RunTracker) warn(op, runID string, err error) {
	t.logger.Warn("failed to track run",
		slog.String("op", op),
		slog.String("run_id", runID),
		slog.String("error", err.Error()))
}
