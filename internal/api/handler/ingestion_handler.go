package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"sales-pipeline/internal/model"
)

// IngestionRunner executes one ingestion run under a given id.
type IngestionRunner interface {
	RunWithID(ctx context.Context, runID string) (*model.IngestReport, error)
}

// RunReader reads persisted ingestion runs.
type RunReader interface {
	ListRuns(ctx context.Context) ([]model.RunSummary, error)
	GetRun(ctx context.Context, runID string) (*model.RunSummary, error)
}

// IngestionHandler starts ingestion runs in the background and reports on
// them. At most one run is active at a time since runs share the source
// directory.
type IngestionHandler struct {
	runner  IngestionRunner
	runs    RunReader
	timeout time.Duration
	logger  *slog.Logger

	baseCtx context.Context
	active  atomic.Bool
	wg      sync.WaitGroup
}

// NewIngestionHandler creates the handler. Background runs are cancelled
// with ctx. timeout bounds one run; zero means no bound.
func NewIngestionHandler(ctx context.Context, runner IngestionRunner, runs RunReader, timeout time.Duration, logger *slog.Logger) *IngestionHandler {
	return &IngestionHandler{
		runner:  runner,
		runs:    runs,
		timeout: timeout,
		baseCtx: ctx,
		logger:  logger.With(slog.String("component", "ingestion_handler")),
	}
}

func (h *IngestionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.CreateIngestion)
	r.Get("/", h.ListIngestions)
	r.Get("/{id}", h.GetIngestion)
	return r
}

// Wait blocks until the background run, if any, has finished.
func (h *IngestionHandler) Wait() { h.wg.Wait() }

// CreateIngestion starts an ingestion run
// @Summary Start an ingestion run
// @Description Ingest every file currently in the source directory in the background
// @Tags ingestions
// @Produce json
// @Success 202 {object} map[string]interface{} "Run accepted"
// @Failure 409 {object} APIError "A run is already active"
// @Router /ingestions [post]
func (h *IngestionHandler) CreateIngestion(w http.ResponseWriter, r *http.Request) {
	if !h.active.CompareAndSwap(false, true) {
		render.Render(w, r, newAPIError(http.StatusConflict, "RUN_ACTIVE", "an ingestion run is already active"))
		return
	}

	runID := uuid.NewString()
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.active.Store(false)

		ctx := h.baseCtx
		if h.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.timeout)
			defer cancel()
		}
		report, err := h.runner.RunWithID(ctx, runID)
		if err != nil {
			h.logger.Error("ingestion run failed", slog.String("run_id", runID), slog.String("error", err.Error()))
			return
		}
		h.logger.Info("ingestion run finished",
			slog.String("run_id", runID),
			slog.Int("processed", len(report.Processed())),
			slog.Int("quarantined", len(report.Quarantined())),
			slog.Int("rows", report.Rows),
			slog.Bool("no_op", report.NoOp))
	}()

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]any{
		"run_id":     runID,
		"status":     model.RunPending,
		"created_at": time.Now().UTC(),
	})
}

// ListIngestions lists ingestion runs
// @Summary List ingestion runs
// @Tags ingestions
// @Produce json
// @Success 200 {array} model.RunSummary
// @Router /ingestions [get]
func (h *IngestionHandler) ListIngestions(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.ListRuns(r.Context())
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	if runs == nil {
		runs = []model.RunSummary{}
	}
	render.JSON(w, r, runs)
}

// GetIngestion returns one run with its file outcomes
// @Summary Get an ingestion run
// @Tags ingestions
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.RunSummary
// @Failure 404 {object} APIError "Run not found"
// @Router /ingestions/{id} [get]
func (h *IngestionHandler) GetIngestion(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, run)
}
