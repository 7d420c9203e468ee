package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sales-pipeline/internal/config"
	"sales-pipeline/internal/model"
	"sales-pipeline/pkg/utils"
)

// Ingestion stages reported in IngestionFailure.Stage.
const (
	StageLoad      = "load"
	StageTransform = "transform"
	StageRelocate  = "relocate"
)

// Transformer turns one loaded batch into its validated output.
type Transformer interface {
	Transform(ctx context.Context, in *model.Batch) (PipelineOutcome, error)
}

// Persister stores the consolidated batch of a run.
type Persister interface {
	Export(ctx context.Context, b *model.Batch) ([]model.ExportResult, error)
}

// BatchIngestor moves every discovered source file through the transform
// pipeline and into exactly one of the processed or error directories.
type BatchIngestor struct {
	cfg       config.IngestConfig
	pipeline  Transformer
	persister Persister
	tracker   *RunTracker
	metrics   *Metrics
	outputs   *utils.OutputManager
	retrier   *Retrier
	loaderFor func(path string) (Loader, error)
	logger    *slog.Logger
}

// IngestorOption customizes a BatchIngestor.
type IngestorOption func(*BatchIngestor)

// WithLoaderFactory overrides the extension-based loader selection.
func WithLoaderFactory(f func(path string) (Loader, error)) IngestorOption {
	return func(bi *BatchIngestor) { bi.loaderFor = f }
}

// WithRetrier overrides the retrier built from the ingest retry policy.
func WithRetrier(r *Retrier) IngestorOption {
	return func(bi *BatchIngestor) { bi.retrier = r }
}

// NewBatchIngestor creates an ingestor. persister, tracker and metrics may be nil.
func NewBatchIngestor(cfg config.IngestConfig, pipeline Transformer, persister Persister, tracker *RunTracker, metrics *Metrics, logger *slog.Logger, opts ...IngestorOption) *BatchIngestor {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	bi := &BatchIngestor{
		cfg:       cfg,
		pipeline:  pipeline,
		persister: persister,
		tracker:   tracker,
		metrics:   metrics,
		outputs:   utils.NewOutputManager(cfg.ProcessedDir, cfg.ErrorDir),
		retrier:   NewRetrier(cfg.Retry, logger),
		loaderFor: LoaderFor,
		logger:    logger.With(slog.String("component", "batch_ingestor")),
	}
	if bi.tracker == nil {
		bi.tracker = NewRunTracker(nil, logger)
	}
	for _, opt := range opts {
		opt(bi)
	}
	return bi
}

// fileResult is one slot of the accumulator; each file writes only its own.
type fileResult struct {
	outcome model.FileOutcome
	batch   *model.Batch
}

// Run ingests every file currently in the source directory. Per-file
// failures end in quarantine and never fail the run. A run with no
// successful file is a no-op. The returned error is set only when the scan
// itself, a relocation or the final persist failed; the report is still
// returned with whatever outcomes were recorded.
func (bi *BatchIngestor) Run(ctx context.Context) (*model.IngestReport, error) {
	return bi.RunWithID(ctx, uuid.NewString())
}

// RunWithID is Run with a caller-chosen run id, e.g. one already returned
// to an API client.
func (bi *BatchIngestor) RunWithID(ctx context.Context, runID string) (*model.IngestReport, error) {
	report := &model.IngestReport{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
	}
	bi.tracker.Start(ctx, report.RunID)

	fail := func(err error) (*model.IngestReport, error) {
		report.FinishedAt = time.Now().UTC()
		bi.tracker.Fail(ctx, report.RunID, err)
		bi.metrics.observeRun("failed")
		return report, err
	}

	if err := bi.outputs.EnsureOutputDirsExist(); err != nil {
		return fail(err)
	}
	files, err := bi.Discover()
	if err != nil {
		return fail(err)
	}
	bi.logger.Info("discovered source files",
		slog.String("run_id", report.RunID),
		slog.String("source_dir", bi.cfg.SourceDir),
		slog.Int("files", len(files)),
		slog.Int("workers", bi.cfg.Workers))

	results := make([]*fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bi.cfg.Workers)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := bi.processFile(gctx, path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	werr := g.Wait()

	var batches []*model.Batch
	for _, res := range results {
		if res == nil {
			continue
		}
		report.Files = append(report.Files, res.outcome)
		if res.batch != nil {
			batches = append(batches, res.batch)
		}
	}
	if werr != nil {
		return fail(werr)
	}

	if len(batches) == 0 {
		report.NoOp = true
		report.FinishedAt = time.Now().UTC()
		bi.logger.Info("no file ingested successfully, nothing to persist", slog.String("run_id", report.RunID))
		bi.tracker.Complete(ctx, report)
		bi.metrics.observeRun("noop")
		return report, nil
	}

	consolidated := model.Concat(bi.cfg.SourceDir, batches...)
	report.Rows = consolidated.Len()
	if bi.persister != nil {
		exports, err := bi.persister.Export(ctx, consolidated)
		report.Exports = exports
		if err != nil {
			return fail(fmt.Errorf("failed to persist consolidated batch: %w", err))
		}
	}

	report.FinishedAt = time.Now().UTC()
	bi.tracker.Complete(ctx, report)
	bi.metrics.observeRun("completed")
	return report, nil
}

// Discover lists regular files in the source directory matching any
// configured pattern, sorted by name.
func (bi *BatchIngestor) Discover() ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range bi.cfg.Patterns {
		matches, err := filepath.Glob(filepath.Join(bi.cfg.SourceDir, pattern))
		if err != nil {
			return nil, &model.ConfigurationError{Key: "ingest.patterns", Reason: fmt.Sprintf("bad pattern %q: %v", pattern, err)}
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// processFile loads, transforms and relocates one file. It returns an error
// only when the run context ended before the file was relocated or when the
// file could not be moved anywhere.
func (bi *BatchIngestor) processFile(ctx context.Context, path string) (*fileResult, error) {
	start := time.Now()
	log := bi.logger.With(slog.String("file", path))

	fctx := ctx
	if bi.cfg.FileTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, bi.cfg.FileTimeout)
		defer cancel()
	}

	outcome, batch, attempts, ferr := bi.ingest(fctx, path)
	if ctx.Err() != nil {
		// Run cancelled, not a file timeout: leave the file in place.
		return nil, ctx.Err()
	}

	res := &fileResult{outcome: model.FileOutcome{File: filepath.Base(path), Attempts: attempts}}
	if ferr == nil {
		dst, err := bi.outputs.Processed(path)
		if err == nil {
			res.batch = outcome.Batch
			res.outcome.Status = model.FileProcessed
			res.outcome.Destination = dst
			res.outcome.Rows = batch
			if outcome.Validation != nil {
				res.outcome.Validation = outcome.Validation.Error()
			}
		} else {
			ferr = &model.IngestionFailure{File: path, Stage: StageRelocate, Err: err}
		}
	}
	if ferr != nil {
		dst, err := bi.outputs.Quarantine(path)
		if err != nil {
			return nil, fmt.Errorf("failed to quarantine %s: %w", path, errors.Join(ferr, err))
		}
		res.outcome.Status = model.FileQuarantined
		res.outcome.Destination = dst
		res.outcome.Error = ferr.Error()
		log.Error("file quarantined", slog.String("destination", dst), slog.String("error", ferr.Error()))
	} else {
		log.Info("file processed", slog.String("destination", res.outcome.Destination), slog.Int("rows", res.outcome.Rows))
	}

	res.outcome.Duration = time.Since(start)
	bi.metrics.observeFile(res.outcome)
	return res, nil
}

// ingest runs the load and transform stages of one file and returns the
// pipeline outcome, its row count and the number of load attempts.
func (bi *BatchIngestor) ingest(ctx context.Context, path string) (PipelineOutcome, int, int, error) {
	loader, err := bi.loaderFor(path)
	if err != nil {
		return PipelineOutcome{}, 0, 0, &model.IngestionFailure{File: path, Stage: StageLoad, Err: err}
	}

	var raw *model.Batch
	attempts, err := bi.retrier.Do(ctx, path, func(ctx context.Context) error {
		return guard(StageLoad, func() error {
			b, err := loader.Load(ctx, path)
			if err != nil {
				return err
			}
			raw = b
			return nil
		})
	})
	if err != nil {
		return PipelineOutcome{}, 0, attempts, &model.IngestionFailure{File: path, Stage: StageLoad, Err: err}
	}

	var outcome PipelineOutcome
	err = guard(StageTransform, func() error {
		var terr error
		outcome, terr = bi.pipeline.Transform(ctx, raw)
		return terr
	})
	if err != nil {
		return PipelineOutcome{}, 0, attempts, &model.IngestionFailure{File: path, Stage: StageTransform, Err: err}
	}
	return outcome, outcome.Batch.Len(), attempts, nil
}

// guard turns a panic in fn into an error so a malformed file is quarantined
// instead of taking the whole run down.
func guard(stage string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during %s: %v", stage, r)
		}
	}()
	return fn()
}
