package pipeline

import (
	"fmt"
	"log/slog"

	"sales-pipeline/internal/config"
	"sales-pipeline/internal/store"
)

// New wires the sales ingestion run from configuration: configured steps,
// the sales output validator, CSV and database exporters, and run tracking.
// st may be nil, which disables the database export and run tracking.
func New(cfg *config.Config, st *store.Store, metrics *Metrics, logger *slog.Logger, opts ...IngestorOption) (*BatchIngestor, error) {
	steps, err := BuildSteps(cfg.Transform.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to build transform steps: %w", err)
	}
	tp, err := NewSalesPipeline(steps, cfg.Transform.SampleSize, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build output validator: %w", err)
	}

	var exporters []Exporter
	if cfg.Output.CSVPath != "" {
		exporters = append(exporters, &CSVExporter{Path: cfg.Output.CSVPath, TimeLayout: cfg.Output.TimeLayout})
	}

	var runs RunStore
	if st != nil {
		exporters = append(exporters, &DBExporter{Table: store.SalesTable(cfg.Output.Year), Writer: st})
		runs = st
	}

	logger.Info("ingestion pipeline configured",
		slog.Any("steps", tp.Steps()),
		slog.Int("exporters", len(exporters)),
		slog.Int("workers", cfg.Ingest.Workers))

	return NewBatchIngestor(cfg.Ingest, tp, NewExportManager(logger, exporters...), NewRunTracker(runs, logger), metrics, logger, opts...), nil
}
