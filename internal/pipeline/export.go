package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"sales-pipeline/internal/model"
)

// Exporter writes the consolidated batch to one destination.
type Exporter interface {
	Export(ctx context.Context, b *model.Batch) model.ExportResult
}

// TableWriter is the database side of the sales export.
type TableWriter interface {
	ReplaceSalesTable(ctx context.Context, table string, b *model.Batch) (int, error)
}

// ExportManager fans the consolidated batch out to every configured exporter.
type ExportManager struct {
	exporters []Exporter
	logger    *slog.Logger
}

// NewExportManager creates an export manager.
func NewExportManager(logger *slog.Logger, exporters ...Exporter) *ExportManager {
	return &ExportManager{
		exporters: exporters,
		logger:    logger.With(slog.String("component", "export_manager")),
	}
}

// Export runs every exporter, even after one fails, and returns all results.
// The error joins the failures.
func (em *ExportManager) Export(ctx context.Context, b *model.Batch) ([]model.ExportResult, error) {
	results := make([]model.ExportResult, 0, len(em.exporters))
	var errs []error
	for _, e := range em.exporters {
		res := e.Export(ctx, b)
		results = append(results, res)
		if !res.Success {
			em.logger.Error("export failed",
				slog.String("type", res.Type),
				slog.String("path", res.Path),
				slog.String("error", res.Error))
			errs = append(errs, fmt.Errorf("%s export to %s: %s", res.Type, res.Path, res.Error))
			continue
		}
		em.logger.Info("export successful",
			slog.String("type", res.Type),
			slog.String("path", res.Path),
			slog.Int("records", res.RecordCount))
	}
	return results, errors.Join(errs...)
}

// ------------------- CSV -------------------

// CSVExporter writes the batch as a CSV file with a header row.
type CSVExporter struct {
	Path       string
	TimeLayout string
}

func (e *CSVExporter) Export(ctx context.Context, b *model.Batch) model.ExportResult {
	n, err := e.write(ctx, b)
	return newExportResult("csv", e.Path, n, err)
}

func (e *CSVExporter) write(ctx context.Context, b *model.Batch) (int, error) {
	if err := os.MkdirAll(filepath.Dir(e.Path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a sibling temp file so readers never see a half-written export.
	tmp := e.Path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp)

	writer := csv.NewWriter(file)
	if err := writer.Write(b.Columns); err != nil {
		file.Close()
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(b.Columns))
	for n, rec := range b.Records {
		if err := ctx.Err(); err != nil {
			file.Close()
			return n, err
		}
		for i, c := range b.Columns {
			row[i] = model.FormatValue(rec[c], e.TimeLayout)
		}
		if err := writer.Write(row); err != nil {
			file.Close()
			return n, fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return 0, err
	}
	if err := file.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, e.Path); err != nil {
		return 0, err
	}
	return b.Len(), nil
}

// ------------------- Database -------------------

// DBExporter replaces the yearly sales table with the batch.
type DBExporter struct {
	Table  string
	Writer TableWriter
}

func (e *DBExporter) Export(ctx context.Context, b *model.Batch) model.ExportResult {
	n, err := e.Writer.ReplaceSalesTable(ctx, e.Table, b)
	return newExportResult("database", e.Table, n, err)
}

func newExportResult(kind, path string, n int, err error) model.ExportResult {
	res := model.ExportResult{
		Type:        kind,
		Path:        path,
		RecordCount: n,
		Success:     err == nil,
		Timestamp:   time.Now(),
	}
	if err != nil {
		res.Error = err.Error()
		res.RecordCount = 0
	}
	return res
}
