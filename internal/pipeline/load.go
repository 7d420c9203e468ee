package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/xuri/excelize/v2"

	"sales-pipeline/internal/model"
	"sales-pipeline/pkg/utils"
)

// Loader reads one source file into a batch.
type Loader interface {
	Load(ctx context.Context, path string) (*model.Batch, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, path string) (*model.Batch, error)

func (f LoaderFunc) Load(ctx context.Context, path string) (*model.Batch, error) { return f(ctx, path) }

// TransientError marks a load failure worth retrying.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether a load error may succeed on another attempt.
// Malformed content, missing files and permission problems never do.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return false
	}
	return errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, os.ErrDeadlineExceeded)
}

// LoaderFor picks the loader for path by extension.
func LoaderFor(path string) (Loader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return &CSVLoader{Delimiter: ','}, nil
	case ".xlsx":
		return &ExcelLoader{}, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

// ------------------- CSV -------------------

// CSVLoader reads a delimited text file whose first row is the header.
type CSVLoader struct {
	Delimiter rune
}

func (l *CSVLoader) Load(ctx context.Context, path string) (*model.Batch, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	return l.read(ctx, path, file)
}

func (l *CSVLoader) read(ctx context.Context, source string, r io.Reader) (*model.Batch, error) {
	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1
	if l.Delimiter != 0 {
		csvReader.Comma = l.Delimiter
	}

	headers, err := csvReader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV file: %s", source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	b, err := newBatchFromHeader(source, headers)
	if err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := csvReader.Read()
		if err == io.EOF {
			return b, nil
		}
		if err != nil {
			return nil, fmt.Errorf("CSV read error: %w", err)
		}
		b.Append(recordFromRow(b.Columns, row))
	}
}

// ------------------- Excel -------------------

// ExcelLoader reads the first sheet (or Sheet) of an .xlsx workbook whose
// first row is the header.
type ExcelLoader struct {
	Sheet string
}

func (l *ExcelLoader) Load(ctx context.Context, path string) (*model.Batch, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := l.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty sheet %q in %s", sheet, path)
	}

	b, err := newBatchFromHeader(path, rows[0])
	if err != nil {
		return nil, err
	}
	for _, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.Append(recordFromRow(b.Columns, row))
	}
	return b, nil
}

// ------------------- helpers -------------------

func newBatchFromHeader(source string, headers []string) (*model.Batch, error) {
	columns := make([]string, len(headers))
	seen := make(map[string]bool, len(headers))
	for i, h := range headers {
		// Clean header names: trim whitespace and remove ALL quotes
		clean := strings.ReplaceAll(strings.TrimSpace(h), `"`, "")
		clean = strings.TrimPrefix(clean, "\ufeff")
		if clean == "" {
			return nil, fmt.Errorf("empty header name in column %d of %s", i, source)
		}
		if seen[clean] {
			return nil, fmt.Errorf("duplicate header %q in %s", clean, source)
		}
		seen[clean] = true
		columns[i] = clean
	}
	return model.NewBatch(source, columns...), nil
}

// recordFromRow maps cells onto columns; short rows leave trailing cells null.
func recordFromRow(columns, row []string) model.Record {
	rec := make(model.Record, len(columns))
	for i, c := range columns {
		if i < len(row) {
			rec[c] = utils.ParseValue(row[i])
		} else {
			rec[c] = nil
		}
	}
	return rec
}
