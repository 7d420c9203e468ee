package model

import (
	"fmt"
	"time"
)

// Record is a schema-agnostic row. A missing key or a nil value is a null cell.
type Record map[string]any

// Clone returns a shallow copy of the record. Cell values are immutable
// scalars (string, int64, float64, bool, time.Time) so a shallow copy is
// enough to stop two batches from sharing a row.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsNull reports whether the cell for column is missing or nil.
func (r Record) IsNull(column string) bool {
	v, ok := r[column]
	return !ok || v == nil
}

// Batch is one in-memory tabular dataset flowing through the pipeline.
// Columns keeps the column order for export; Records holds the rows.
type Batch struct {
	Source  string   `json:"source,omitempty"`
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// NewBatch creates an empty batch with the given column order.
func NewBatch(source string, columns ...string) *Batch {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Batch{Source: source, Columns: cols}
}

// Len returns the number of rows.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}

// HasColumn reports whether the batch declares column.
func (b *Batch) HasColumn(column string) bool {
	return b.columnIndex(column) >= 0
}

// RequireColumns returns a MissingColumnError for the first column the batch
// does not declare.
func (b *Batch) RequireColumns(step string, columns ...string) error {
	for _, c := range columns {
		if !b.HasColumn(c) {
			return &MissingColumnError{Step: step, Column: c}
		}
	}
	return nil
}

// AddColumn appends column to the column order if it is not present yet.
func (b *Batch) AddColumn(column string) {
	if !b.HasColumn(column) {
		b.Columns = append(b.Columns, column)
	}
}

// Append adds a row to the batch.
func (b *Batch) Append(rec Record) {
	b.Records = append(b.Records, rec)
}

// Clone returns a deep copy of the batch so the copy can be mutated freely.
func (b *Batch) Clone() *Batch {
	if b == nil {
		return nil
	}
	out := NewBatch(b.Source, b.Columns...)
	out.Records = make([]Record, len(b.Records))
	for i, rec := range b.Records {
		out.Records[i] = rec.Clone()
	}
	return out
}

// Column returns the values of one column, nil for null cells.
func (b *Batch) Column(column string) []any {
	values := make([]any, len(b.Records))
	for i, rec := range b.Records {
		values[i] = rec[column]
	}
	return values
}

func (b *Batch) columnIndex(column string) int {
	for i, c := range b.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Concat merges batches into one. The column order is the union of all
// column orders, first seen first. Rows are copied in argument order.
func Concat(source string, batches ...*Batch) *Batch {
	out := NewBatch(source)
	total := 0
	for _, b := range batches {
		if b == nil {
			continue
		}
		for _, c := range b.Columns {
			out.AddColumn(c)
		}
		total += len(b.Records)
	}
	out.Records = make([]Record, 0, total)
	for _, b := range batches {
		if b == nil {
			continue
		}
		for _, rec := range b.Records {
			out.Records = append(out.Records, rec.Clone())
		}
	}
	return out
}

// FormatValue renders a cell for text outputs (CSV, SQL text columns).
func FormatValue(v any, timeLayout string) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.Format(timeLayout)
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
