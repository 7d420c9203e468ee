package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sales-pipeline/internal/model"
)

// SalesTable returns the consolidated table name for a year, e.g. sales_2019.
func SalesTable(year int) string {
	return fmt.Sprintf("sales_%d", year)
}

// ReplaceSalesTable drops and recreates table with the batch's columns and
// inserts every row, all inside one transaction. Column types are inferred
// from the first non-null value of each column.
func (s *Store) ReplaceSalesTable(ctx context.Context, table string, b *model.Batch) (int, error) {
	if !identPattern.MatchString(table) {
		return 0, &model.ConfigurationError{Key: "output.table", Reason: fmt.Sprintf("invalid table name %q", table)}
	}
	if len(b.Columns) == 0 {
		return 0, fmt.Errorf("batch %s has no columns", b.Source)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return 0, fmt.Errorf("failed to drop %s: %w", table, err)
	}

	defs := make([]string, len(b.Columns))
	cols := make([]string, len(b.Columns))
	marks := make([]string, len(b.Columns))
	for i, c := range b.Columns {
		cols[i] = quoteIdent(c)
		defs[i] = cols[i] + " " + s.columnType(b, c)
		marks[i] = "?"
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", table, err)
	}

	insert := s.rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(cols, ", "), strings.Join(marks, ", ")))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(b.Columns))
	for n, rec := range b.Records {
		for i, c := range b.Columns {
			args[i] = rec[c]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("failed to insert row %d: %w", n, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return b.Len(), nil
}

// SalesSeries reads (time, value) pairs from a consolidated table, ordered
// by time. Rows with a null in either column are skipped.
func (s *Store) SalesSeries(ctx context.Context, table, timeColumn, valueColumn string) ([]time.Time, []float64, error) {
	if !identPattern.MatchString(table) {
		return nil, nil, &model.ConfigurationError{Key: "forecast.table", Reason: fmt.Sprintf("invalid table name %q", table)}
	}
	query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IS NOT NULL AND %s IS NOT NULL ORDER BY %s",
		quoteIdent(timeColumn), quoteIdent(valueColumn), quoteIdent(table),
		quoteIdent(timeColumn), quoteIdent(valueColumn), quoteIdent(timeColumn))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var times []time.Time
	var values []float64
	for rows.Next() {
		var t time.Time
		var v float64
		if err := rows.Scan(&t, &v); err != nil {
			return nil, nil, err
		}
		times = append(times, t)
		values = append(values, v)
	}
	return times, values, rows.Err()
}

func (s *Store) columnType(b *model.Batch, column string) string {
	for _, rec := range b.Records {
		switch rec[column].(type) {
		case nil:
			continue
		case int64, int:
			if s.driver == DriverPostgres {
				return "BIGINT"
			}
			return "INTEGER"
		case float64:
			if s.driver == DriverPostgres {
				return "DOUBLE PRECISION"
			}
			return "REAL"
		case bool:
			return "BOOLEAN"
		case time.Time:
			return "TIMESTAMP"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
