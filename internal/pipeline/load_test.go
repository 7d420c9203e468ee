package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCSVLoader(t *testing.T) {
	path := writeFile(t, "april.csv", "\ufeff\"Order ID\", Product ,Price Each\n176558,USB-C Charging Cable,11.95\n176559,Bose SoundSport Headphones\n")

	b, err := (&CSVLoader{}).Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Order ID", "Product", "Price Each"}, b.Columns)
	require.Equal(t, 2, b.Len())
	assert.Equal(t, "176558", b.Records[0]["Order ID"])
	assert.Equal(t, "11.95", b.Records[0]["Price Each"])
	assert.Nil(t, b.Records[1]["Price Each"])
	assert.Equal(t, path, b.Source)
}

func TestCSVLoaderErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"duplicate header", "a,a\n1,2\n"},
		{"empty header", "a,,c\n1,2,3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "bad.csv", tt.content)
			_, err := (&CSVLoader{}).Load(context.Background(), path)
			require.Error(t, err)
			assert.False(t, IsTransient(err))
		})
	}

	_, err := (&CSVLoader{}).Load(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestExcelLoader(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Order ID", "Product", "Quantity Ordered"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"176558", "USB-C Charging Cable", "2"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"176559", "Google Phone", "1"}))
	path := filepath.Join(t.TempDir(), "april.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	loader, err := LoaderFor(path)
	require.NoError(t, err)
	b, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Order ID", "Product", "Quantity Ordered"}, b.Columns)
	require.Equal(t, 2, b.Len())
	assert.Equal(t, "Google Phone", b.Records[1]["Product"])
	assert.Equal(t, "2", b.Records[0]["Quantity Ordered"])
}

func TestLoaderFor(t *testing.T) {
	l, err := LoaderFor("data/raw/Sales_April_2019.CSV")
	require.NoError(t, err)
	assert.IsType(t, &CSVLoader{}, l)

	_, err = LoaderFor("data/raw/notes.txt")
	assert.Error(t, err)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&TransientError{Err: fmt.Errorf("flaky")}))
	assert.True(t, IsTransient(fmt.Errorf("read: %w", syscall.EBUSY)))
	assert.False(t, IsTransient(&csv.ParseError{Line: 1, Err: csv.ErrQuote}))
	assert.False(t, IsTransient(fmt.Errorf("open: %w", os.ErrNotExist)))
	assert.False(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(nil))
}
