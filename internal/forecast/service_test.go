package forecast

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-pipeline/internal/config"
	"sales-pipeline/internal/logging"
	"sales-pipeline/internal/model"
	"sales-pipeline/internal/store"
)

const testLayout = "2006-01-02 15:04:05"

// writeSalesCSV writes two transactions per day for days days.
func writeSalesCSV(t *testing.T, days int) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("OrderDate,Sales\n")
	for i := 0; i < days; i++ {
		d := day0.Add(time.Duration(i) * Day)
		fmt.Fprintf(&sb, "%s,%g\n", d.Add(9*time.Hour).Format(testLayout), linear(i)/2)
		fmt.Fprintf(&sb, "%s,%g\n", d.Add(18*time.Hour).Format(testLayout), linear(i)/2)
	}
	path := filepath.Join(t.TempDir(), "sales_2019.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0644))
	return path
}

func testForecastConfig() config.ForecastConfig {
	return config.ForecastConfig{
		TimeColumn:   "OrderDate",
		ValueColumn:  "Sales",
		TestFraction: 0.2,
		ModelID:      "sales-holt",
		Model:        config.ModelConfig{Kind: KindHolt},
		Tuning: config.TuningConfig{
			Mode: ModeGrid,
			Grid: []config.GridAxis{{Name: "alpha", Values: []float64{0.3, 0.6}}},
			CV:   config.CVConfig{Kind: "expanding", Window: 10, Step: 5, Horizon: 5},
		},
	}
}

func newTestService(t *testing.T, source SeriesSource) (*Service, *FileRegistry) {
	t.Helper()
	reg, _ := newTestRegistry(t)
	svc, err := NewService(testForecastConfig(), source, reg, logging.Discard())
	require.NoError(t, err)
	return svc, reg
}

func TestServiceTrainSavesModel(t *testing.T) {
	source := &FileSource{Path: writeSalesCSV(t, 40), TimeColumn: "OrderDate", ValueColumn: "Sales", Layout: testLayout}
	svc, reg := newTestService(t, source)
	ctx := context.Background()

	report, err := svc.Train(ctx)
	require.NoError(t, err)

	assert.Equal(t, "sales-holt", report.ModelID)
	assert.Equal(t, KindHolt, report.Kind)
	assert.Equal(t, 32, report.TrainPoints)
	assert.Equal(t, 8, report.TestPoints)
	assert.Empty(t, report.Validation)
	mae, ok := report.Metrics.Get(MetricMAE)
	require.True(t, ok)
	assert.InDelta(t, 0, mae, 1e-6)

	loaded, err := reg.Load(ctx, "sales-holt")
	require.NoError(t, err)
	assert.Equal(t, StateReadOnly, loaded.State())

	pred, err := svc.ForecastTest(ctx, "sales-holt")
	require.NoError(t, err)
	assert.Equal(t, 8, pred.Len())
	assert.InDelta(t, linear(32), pred.Points[0].Value, 1e-6)
}

func TestServiceTune(t *testing.T) {
	source := &FileSource{Path: writeSalesCSV(t, 40), TimeColumn: "OrderDate", ValueColumn: "Sales", Layout: testLayout}
	svc, _ := newTestService(t, source)

	report, err := svc.Tune(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Trials, 2)
	assert.Contains(t, []float64{0.3, 0.6}, report.Params["alpha"])
	assert.Equal(t, 5, report.Trials[0].Folds)
}

func TestServiceForecastAndWrite(t *testing.T) {
	source := &FileSource{Path: writeSalesCSV(t, 20), TimeColumn: "OrderDate", ValueColumn: "Sales", Layout: testLayout}
	svc, _ := newTestService(t, source)
	ctx := context.Background()
	_, err := svc.Train(ctx)
	require.NoError(t, err)

	pred, err := svc.Forecast(ctx, "sales-holt", Horizon{Steps: 2})
	require.NoError(t, err)
	require.Equal(t, 2, pred.Len())

	out := filepath.Join(t.TempDir(), "forecasts", "out.csv")
	res, err := svc.Write(ctx, pred, out)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RecordCount)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Sales", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2019-01-17,"))
}

func TestServiceRejectsShortSeries(t *testing.T) {
	source := &FileSource{Path: writeSalesCSV(t, 1), TimeColumn: "OrderDate", ValueColumn: "Sales", Layout: testLayout}
	svc, _ := newTestService(t, source)

	_, err := svc.Train(context.Background())
	assert.ErrorIs(t, err, model.ErrInsufficientData)
}

func TestTableSource(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "sales.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	b := model.NewBatch("sales", "OrderDate", "Sales")
	b.Append(model.Record{"OrderDate": day0.Add(10 * time.Hour), "Sales": 5.0})
	b.Append(model.Record{"OrderDate": day0.Add(2*Day + time.Hour), "Sales": 7.5})
	b.Append(model.Record{"OrderDate": day0.Add(12 * time.Hour), "Sales": 2.5})
	_, err = st.ReplaceSalesTable(ctx, store.SalesTable(2019), b)
	require.NoError(t, err)

	src := &TableSource{Store: st, Table: store.SalesTable(2019), TimeColumn: "OrderDate", ValueColumn: "Sales"}
	series, err := src.Series(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{7.5, 0, 7.5}, series.Values())
}

func TestNewSource(t *testing.T) {
	cfg := config.Default()
	src, err := NewSource(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileSource{}, src)

	cfg.Forecast.DataPath = ""
	_, err = NewSource(cfg, nil)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}
