package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-pipeline/internal/model"
)

var day0 = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

func dailySeries(n int, f func(i int) float64) Series {
	points := make([]Point, n)
	for i := range points {
		points[i] = Point{Time: day0.Add(time.Duration(i) * Day), Value: f(i)}
	}
	return Series{Points: points}
}

func linear(i int) float64 { return 2*float64(i) + 10 }

func TestSplitHoldsOutMostRecentFraction(t *testing.T) {
	s, err := NewTimeSeriesSplitter(0.15)
	require.NoError(t, err)

	series := dailySeries(100, linear)
	train, test, err := s.Split(series)
	require.NoError(t, err)

	assert.Equal(t, 85, train.Len())
	assert.Equal(t, 15, test.Len())
	assert.True(t, train.Last().Time.Before(test.Points[0].Time))
	assert.Equal(t, series.Points, append(train.Points, test.Points...))
}

func TestTestSize(t *testing.T) {
	tests := []struct {
		n        int
		fraction float64
		want     int
	}{
		{n: 100, fraction: 0.15, want: 15},
		{n: 10, fraction: 0.25, want: 3},
		{n: 2, fraction: 0.1, want: 1},
		{n: 2, fraction: 0.9, want: 1},
		{n: 3, fraction: 0.5, want: 2},
	}
	for _, tt := range tests {
		s, err := NewTimeSeriesSplitter(tt.fraction)
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.TestSize(tt.n), "n=%d fraction=%v", tt.n, tt.fraction)
	}
}

func TestSplitRejectsShortSeries(t *testing.T) {
	s, err := NewTimeSeriesSplitter(0.2)
	require.NoError(t, err)

	_, _, err = s.Split(dailySeries(1, linear))
	assert.ErrorIs(t, err, model.ErrInsufficientData)
}

func TestNewTimeSeriesSplitterRejectsFraction(t *testing.T) {
	for _, f := range []float64{0, 1, -0.1, 1.5} {
		_, err := NewTimeSeriesSplitter(f)
		assert.ErrorIs(t, err, model.ErrConfiguration, "fraction %v", f)
	}
}

func TestResampleSumsPerDayAndFillsGaps(t *testing.T) {
	b := model.NewBatch("sales", "OrderDate", "Sales")
	b.Append(model.Record{"OrderDate": time.Date(2019, 4, 19, 8, 46, 0, 0, time.UTC), "Sales": 10.0})
	b.Append(model.Record{"OrderDate": "2019-04-19 22:30", "Sales": int64(5)})
	b.Append(model.Record{"OrderDate": nil, "Sales": 99.0})
	b.Append(model.Record{"OrderDate": time.Date(2019, 4, 21, 9, 0, 0, 0, time.UTC), "Sales": 7.0})

	series, err := Resample(b, "OrderDate", "Sales", "2006-01-02 15:04")
	require.NoError(t, err)

	require.Equal(t, 3, series.Len())
	assert.Equal(t, []float64{15, 0, 7}, series.Values())
	assert.Equal(t, time.Date(2019, 4, 19, 0, 0, 0, 0, time.UTC), series.Points[0].Time)
	assert.Equal(t, time.Date(2019, 4, 21, 0, 0, 0, 0, time.UTC), series.Last().Time)
}

func TestResampleErrors(t *testing.T) {
	t.Run("bad time", func(t *testing.T) {
		b := model.NewBatch("sales", "OrderDate", "Sales")
		b.Append(model.Record{"OrderDate": "19/04/2019", "Sales": 1.0})
		_, err := Resample(b, "OrderDate", "Sales", "2006-01-02 15:04")
		assert.ErrorIs(t, err, model.ErrParse)
	})

	t.Run("bad value", func(t *testing.T) {
		b := model.NewBatch("sales", "OrderDate", "Sales")
		b.Append(model.Record{"OrderDate": day0, "Sales": "lots"})
		_, err := Resample(b, "OrderDate", "Sales", "2006-01-02 15:04")
		assert.ErrorIs(t, err, model.ErrTypeCoercion)
	})

	t.Run("missing column", func(t *testing.T) {
		b := model.NewBatch("sales", "OrderDate")
		_, err := Resample(b, "OrderDate", "Sales", "2006-01-02 15:04")
		assert.ErrorIs(t, err, model.ErrMissingColumn)
	})
}

func TestResampleAndSplit(t *testing.T) {
	b := model.NewBatch("sales", "OrderDate", "Sales")
	for i := 0; i < 20; i++ {
		b.Append(model.Record{"OrderDate": day0.Add(time.Duration(i)*Day + 3*time.Hour), "Sales": 1.0})
	}
	s, err := NewTimeSeriesSplitter(0.2)
	require.NoError(t, err)

	train, test, err := s.ResampleAndSplit(b, "OrderDate", "Sales", time.RFC3339)
	require.NoError(t, err)
	assert.Equal(t, 16, train.Len())
	assert.Equal(t, 4, test.Len())
	assert.Equal(t, day0, train.Points[0].Time)
}

func TestNewSeriesSortsAndRejectsDuplicates(t *testing.T) {
	s, err := NewSeries([]Point{{Time: day0.Add(Day), Value: 2}, {Time: day0, Value: 1}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, s.Values())

	_, err = NewSeries([]Point{{Time: day0, Value: 1}, {Time: day0, Value: 2}})
	assert.Error(t, err)
}
