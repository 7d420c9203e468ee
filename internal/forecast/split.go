package forecast

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"sales-pipeline/internal/model"
	"sales-pipeline/pkg/utils"
)

// Resample sums valueColumn per UTC day. Days inside the covered span with
// no transaction get 0. Rows with a null time or value are skipped. String
// times are parsed with layout.
func Resample(b *model.Batch, timeColumn, valueColumn, layout string) (Series, error) {
	if err := b.RequireColumns("resample", timeColumn, valueColumn); err != nil {
		return Series{}, err
	}

	times := make([]time.Time, 0, b.Len())
	values := make([]float64, 0, b.Len())
	for row, rec := range b.Records {
		if rec.IsNull(timeColumn) || rec.IsNull(valueColumn) {
			continue
		}
		var t time.Time
		switch v := rec[timeColumn].(type) {
		case time.Time:
			t = v
		default:
			s := strings.TrimSpace(utils.Text(v))
			parsed, err := time.Parse(layout, s)
			if err != nil {
				return Series{}, &model.ParseError{Column: timeColumn, Row: row, Value: s, Layout: layout}
			}
			t = parsed
		}
		f, ok := utils.Numeric(rec[valueColumn])
		if !ok {
			return Series{}, &model.TypeCoercionError{Column: valueColumn, Row: row, Value: rec[valueColumn], Target: "float"}
		}
		times = append(times, t)
		values = append(values, f)
	}
	return ResampleDaily(times, values), nil
}

// ResampleDaily buckets observations into UTC days, summing each bucket and
// filling empty days between the first and last with 0.
func ResampleDaily(times []time.Time, values []float64) Series {
	if len(times) == 0 {
		return Series{}
	}
	sums := make(map[time.Time]float64, len(times))
	for i, t := range times {
		sums[t.UTC().Truncate(Day)] += values[i]
	}
	days := make([]time.Time, 0, len(sums))
	for d := range sums {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	first, last := days[0], days[len(days)-1]
	points := make([]Point, 0, int(last.Sub(first)/Day)+1)
	for d := first; !d.After(last); d = d.Add(Day) {
		points = append(points, Point{Time: d, Value: sums[d]})
	}
	return Series{Points: points}
}

// TimeSeriesSplitter holds out the most recent fraction of a series.
type TimeSeriesSplitter struct {
	TestFraction float64
}

// NewTimeSeriesSplitter creates a splitter; fraction must be in (0, 1).
func NewTimeSeriesSplitter(fraction float64) (*TimeSeriesSplitter, error) {
	if !(fraction > 0 && fraction < 1) {
		return nil, &model.ConfigurationError{Key: "forecast.test_fraction", Reason: fmt.Sprintf("must be in (0, 1), got %v", fraction)}
	}
	return &TimeSeriesSplitter{TestFraction: fraction}, nil
}

// TestSize returns ceil(n*fraction) clamped to [1, n-1]. A tolerance keeps
// float noise such as 100*0.15 = 15.000000000000002 from adding a point.
func (s *TimeSeriesSplitter) TestSize(n int) int {
	size := int(math.Ceil(float64(n)*s.TestFraction - 1e-9))
	return max(1, min(size, n-1))
}

// Split partitions an already resampled series into a training prefix and
// a test suffix. Every test timestamp is after every training timestamp.
func (s *TimeSeriesSplitter) Split(series Series) (train, test Series, err error) {
	n := series.Len()
	if n < 2 {
		return Series{}, Series{}, &model.InsufficientDataError{Have: n, Need: 2}
	}
	cut := n - s.TestSize(n)
	return series.Slice(0, cut), series.Slice(cut, n), nil
}

// ResampleAndSplit resamples raw transactions to a daily series and splits it.
func (s *TimeSeriesSplitter) ResampleAndSplit(b *model.Batch, timeColumn, valueColumn, layout string) (train, test Series, err error) {
	series, err := Resample(b, timeColumn, valueColumn, layout)
	if err != nil {
		return Series{}, Series{}, err
	}
	return s.Split(series)
}
