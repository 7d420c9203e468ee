package forecast

import (
	"fmt"
	"sort"
	"time"

	"sales-pipeline/internal/model"
)

// Day is the granularity of every resampled series.
const Day = 24 * time.Hour

// Point is one observation of a series.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Series is a time-indexed numeric series with strictly increasing timestamps.
type Series struct {
	Points []Point `json:"points"`
}

// NewSeries sorts points by time and rejects duplicate timestamps.
func NewSeries(points []Point) (Series, error) {
	ps := make([]Point, len(points))
	copy(ps, points)
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Time.Before(ps[j].Time) })
	for i := 1; i < len(ps); i++ {
		if !ps[i].Time.After(ps[i-1].Time) {
			return Series{}, fmt.Errorf("duplicate timestamp %s in series", ps[i].Time.Format(time.RFC3339))
		}
	}
	return Series{Points: ps}, nil
}

func (s Series) Len() int { return len(s.Points) }

// Values returns the observations in time order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Times returns the timestamps in order.
func (s Series) Times() []time.Time {
	out := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Time
	}
	return out
}

// Last returns the final point. It panics on an empty series.
func (s Series) Last() Point { return s.Points[len(s.Points)-1] }

// Slice returns points [i, j) as a new series sharing no storage with s.
func (s Series) Slice(i, j int) Series {
	ps := make([]Point, j-i)
	copy(ps, s.Points[i:j])
	return Series{Points: ps}
}

// Batch renders the series as a two-column batch, e.g. for CSV export.
func (s Series) Batch(source, timeColumn, valueColumn string) *model.Batch {
	b := model.NewBatch(source, timeColumn, valueColumn)
	for _, p := range s.Points {
		b.Append(model.Record{timeColumn: p.Time, valueColumn: p.Value})
	}
	return b
}
