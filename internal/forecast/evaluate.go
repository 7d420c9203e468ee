package forecast

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metric names.
const (
	MetricMAE  = "mae"
	MetricMAPE = "mape"
	MetricMSPE = "mspe"
	MetricRMSE = "rmse"
)

// Metrics is an immutable set of named scores.
type Metrics struct {
	scores map[string]float64
}

// Get returns the score for name.
func (m Metrics) Get(name string) (float64, bool) {
	v, ok := m.scores[name]
	return v, ok
}

// Names returns the metric names in sorted order.
func (m Metrics) Names() []string {
	names := make([]string, 0, len(m.scores))
	for k := range m.scores {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the scores.
func (m Metrics) Map() map[string]float64 {
	out := make(map[string]float64, len(m.scores))
	for k, v := range m.scores {
		out[k] = v
	}
	return out
}

func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.scores)
}

// Evaluate scores predictions against actual values. Both series must cover
// the same timestamps. Percentage metrics skip days whose actual value is
// zero and are omitted when every actual value is zero.
func Evaluate(actual, predicted Series) (Metrics, error) {
	if actual.Len() == 0 {
		return Metrics{}, fmt.Errorf("cannot evaluate an empty series")
	}
	if actual.Len() != predicted.Len() {
		return Metrics{}, fmt.Errorf("series length mismatch: %d actual, %d predicted", actual.Len(), predicted.Len())
	}
	for i := range actual.Points {
		if !actual.Points[i].Time.Equal(predicted.Points[i].Time) {
			return Metrics{}, fmt.Errorf("timestamp mismatch at %d: %s vs %s", i, actual.Points[i].Time, predicted.Points[i].Time)
		}
	}

	a, p := actual.Values(), predicted.Values()
	diff := make([]float64, len(a))
	floats.SubTo(diff, a, p)

	abs := make([]float64, len(diff))
	sq := make([]float64, len(diff))
	var pctAbs, pctSq []float64
	for i, d := range diff {
		abs[i] = math.Abs(d)
		sq[i] = d * d
		if a[i] != 0 {
			r := d / a[i]
			pctAbs = append(pctAbs, math.Abs(r))
			pctSq = append(pctSq, r*r)
		}
	}

	scores := map[string]float64{
		MetricMAE:  stat.Mean(abs, nil),
		MetricRMSE: math.Sqrt(stat.Mean(sq, nil)),
	}
	if len(pctAbs) > 0 {
		scores[MetricMAPE] = stat.Mean(pctAbs, nil)
		scores[MetricMSPE] = stat.Mean(pctSq, nil)
	}
	return Metrics{scores: scores}, nil
}
