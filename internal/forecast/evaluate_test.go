package forecast

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	actual := dailySeries(3, func(i int) float64 { return []float64{10, 20, 0}[i] })
	predicted := dailySeries(3, func(i int) float64 { return []float64{12, 18, 0}[i] })

	m, err := Evaluate(actual, predicted)
	require.NoError(t, err)

	assert.Equal(t, []string{MetricMAE, MetricMAPE, MetricMSPE, MetricRMSE}, m.Names())
	mae, _ := m.Get(MetricMAE)
	assert.InDelta(t, 4.0/3, mae, 1e-12)
	rmse, _ := m.Get(MetricRMSE)
	assert.InDelta(t, math.Sqrt(8.0/3), rmse, 1e-12)
	mape, _ := m.Get(MetricMAPE)
	assert.InDelta(t, 0.15, mape, 1e-12)
	mspe, _ := m.Get(MetricMSPE)
	assert.InDelta(t, 0.025, mspe, 1e-12)
}

func TestEvaluateOmitsPercentageMetricsForZeroActuals(t *testing.T) {
	zeros := dailySeries(4, func(int) float64 { return 0 })
	ones := dailySeries(4, func(int) float64 { return 1 })

	m, err := Evaluate(zeros, ones)
	require.NoError(t, err)

	_, ok := m.Get(MetricMAPE)
	assert.False(t, ok)
	mae, ok := m.Get(MetricMAE)
	assert.True(t, ok)
	assert.Equal(t, 1.0, mae)
}

func TestEvaluateRejectsMismatchedSeries(t *testing.T) {
	a := dailySeries(3, linear)

	_, err := Evaluate(a, dailySeries(2, linear))
	assert.Error(t, err)

	shifted := a.Slice(0, 3)
	shifted.Points[1].Time = shifted.Points[1].Time.Add(Day * 10)
	_, err = Evaluate(a, shifted)
	assert.Error(t, err)

	_, err = Evaluate(Series{}, Series{})
	assert.Error(t, err)
}

func TestMetricsMarshalJSON(t *testing.T) {
	a := dailySeries(2, linear)
	m, err := Evaluate(a, a)
	require.NoError(t, err)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var out map[string]float64
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, m.Map(), out)
	assert.Equal(t, 0.0, out[MetricMAE])
}
