package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-pipeline/internal/model"
)

func fitted(t *testing.T, kind string, params Params, s Series) Forecaster {
	t.Helper()
	m, err := New(kind, params)
	require.NoError(t, err)
	require.NoError(t, m.Fit(context.Background(), s))
	return m
}

func TestModelsExtrapolateLinearTrend(t *testing.T) {
	train := dailySeries(30, linear)
	for _, kind := range Kinds() {
		t.Run(kind, func(t *testing.T) {
			m := fitted(t, kind, nil, train)
			assert.Equal(t, StateTrained, m.State())

			pred, err := m.Predict(context.Background(), Horizon{Steps: 3})
			require.NoError(t, err)
			require.Equal(t, 3, pred.Len())
			assert.InDeltaSlice(t, []float64{70, 72, 74}, pred.Values(), 1e-6)
			for k, p := range pred.Points {
				assert.Equal(t, train.Last().Time.Add(Day*time.Duration(k+1)), p.Time)
			}
		})
	}
}

func TestPredictAtExplicitTimestamps(t *testing.T) {
	series := dailySeries(40, linear)
	train, test := series.Slice(0, 30), series.Slice(30, 40)

	m := fitted(t, KindHolt, nil, train)
	pred, err := m.Predict(context.Background(), HorizonFromSeries(test))
	require.NoError(t, err)

	assert.Equal(t, test.Times(), pred.Times())
	assert.InDeltaSlice(t, test.Values(), pred.Values(), 1e-6)
}

func TestPredictRejectsPastTimestamps(t *testing.T) {
	train := dailySeries(30, linear)
	m := fitted(t, KindHolt, nil, train)

	_, err := m.Predict(context.Background(), Horizon{At: []time.Time{train.Last().Time}})
	assert.ErrorIs(t, err, model.ErrConfiguration)

	_, err = m.Predict(context.Background(), Horizon{})
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestRefitIsRejected(t *testing.T) {
	train := dailySeries(30, linear)
	for _, kind := range Kinds() {
		m := fitted(t, kind, nil, train)
		err := m.Fit(context.Background(), train)
		assert.ErrorIs(t, err, model.ErrCapability, kind)
	}
}

func TestPredictBeforeFitIsRejected(t *testing.T) {
	for _, kind := range Kinds() {
		m, err := New(kind, nil)
		require.NoError(t, err)
		_, err = m.Predict(context.Background(), Horizon{Steps: 1})
		assert.ErrorIs(t, err, model.ErrCapability, kind)
	}
}

func TestFitNeedsEnoughPoints(t *testing.T) {
	m, err := New(KindReduction, Params{"window": 7})
	require.NoError(t, err)
	err = m.Fit(context.Background(), dailySeries(8, linear))
	assert.ErrorIs(t, err, model.ErrInsufficientData)
	assert.Equal(t, StateUntrained, m.State())

	h, err := New(KindHolt, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, h.Fit(context.Background(), dailySeries(1, linear)), model.ErrInsufficientData)
}

func TestFitIsDeterministic(t *testing.T) {
	train := dailySeries(50, func(i int) float64 { return 100 + float64(i%7)*3 + float64(i) })
	a := fitted(t, KindReduction, Params{"epochs": 200}, train)
	b := fitted(t, KindReduction, Params{"epochs": 200}, train)

	pa, err := a.Predict(context.Background(), Horizon{Steps: 10})
	require.NoError(t, err)
	pb, err := b.Predict(context.Background(), Horizon{Steps: 10})
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		kind   string
		params Params
	}{
		{name: "unknown kind", kind: "arima"},
		{name: "negative lr", kind: KindReduction, params: Params{"lr": -1}},
		{name: "fractional window", kind: KindReduction, params: Params{"window": 2.5}},
		{name: "zero epochs", kind: KindReduction, params: Params{"epochs": 0}},
		{name: "alpha above one", kind: KindHolt, params: Params{"alpha": 1.5}},
		{name: "zero beta", kind: KindHolt, params: Params{"beta": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.kind, tt.params)
			assert.ErrorIs(t, err, model.ErrConfiguration)
		})
	}
}

func TestFactoryMergesBaseParams(t *testing.T) {
	f, err := NewFactory(KindReduction, Params{"window": 3, "lr": 0.2})
	require.NoError(t, err)

	m, err := f(Params{"lr": 0.05})
	require.NoError(t, err)
	assert.Equal(t, Params{"window": 3, "lr": 0.05}, m.Params())

	_, err = NewFactory("arima", nil)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "untrained", StateUntrained.String())
	assert.Equal(t, "trained", StateTrained.String())
	assert.Equal(t, "persisted", StatePersisted.String())
	assert.Equal(t, "trained_read_only", StateReadOnly.String())
}
