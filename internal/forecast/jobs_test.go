package forecast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-pipeline/internal/logging"
	"sales-pipeline/internal/model"
)

func TestTrainingJobRunAndEvaluate(t *testing.T) {
	splitter, err := NewTimeSeriesSplitter(0.2)
	require.NoError(t, err)
	train, test, err := splitter.Split(dailySeries(50, linear))
	require.NoError(t, err)

	m, err := New(KindHolt, nil)
	require.NoError(t, err)
	job := NewTrainingJob(m, train, logging.Discard())
	require.NoError(t, job.Run(context.Background()))

	pred, err := m.Predict(context.Background(), HorizonFromSeries(test))
	require.NoError(t, err)
	metrics, err := job.Evaluate(test, pred)
	require.NoError(t, err)

	mae, ok := metrics.Get(MetricMAE)
	require.True(t, ok)
	assert.InDelta(t, 0, mae, 1e-6)
}

func TestTrainingJobErrors(t *testing.T) {
	m, err := New(KindReduction, nil)
	require.NoError(t, err)

	err = NewTrainingJob(m, dailySeries(3, linear), logging.Discard()).Run(context.Background())
	assert.ErrorIs(t, err, model.ErrFitFailure)
	assert.ErrorIs(t, err, model.ErrInsufficientData)

	trained := fitted(t, KindHolt, nil, dailySeries(10, linear))
	err = NewTrainingJob(trained, dailySeries(10, linear), logging.Discard()).Run(context.Background())
	assert.ErrorIs(t, err, model.ErrCapability)
	assert.NotErrorIs(t, err, model.ErrFitFailure)
}

type fitOnly struct{}

func (fitOnly) Kind() string   { return "fit_only" }
func (fitOnly) Params() Params { return nil }
func (fitOnly) State() State   { return StateTrained }

func TestNewInferenceJobChecksCapability(t *testing.T) {
	_, err := NewInferenceJob(fitOnly{}, logging.Discard())
	assert.ErrorIs(t, err, model.ErrCapability)

	untrained, err := New(KindHolt, nil)
	require.NoError(t, err)
	_, err = NewInferenceJob(untrained, logging.Discard())
	assert.ErrorIs(t, err, model.ErrCapability)
}

func TestInferenceFromRegistry(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	train := dailySeries(20, linear)
	require.NoError(t, reg.Save(ctx, "holt-2019", fitted(t, KindHolt, nil, train)))

	job, err := FromRegistry(ctx, reg, "holt-2019", logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, StateReadOnly, job.Model().State())

	out, err := job.Predict(ctx, Horizon{Steps: 2})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{50, 52}, out.Values(), 1e-6)

	_, err = FromRegistry(ctx, reg, "unknown", logging.Discard())
	assert.ErrorIs(t, err, ErrModelNotFound)
}
