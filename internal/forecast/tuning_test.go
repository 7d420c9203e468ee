package forecast

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-pipeline/internal/config"
	"sales-pipeline/internal/logging"
	"sales-pipeline/internal/model"
)

func seasonal(i int) float64 {
	return 100 + 1.5*float64(i) + 8*math.Sin(float64(i)*2*math.Pi/7)
}

func reductionFactory(t *testing.T) Factory {
	t.Helper()
	f, err := NewFactory(KindReduction, Params{"epochs": 100})
	require.NoError(t, err)
	return f
}

func TestTuningIsDeterministic(t *testing.T) {
	series := dailySeries(40, seasonal)
	grid := Grid{{Name: "lr", Values: []float64{0.1, 0.01}}}
	cv := ExpandingWindow{InitialWindow: 20, Step: 5, Horizon: 5}

	run := func() *TuningResult {
		job, err := NewTuningJob(reductionFactory(t), grid, cv, ModeGrid, TuningOptions{}, logging.Discard())
		require.NoError(t, err)
		res, err := job.Run(context.Background(), series)
		require.NoError(t, err)
		return res
	}

	first, second := run(), run()
	assert.Equal(t, first.Best, second.Best)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Trials, second.Trials)

	require.Len(t, first.Trials, 2)
	assert.Contains(t, []float64{0.1, 0.01}, first.Best["lr"])
	assert.Equal(t, 4, first.Trials[0].Folds)
	assert.Equal(t, StateTrained, first.Forecaster.State())
	assert.Equal(t, series.Last().Time, first.Forecaster.(*Reduction).last)
}

func TestTuningTieKeepsFirstCandidate(t *testing.T) {
	f, err := NewFactory(KindHolt, nil)
	require.NoError(t, err)
	grid := Grid{{Name: "unused", Values: []float64{1, 2, 3}}}

	job, err := NewTuningJob(f, grid, ExpandingWindow{InitialWindow: 10, Step: 5, Horizon: 5}, ModeGrid, TuningOptions{}, logging.Discard())
	require.NoError(t, err)
	res, err := job.Run(context.Background(), dailySeries(30, seasonal))
	require.NoError(t, err)

	assert.Equal(t, 1.0, res.Best["unused"])
	assert.Equal(t, res.Trials[0].Score, res.Trials[2].Score)
}

func TestNewTuningJobRejectsUnknownMode(t *testing.T) {
	calls := 0
	factory := func(p Params) (Forecaster, error) {
		calls++
		return New(KindHolt, p)
	}
	_, err := NewTuningJob(factory, Grid{{Name: "alpha", Values: []float64{0.5}}}, ExpandingWindow{}, "bayesian", TuningOptions{}, logging.Discard())
	assert.ErrorIs(t, err, model.ErrConfiguration)
	assert.Zero(t, calls)
}

func TestNewTuningJobValidation(t *testing.T) {
	cv := ExpandingWindow{InitialWindow: 10, Step: 5, Horizon: 5}
	f := reductionFactory(t)

	_, err := NewTuningJob(f, Grid{}, cv, ModeGrid, TuningOptions{}, logging.Discard())
	assert.ErrorIs(t, err, model.ErrConfiguration)

	_, err = NewTuningJob(f, Grid{{Name: "lr", Values: []float64{0.1}}, {Name: "lr", Values: []float64{0.2}}}, cv, ModeGrid, TuningOptions{}, logging.Discard())
	assert.ErrorIs(t, err, model.ErrConfiguration)

	_, err = NewTuningJob(f, Grid{{Name: "lr", Values: []float64{0.1}}}, cv, ModeRandomized, TuningOptions{NIter: 0}, logging.Discard())
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestGridCandidatesOrder(t *testing.T) {
	grid := Grid{
		{Name: "window", Values: []float64{3, 7}},
		{Name: "lr", Values: []float64{0.1, 0.01}},
	}
	assert.Equal(t, []Params{
		{"window": 3, "lr": 0.1},
		{"window": 3, "lr": 0.01},
		{"window": 7, "lr": 0.1},
		{"window": 7, "lr": 0.01},
	}, grid.Candidates())
}

func TestRandomizedSearchSamplesDistinctCandidates(t *testing.T) {
	grid := Grid{
		{Name: "window", Values: []float64{3, 5, 7}},
		{Name: "lr", Values: []float64{0.1, 0.05}},
	}
	cv := ExpandingWindow{InitialWindow: 20, Step: 5, Horizon: 5}
	newJob := func(nIter int, seed int64) *TuningJob {
		job, err := NewTuningJob(reductionFactory(t), grid, cv, ModeRandomized, TuningOptions{NIter: nIter, Seed: seed}, logging.Discard())
		require.NoError(t, err)
		return job
	}

	picked := newJob(3, 42).candidates()
	require.Len(t, picked, 3)
	seen := map[string]bool{}
	for _, p := range picked {
		assert.False(t, seen[p.String()], "duplicate candidate %s", p)
		seen[p.String()] = true
	}
	assert.Equal(t, picked, newJob(3, 42).candidates())
	assert.Len(t, newJob(50, 1).candidates(), 6)

	res, err := newJob(2, 7).Run(context.Background(), dailySeries(40, seasonal))
	require.NoError(t, err)
	assert.Len(t, res.Trials, 2)
}

func TestTuningFailsWhenEveryCandidateFails(t *testing.T) {
	grid := Grid{{Name: "lr", Values: []float64{-1, -2}}}
	job, err := NewTuningJob(reductionFactory(t), grid, ExpandingWindow{InitialWindow: 20, Step: 5, Horizon: 5}, ModeGrid, TuningOptions{}, logging.Discard())
	require.NoError(t, err)

	_, err = job.Run(context.Background(), dailySeries(40, seasonal))
	assert.ErrorIs(t, err, model.ErrFitFailure)
}

func TestTuningSkipsFailingCandidate(t *testing.T) {
	grid := Grid{{Name: "lr", Values: []float64{-1, 0.1}}}
	job, err := NewTuningJob(reductionFactory(t), grid, ExpandingWindow{InitialWindow: 20, Step: 5, Horizon: 5}, ModeGrid, TuningOptions{}, logging.Discard())
	require.NoError(t, err)

	res, err := job.Run(context.Background(), dailySeries(40, seasonal))
	require.NoError(t, err)
	assert.Equal(t, 0.1, res.Best["lr"])
	assert.NotEmpty(t, res.Trials[0].Error)
	assert.Empty(t, res.Trials[1].Error)
}

func TestGridFromConfig(t *testing.T) {
	g := GridFromConfig([]config.GridAxis{{Name: "alpha", Values: []float64{0.2, 0.8}}})
	assert.Equal(t, Grid{{Name: "alpha", Values: []float64{0.2, 0.8}}}, g)
}
