package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"sales-pipeline/internal/config"
	"sales-pipeline/internal/model"
)

// Search modes.
const (
	ModeGrid       = "grid"
	ModeRandomized = "randomized"
)

// Axis is one hyperparameter and its ordered candidate values.
type Axis struct {
	Name   string
	Values []float64
}

// Grid is an ordered list of axes. Enumeration varies the last axis fastest.
type Grid []Axis

// GridFromConfig converts configured axes.
func GridFromConfig(axes []config.GridAxis) Grid {
	g := make(Grid, len(axes))
	for i, a := range axes {
		g[i] = Axis{Name: a.Name, Values: append([]float64(nil), a.Values...)}
	}
	return g
}

// Candidates enumerates every combination in a fixed order.
func (g Grid) Candidates() []Params {
	out := []Params{{}}
	for _, axis := range g {
		next := make([]Params, 0, len(out)*len(axis.Values))
		for _, base := range out {
			for _, v := range axis.Values {
				p := base.Clone()
				p[axis.Name] = v
				next = append(next, p)
			}
		}
		out = next
	}
	return out
}

func (g Grid) validate() error {
	if len(g) == 0 {
		return &model.ConfigurationError{Key: "forecast.tuning.grid", Reason: "grid is empty"}
	}
	seen := make(map[string]bool, len(g))
	for _, a := range g {
		if a.Name == "" || len(a.Values) == 0 {
			return &model.ConfigurationError{Key: "forecast.tuning.grid", Reason: fmt.Sprintf("axis %q needs a name and at least one value", a.Name)}
		}
		if seen[a.Name] {
			return &model.ConfigurationError{Key: "forecast.tuning.grid", Reason: fmt.Sprintf("duplicate axis %q", a.Name)}
		}
		seen[a.Name] = true
	}
	return nil
}

// TuningOptions configures randomized search.
type TuningOptions struct {
	NIter int
	Seed  int64
}

// Trial is the cross-validated score of one candidate.
type Trial struct {
	Params Params  `json:"params"`
	Score  float64 `json:"score"`
	Folds  int     `json:"folds"`
	Error  string  `json:"error,omitempty"`
}

// TuningResult is the outcome of a search.
type TuningResult struct {
	Best       Params     `json:"best"`
	Score      float64    `json:"score"`
	Forecaster Forecaster `json:"-"`
	Trials     []Trial    `json:"trials"`
}

// TuningJob searches hyperparameters with time-ordered cross-validation,
// scoring each candidate by its mean MAE over the folds.
type TuningJob struct {
	factory Factory
	grid    Grid
	cv      CrossValidator
	mode    string
	opts    TuningOptions
	logger  *slog.Logger
}

// NewTuningJob validates the search setup before any computation.
func NewTuningJob(factory Factory, grid Grid, cv CrossValidator, mode string, opts TuningOptions, logger *slog.Logger) (*TuningJob, error) {
	switch mode {
	case ModeGrid:
	case ModeRandomized:
		if opts.NIter < 1 {
			return nil, &model.ConfigurationError{Key: "forecast.tuning.n_iter", Reason: "randomized search needs n_iter >= 1"}
		}
	default:
		return nil, &model.ConfigurationError{Key: "forecast.tuning.mode", Reason: fmt.Sprintf("unknown search mode %q", mode)}
	}
	if factory == nil {
		return nil, &model.ConfigurationError{Key: "forecast.model", Reason: "no forecaster factory"}
	}
	if cv == nil {
		return nil, &model.ConfigurationError{Key: "forecast.tuning.cv", Reason: "no cross-validator"}
	}
	if err := grid.validate(); err != nil {
		return nil, err
	}
	return &TuningJob{
		factory: factory,
		grid:    grid,
		cv:      cv,
		mode:    mode,
		opts:    opts,
		logger:  logger.With(slog.String("component", "tuning_job")),
	}, nil
}

// candidates returns the search order. Randomized search takes NIter
// distinct candidates in seeded random order.
func (j *TuningJob) candidates() []Params {
	all := j.grid.Candidates()
	if j.mode != ModeRandomized {
		return all
	}
	r := rand.New(rand.NewSource(j.opts.Seed))
	perm := r.Perm(len(all))
	n := min(j.opts.NIter, len(all))
	out := make([]Params, n)
	for i := 0; i < n; i++ {
		out[i] = all[perm[i]]
	}
	return out
}

// Run scores every candidate on series and refits the best one on the full
// series. A candidate that fails to fit is recorded and skipped; the
// search fails only when every candidate does. Ties keep the first-seen
// candidate.
func (j *TuningJob) Run(ctx context.Context, series Series) (*TuningResult, error) {
	folds, err := j.cv.Folds(series.Len())
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := &TuningResult{Score: math.Inf(1)}
	var lastErr error
	for _, params := range j.candidates() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		trial := Trial{Params: params, Folds: len(folds)}
		score, err := j.score(ctx, series, folds, params)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			trial.Error = err.Error()
			lastErr = err
			j.logger.Warn("candidate failed", slog.String("params", params.String()), slog.String("error", err.Error()))
		} else {
			trial.Score = score
			if score < result.Score {
				result.Best, result.Score = params, score
			}
			j.logger.Debug("candidate scored", slog.String("params", params.String()), slog.Float64("mae", score))
		}
		result.Trials = append(result.Trials, trial)
	}

	if result.Best == nil {
		return nil, &model.FitFailure{Model: "tuning", Err: fmt.Errorf("every candidate failed, last: %w", lastErr)}
	}

	best, err := j.factory(result.Best)
	if err != nil {
		return nil, err
	}
	if err := best.Fit(ctx, series); err != nil {
		return nil, &model.FitFailure{Model: best.Kind(), Err: err}
	}
	result.Forecaster = best

	j.logger.Info("tuning completed",
		slog.String("mode", j.mode),
		slog.Int("candidates", len(result.Trials)),
		slog.Int("folds", len(folds)),
		slog.String("best", result.Best.String()),
		slog.Float64("mae", result.Score),
		slog.Duration("duration", time.Since(start)))
	return result, nil
}

func (j *TuningJob) score(ctx context.Context, series Series, folds []Fold, params Params) (float64, error) {
	var total float64
	for _, f := range folds {
		m, err := j.factory(params)
		if err != nil {
			return 0, err
		}
		if err := m.Fit(ctx, series.Slice(f.TrainStart, f.TrainEnd)); err != nil {
			return 0, err
		}
		test := series.Slice(f.TrainEnd, f.TestEnd)
		pred, err := m.Predict(ctx, HorizonFromSeries(test))
		if err != nil {
			return 0, err
		}
		metrics, err := Evaluate(test, pred)
		if err != nil {
			return 0, err
		}
		mae, _ := metrics.Get(MetricMAE)
		total += mae
	}
	return total / float64(len(folds)), nil
}
