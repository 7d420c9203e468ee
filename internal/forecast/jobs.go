package forecast

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sales-pipeline/internal/model"
)

// TrainingJob fits one forecaster on a training series.
type TrainingJob struct {
	model  Fitter
	train  Series
	logger *slog.Logger
}

func NewTrainingJob(f Fitter, train Series, logger *slog.Logger) *TrainingJob {
	return &TrainingJob{
		model:  f,
		train:  train,
		logger: logger.With(slog.String("component", "training_job"), slog.String("model", f.Kind())),
	}
}

// Run fits the model once. Capability errors are returned as is; any other
// fit error is wrapped in a FitFailure.
func (j *TrainingJob) Run(ctx context.Context) error {
	start := time.Now()
	j.logger.Info("training started", slog.Int("points", j.train.Len()), slog.String("params", j.model.Params().String()))

	if err := j.model.Fit(ctx, j.train); err != nil {
		if errors.Is(err, model.ErrCapability) || ctx.Err() != nil {
			return err
		}
		return &model.FitFailure{Model: j.model.Kind(), Err: err}
	}

	j.logger.Info("training completed", slog.Duration("duration", time.Since(start)))
	return nil
}

// Evaluate scores predictions against the held-out test partition.
func (j *TrainingJob) Evaluate(test, predictions Series) (Metrics, error) {
	m, err := Evaluate(test, predictions)
	if err != nil {
		return Metrics{}, err
	}
	attrs := make([]any, 0, len(m.scores))
	for _, name := range m.Names() {
		attrs = append(attrs, slog.Float64(name, m.scores[name]))
	}
	j.logger.Info("evaluation completed", attrs...)
	return m, nil
}

// InferenceJob forecasts with a trained handle.
type InferenceJob struct {
	model  Predictor
	logger *slog.Logger
}

// NewInferenceJob rejects handles that cannot predict or are not trained.
func NewInferenceJob(h Handle, logger *slog.Logger) (*InferenceJob, error) {
	p, ok := h.(Predictor)
	if !ok {
		return nil, &model.CapabilityError{Operation: "predict", State: h.State().String()}
	}
	if h.State() == StateUntrained {
		return nil, &model.CapabilityError{Operation: "predict", State: h.State().String()}
	}
	return &InferenceJob{
		model:  p,
		logger: logger.With(slog.String("component", "inference_job"), slog.String("model", h.Kind())),
	}, nil
}

// FromRegistry loads the model saved under id and wraps it in a job.
func FromRegistry(ctx context.Context, reg Registry, id string, logger *slog.Logger) (*InferenceJob, error) {
	p, err := reg.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	job, err := NewInferenceJob(p, logger)
	if err != nil {
		return nil, err
	}
	job.logger = job.logger.With(slog.String("model_id", id))
	return job, nil
}

// Model returns the underlying predictor.
func (j *InferenceJob) Model() Predictor { return j.model }

func (j *InferenceJob) Predict(ctx context.Context, h Horizon) (Series, error) {
	out, err := j.model.Predict(ctx, h)
	if err != nil {
		return Series{}, err
	}
	j.logger.Info("forecast produced", slog.Int("points", out.Len()))
	return out, nil
}
