package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sales-pipeline/internal/config"
	"sales-pipeline/internal/model"
	"sales-pipeline/internal/pipeline"
	"sales-pipeline/internal/store"
	"sales-pipeline/internal/validation"
)

// Column names of a resampled series when it is rendered as a batch.
const (
	SeriesTimeColumn  = "Date"
	SeriesValueColumn = "Sales"
)

// SeriesSource provides the daily sales series.
type SeriesSource interface {
	Series(ctx context.Context) (Series, error)
}

// FileSource reads a consolidated CSV or Excel file and resamples it daily.
type FileSource struct {
	Path        string
	TimeColumn  string
	ValueColumn string
	Layout      string
}

func (s *FileSource) Series(ctx context.Context) (Series, error) {
	loader, err := pipeline.LoaderFor(s.Path)
	if err != nil {
		return Series{}, err
	}
	b, err := loader.Load(ctx, s.Path)
	if err != nil {
		return Series{}, fmt.Errorf("failed to load %s: %w", s.Path, err)
	}
	return Resample(b, s.TimeColumn, s.ValueColumn, s.Layout)
}

// TableSource reads the yearly sales table and resamples it daily.
type TableSource struct {
	Store       *store.Store
	Table       string
	TimeColumn  string
	ValueColumn string
}

func (s *TableSource) Series(ctx context.Context) (Series, error) {
	times, values, err := s.Store.SalesSeries(ctx, s.Table, s.TimeColumn, s.ValueColumn)
	if err != nil {
		return Series{}, err
	}
	return ResampleDaily(times, values), nil
}

// NewSource prefers the configured data file and falls back to the sales
// table when no file is configured.
func NewSource(cfg *config.Config, st *store.Store) (SeriesSource, error) {
	fc := cfg.Forecast
	switch {
	case fc.DataPath != "":
		return &FileSource{Path: fc.DataPath, TimeColumn: fc.TimeColumn, ValueColumn: fc.ValueColumn, Layout: cfg.Output.TimeLayout}, nil
	case st != nil:
		return &TableSource{Store: st, Table: store.SalesTable(cfg.Output.Year), TimeColumn: fc.TimeColumn, ValueColumn: fc.ValueColumn}, nil
	default:
		return nil, &model.ConfigurationError{Key: "forecast.data_path", Reason: "no data file and no database configured"}
	}
}

// TrainReport summarizes a training or tuning run.
type TrainReport struct {
	ModelID     string        `json:"model_id"`
	Kind        string        `json:"kind"`
	Params      Params        `json:"params"`
	TrainPoints int           `json:"train_points"`
	TestPoints  int           `json:"test_points"`
	Metrics     Metrics       `json:"metrics"`
	Validation  string        `json:"validation,omitempty"`
	Trials      []Trial       `json:"trials,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Service runs the forecasting jobs end to end: load, resample, split,
// fit, evaluate, persist and predict.
type Service struct {
	cfg       config.ForecastConfig
	source    SeriesSource
	registry  Registry
	validator *validation.OutputValidator
	logger    *slog.Logger
}

func NewService(cfg config.ForecastConfig, source SeriesSource, registry Registry, logger *slog.Logger) (*Service, error) {
	v, err := validation.NewOutputValidator(validation.SeriesRow{}, validation.DefaultSampleSize, logger)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:       cfg,
		source:    source,
		registry:  registry,
		validator: v,
		logger:    logger.With(slog.String("component", "forecast_service")),
	}, nil
}

// split loads the series and splits it. Schema problems in the training
// sample are reported, not fatal.
func (s *Service) split(ctx context.Context) (train, test Series, report string, err error) {
	series, err := s.source.Series(ctx)
	if err != nil {
		return Series{}, Series{}, "", err
	}
	splitter, err := NewTimeSeriesSplitter(s.cfg.TestFraction)
	if err != nil {
		return Series{}, Series{}, "", err
	}
	train, test, err = splitter.Split(series)
	if err != nil {
		return Series{}, Series{}, "", err
	}
	if _, verr := s.validator.Validate(train.Batch("train", SeriesTimeColumn, SeriesValueColumn)); verr != nil {
		report = verr.JSON()
	}
	s.logger.Info("series prepared",
		slog.Int("points", series.Len()),
		slog.Int("train", train.Len()),
		slog.Int("test", test.Len()))
	return train, test, report, nil
}

// Train fits the configured model, scores it on the test partition and
// saves it under the configured model id.
func (s *Service) Train(ctx context.Context) (*TrainReport, error) {
	start := time.Now()
	train, test, report, err := s.split(ctx)
	if err != nil {
		return nil, err
	}
	m, err := New(s.cfg.Model.Kind, Params(s.cfg.Model.Params))
	if err != nil {
		return nil, err
	}

	job := NewTrainingJob(m, train, s.logger)
	if err := job.Run(ctx); err != nil {
		return nil, err
	}
	pred, err := m.Predict(ctx, HorizonFromSeries(test))
	if err != nil {
		return nil, err
	}
	metrics, err := job.Evaluate(test, pred)
	if err != nil {
		return nil, err
	}
	if err := s.registry.Save(ctx, s.cfg.ModelID, m); err != nil {
		return nil, err
	}

	return &TrainReport{
		ModelID:     s.cfg.ModelID,
		Kind:        m.Kind(),
		Params:      m.Params(),
		TrainPoints: train.Len(),
		TestPoints:  test.Len(),
		Metrics:     metrics,
		Validation:  report,
		Duration:    time.Since(start),
	}, nil
}

// Tune searches the configured grid on the training partition, scores the
// refit winner on the test partition and saves it.
func (s *Service) Tune(ctx context.Context) (*TrainReport, error) {
	start := time.Now()
	train, test, report, err := s.split(ctx)
	if err != nil {
		return nil, err
	}
	factory, err := NewFactory(s.cfg.Model.Kind, Params(s.cfg.Model.Params))
	if err != nil {
		return nil, err
	}
	cv, err := NewCrossValidator(s.cfg.Tuning.CV)
	if err != nil {
		return nil, err
	}
	opts := TuningOptions{NIter: s.cfg.Tuning.NIter, Seed: s.cfg.Tuning.Seed}
	job, err := NewTuningJob(factory, GridFromConfig(s.cfg.Tuning.Grid), cv, s.cfg.Tuning.Mode, opts, s.logger)
	if err != nil {
		return nil, err
	}

	result, err := job.Run(ctx, train)
	if err != nil {
		return nil, err
	}
	pred, err := result.Forecaster.Predict(ctx, HorizonFromSeries(test))
	if err != nil {
		return nil, err
	}
	metrics, err := Evaluate(test, pred)
	if err != nil {
		return nil, err
	}
	if err := s.registry.Save(ctx, s.cfg.ModelID, result.Forecaster); err != nil {
		return nil, err
	}

	return &TrainReport{
		ModelID:     s.cfg.ModelID,
		Kind:        result.Forecaster.Kind(),
		Params:      result.Forecaster.Params(),
		TrainPoints: train.Len(),
		TestPoints:  test.Len(),
		Metrics:     metrics,
		Validation:  report,
		Trials:      result.Trials,
		Duration:    time.Since(start),
	}, nil
}

// Forecast predicts h with the model saved under id.
func (s *Service) Forecast(ctx context.Context, id string, h Horizon) (Series, error) {
	job, err := FromRegistry(ctx, s.registry, id, s.logger)
	if err != nil {
		return Series{}, err
	}
	return job.Predict(ctx, h)
}

// ForecastTest predicts the timestamps of the test partition with the
// model saved under id.
func (s *Service) ForecastTest(ctx context.Context, id string) (Series, error) {
	_, test, _, err := s.split(ctx)
	if err != nil {
		return Series{}, err
	}
	return s.Forecast(ctx, id, HorizonFromSeries(test))
}

// Write exports a forecast as a Date,Sales CSV file.
func (s *Service) Write(ctx context.Context, forecast Series, path string) (model.ExportResult, error) {
	exporter := &pipeline.CSVExporter{Path: path, TimeLayout: time.DateOnly}
	res := exporter.Export(ctx, forecast.Batch("forecast", SeriesTimeColumn, SeriesValueColumn))
	if !res.Success {
		return res, fmt.Errorf("failed to write forecast: %s", res.Error)
	}
	s.logger.Info("forecast written", slog.String("path", path), slog.Int("points", res.RecordCount))
	return res, nil
}
