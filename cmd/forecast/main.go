package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"sales-pipeline/internal/config"
	"sales-pipeline/internal/forecast"
	"sales-pipeline/internal/logging"
	"sales-pipeline/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	job := flag.String("job", "train", "job to run: train | tune | infer")
	modelID := flag.String("model-id", "", "model id to save or load (defaults to forecast.model_id)")
	horizon := flag.Int("horizon", -1, "days to forecast for infer; 0 predicts the test partition (defaults to forecast.horizon)")
	flag.Parse()

	if err := run(*configPath, *job, *modelID, *horizon); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, job, modelID string, horizon int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if modelID != "" {
		cfg.Forecast.ModelID = modelID
	}
	if horizon >= 0 {
		cfg.Forecast.Horizon = horizon
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st *store.Store
	if cfg.Forecast.DataPath == "" {
		if st, err = store.OpenConfigured(ctx, cfg.Output); err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}
	}
	source, err := forecast.NewSource(cfg, st)
	if err != nil {
		return err
	}
	registry, err := forecast.NewRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	svc, err := forecast.NewService(cfg.Forecast, source, registry, logger)
	if err != nil {
		return err
	}

	var out any
	switch job {
	case "train":
		out, err = svc.Train(ctx)
	case "tune":
		out, err = svc.Tune(ctx)
	case "infer":
		out, err = infer(ctx, svc, cfg.Forecast)
	default:
		return fmt.Errorf("unknown job %q (want train, tune or infer)", job)
	}
	if err != nil {
		return fmt.Errorf("%s job failed: %w", job, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func infer(ctx context.Context, svc *forecast.Service, cfg config.ForecastConfig) (forecast.Series, error) {
	var (
		pred forecast.Series
		err  error
	)
	if cfg.Horizon > 0 {
		pred, err = svc.Forecast(ctx, cfg.ModelID, forecast.Horizon{Steps: cfg.Horizon})
	} else {
		pred, err = svc.ForecastTest(ctx, cfg.ModelID)
	}
	if err != nil {
		return forecast.Series{}, err
	}
	if cfg.OutputPath != "" {
		if _, err := svc.Write(ctx, pred, cfg.OutputPath); err != nil {
			return forecast.Series{}, err
		}
	}
	return pred, nil
}
