package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"sales-pipeline/internal/api"
	"sales-pipeline/internal/api/handler"
	"sales-pipeline/internal/config"
	"sales-pipeline/internal/forecast"
	"sales-pipeline/internal/logging"
	"sales-pipeline/internal/pipeline"
	"sales-pipeline/internal/store"
	"sales-pipeline/pkg/router"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.OpenConfigured(ctx, cfg.Output)
	if err != nil {
		return err
	}
	if st == nil {
		return errors.New("the API needs a database: set output.dsn")
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := pipeline.NewMetrics(reg)
	if err != nil {
		return err
	}
	ingestor, err := pipeline.New(cfg, st, metrics, logger)
	if err != nil {
		return err
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

	ingestions := handler.NewIngestionHandler(ctx, ingestor, st, 0, logger)
	h := api.NewRouter(api.Handlers{
		Ingestions: ingestions,
		Forecasts:  handler.NewForecastHandler(svc, logger),
	}, reg, logger)

	err = router.Serve(ctx, cfg.Server.Addr, h, cfg.Server.ShutdownTimeout, logger)
	ingestions.Wait()
	return err
}
