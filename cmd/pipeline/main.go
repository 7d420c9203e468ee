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

	"github.com/prometheus/client_golang/prometheus"

	"sales-pipeline/internal/config"
	"sales-pipeline/internal/logging"
	"sales-pipeline/internal/pipeline"
	"sales-pipeline/internal/store"
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
	if st != nil {
		defer st.Close()
	}

	metrics, err := pipeline.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	ingestor, err := pipeline.New(cfg, st, metrics, logger)
	if err != nil {
		return err
	}

	report, err := ingestor.Run(ctx)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(report)
	}
	if err != nil {
		return fmt.Errorf("ingestion run failed: %w", err)
	}
	logger.Info("ingestion run completed",
		slog.String("run_id", report.RunID),
		slog.Int("processed", len(report.Processed())),
		slog.Int("quarantined", len(report.Quarantined())),
		slog.Int("rows", report.Rows),
		slog.Bool("no_op", report.NoOp))
	return nil
}
