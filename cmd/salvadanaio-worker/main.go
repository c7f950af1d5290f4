package main

import (
	"context"
	"errors"
	"os"
	"time"

	"salvadanaio/internal/amqp"
	"salvadanaio/internal/analysis"
	"salvadanaio/internal/backend"
	"salvadanaio/internal/cli"
	"salvadanaio/internal/config"
	"salvadanaio/internal/log"
	"salvadanaio/internal/services"
	"salvadanaio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting salvadanaio-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	sheetsBackend, err := newAnalysisWriter(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize sheets backend", log.FieldError, err, "backend", cfg.SheetsBackend)
		os.Exit(1)
	}
	if sheetsBackend.Cleanup != nil {
		defer sheetsBackend.Cleanup()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	amqpClient, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	analyzer := analysis.NewAnalyzer(analysis.WithLogger(logger))
	snapshots := worker.NewSnapshotWorker(repo, analyzer, sheetsBackend.Writer, logger)

	schedulerConfig := services.DefaultSchedulerConfig()
	schedulerConfig.Interval = cfg.SchedulerInterval
	scheduler := services.NewContributionScheduler(repo, amqpClient, schedulerConfig, logger)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		cancel()
		if err := scheduler.Stop(ctx); err != nil {
			logger.Error("Scheduler shutdown error", log.FieldError, err)
		}
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start contribution scheduler", log.FieldError, err)
		os.Exit(1)
	}

	go func() {
		if err := amqpClient.ConsumeAnalysisRefresh(ctx, snapshots.HandleRefresh); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			cancel()
		}
	}()

	select {
	case <-shutdownCtx.Done():
		cli.WaitForShutdown(shutdownCtx, done)
	case <-ctx.Done():
		logger.Warn("Worker context cancelled")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		_ = scheduler.Stop(stopCtx)
	}
	logger.Info("Worker shutdown complete")
}

func newAnalysisWriter(cfg *config.Config, logger *log.Logger) (*backend.Result, error) {
	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return backend.NewFactory(logger).CreateWriter(ctx, backendConfig)
}
