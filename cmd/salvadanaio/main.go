package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"salvadanaio/internal/amqp"
	"salvadanaio/internal/analysis"
	"salvadanaio/internal/cache"
	"salvadanaio/internal/cli"
	apphttp "salvadanaio/internal/http"
	"salvadanaio/internal/log"
	"salvadanaio/internal/services"
)

const amqpConnectTimeout = 15 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Refresh messages are optional: without a broker the API still serves
	// analyses and records contributions.
	var (
		publisher  services.RefreshPublisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), amqpConnectTimeout)
		client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		cancel()
		if err != nil {
			logger.Warn("AMQP unavailable, refresh messages disabled", log.FieldError, err)
		} else {
			amqpClient = client
			publisher = client
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	results := cache.NewLRUCache[*analysis.Result](cfg.AnalysisCacheSize, cfg.AnalysisCacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(results)
	cacheManager.StartCleanup(time.Minute)

	svc := services.NewAnalysisService(services.AnalysisDeps{
		Goals:         repo,
		Contributions: repo,
		Publisher:     publisher,
		Analyzer:      analysis.NewAnalyzer(analysis.WithLogger(logger)),
		Cache:         results,
		Concurrency:   cfg.SummaryConcurrency,
		Logger:        logger,
	})

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:                 logger,
		Ready:                  repo.Ping,
		WriteRequestsPerMinute: cfg.WriteRateLimit,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			amqpClient.Close()
		}
	})

	logger.Info("Starting salvadanaio server", "port", cfg.Port, "amqp", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
