package main

import (
	"os"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/cli"
	applog "expenses/internal/log"
	"expenses/internal/reports"
	"expenses/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting report-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	exporter, err := reports.NewExporter(reports.NewEngine(repo), cfg.ReportsDir, reports.Format(cfg.ReportFormat))
	if err != nil {
		logger.Error("Failed to initialize report exporter", applog.FieldError, err)
		os.Exit(1)
	}

	var source worker.EventSource
	if cfg.EventsEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		source = client
		logger.Info("Following ledger events", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, reports refresh on interval only")
	}

	reportWorker := worker.NewReportWorker(exporter, repo, cfg.WorkerConcurrency)

	logger.Info("Report worker configured",
		"reports_dir", cfg.ReportsDir,
		"format", cfg.ReportFormat,
		"concurrency", cfg.WorkerConcurrency,
		"refresh_interval", cfg.RefreshInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	if err := reportWorker.Run(ctx, source, cfg.RefreshInterval); err != nil {
		logger.Error("Report worker stopped", applog.FieldError, err)
		repo.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Report worker stopped")
}
