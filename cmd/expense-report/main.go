package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/cli"
	"expenses/internal/config"
	applog "expenses/internal/log"
	"expenses/internal/reports"
	"expenses/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	var publisher services.Publisher
	if cfg.EventsEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, ledger events disabled", applog.FieldError, err)
		} else {
			publisher = client
		}
	}

	service := services.NewLedgerService(repo, publisher, cfg.PublishTimeout)
	defer service.Close()

	a, err := newApp(cfg, repo, service, os.Stdout)
	if err != nil {
		logger.Error("Failed to initialize reports", applog.FieldError, err)
		os.Exit(1)
	}

	if err := a.run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		service.Close()
		os.Exit(1)
	}
}

func newApp(cfg *config.Config, repo ledgerStore, service ledgerMutator, out io.Writer) (*app, error) {
	engine := reports.NewEngine(repo)
	exporter, err := reports.NewExporter(engine, cfg.ReportsDir, reports.Format(cfg.ReportFormat))
	if err != nil {
		return nil, err
	}
	return &app{
		store:      repo,
		service:    service,
		engine:     engine,
		exporter:   exporter,
		reportsDir: cfg.ReportsDir,
		now:        time.Now,
		out:        out,
	}, nil
}
