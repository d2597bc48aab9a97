package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/export/sheets"
	applog "fintrack/internal/log"
	"fintrack/internal/ports"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentWorker)
	ctx := context.Background()

	if !cfg.AMQPEnabled() {
		logger.ErrorContext(ctx, "AMQP_URL is required for the worker")
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	if backendCfg.Type == backend.MemoryBackend {
		logger.WarnContext(ctx, "Worker is using the memory backend; it does not share data with the server")
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize backend", "error", err)
		os.Exit(1)
	}

	var exporter ports.Exporter
	if cfg.SheetsEnabled() {
		exp, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
		})
		if err != nil {
			logger.ErrorContext(ctx, "Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter = exp
		logger.InfoContext(ctx, "Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.InfoContext(ctx, "Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	// No publisher: the worker exports after its own imports directly.
	transactions := services.NewTransactionService(res.Store)
	w := worker.New(transactions, services.NewImportService(transactions), exporter)

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := client.Close(); err != nil {
			logger.WarnContext(ctx, "Failed to close AMQP client", "error", err)
		}
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.WarnContext(ctx, "Failed to close backend", "error", err)
			}
		}
	})

	logger.InfoContext(ctx, "Starting fintrack-worker",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"export_enabled", exporter != nil)
	if err := client.Consume(runCtx, w.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorContext(ctx, "Message consumption failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.InfoContext(ctx, "Worker stopped gracefully")
}
