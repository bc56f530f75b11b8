// Command summary-exporter mirrors the dashboard of a shared record store
// into a Google Sheets spreadsheet whenever the data changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"budgetdash/internal/amqp"
	"budgetdash/internal/cli"
	"budgetdash/internal/config"
	"budgetdash/internal/dashboard"
	"budgetdash/internal/export"
	"budgetdash/internal/export/sheets"
	"budgetdash/internal/feed"
	"budgetdash/internal/log"
	"budgetdash/internal/metrics"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentExport)
	logger.Info("Starting summary-exporter")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateExporter)
	ctx, stop := cli.SignalContext()
	err := run(ctx, logger, cfg)
	stop()
	if err != nil {
		logger.Error("summary-exporter stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("summary-exporter stopped")
}

// run exports until ctx is done and closes what it opened before returning.
func run(ctx context.Context, logger *log.Logger, cfg *config.Config) error {
	loc := cfg.Location()
	m := metrics.New()

	be, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
			return
		}
		logger.Info("Backend closed", "backend", be.Type)
	}()

	svc, err := sheets.NewService(ctx, sheets.Credentials{
		JSON: cfg.GoogleServiceAccountJSON,
		File: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	writer, err := sheets.NewWriter(svc, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, logger)
	if err != nil {
		return fmt.Errorf("initialize sheet writer: %w", err)
	}

	// The exporter never writes records, so the hub is only fed by other
	// processes. Without AMQP it falls back to the export interval alone.
	hub := feed.NewHub()
	amqpClient := cli.ConnectAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	view := dashboard.NewView(feed.NewSubscriber(be.Store, hub, logger), loc, logger, m)
	loop := export.NewLoop(view, writer, cfg.ExportInterval, loc, logger, m)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return view.Run(gctx) })
	g.Go(func() error { return loop.Run(gctx) })
	if amqpClient != nil {
		g.Go(func() error { return amqpClient.Run(gctx, amqp.Forward(hub)) })
	} else {
		g.Go(func() error { return pollStore(gctx, hub, cfg.ExportInterval) })
	}

	logger.Info("summary-exporter running",
		"spreadsheet_id", cfg.GoogleSpreadsheetID, "interval", cfg.ExportInterval, "backend", be.Type)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
