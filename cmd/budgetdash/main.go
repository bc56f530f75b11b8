package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"budgetdash/internal/amqp"
	"budgetdash/internal/cache"
	"budgetdash/internal/cli"
	"budgetdash/internal/config"
	"budgetdash/internal/dashboard"
	"budgetdash/internal/feed"
	apphttp "budgetdash/internal/http"
	"budgetdash/internal/log"
	"budgetdash/internal/metrics"
	"budgetdash/internal/middleware/ratelimit"
	"budgetdash/internal/services"
	"budgetdash/internal/store"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting budgetdash")

	cfg := cli.LoadAndValidateConfig(logger, nil)
	ctx, stop := cli.SignalContext()
	err := run(ctx, logger, cfg)
	stop()
	if err != nil {
		logger.Error("budgetdash stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("budgetdash stopped")
}

// run serves until ctx is done and closes what it opened before returning.
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

	hub := feed.NewHub()
	notifiers := store.Notifiers{hub}
	amqpClient := cli.ConnectAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
		notifiers = append(notifiers, amqpClient)
	}
	st := store.NewNotifying(be.Store, notifiers)

	view := dashboard.NewView(feed.NewSubscriber(st, hub, logger), loc, logger, m)
	caches := cache.NewManager(logger)
	caches.Register(view.MonthCache())

	limit := ratelimit.DefaultConfig()
	limit.RequestsPerMinute = cfg.RateLimitPerMinute

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		View:       view,
		Bills:      services.NewBillService(st, loc, logger, m),
		Expenses:   services.NewExpenseService(st, logger),
		Budgets:    services.NewBudgetService(st, logger),
		References: services.NewReferenceService(st, logger),
		Metrics:    m,
		Logger:     logger,
		Location:   loc,
		RateLimit:  limit,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return view.Run(gctx) })
	g.Go(func() error { return caches.Run(gctx, cfg.CacheCleanupInterval) })
	g.Go(func() error { return srv.Serve(gctx) })
	if amqpClient != nil {
		// Writes from other processes reach local watchers through the hub.
		g.Go(func() error { return amqpClient.Run(gctx, amqp.Forward(hub)) })
	}

	logger.Info("budgetdash running",
		"port", cfg.Port, "backend", be.Type, "timezone", loc.String(), "amqp_enabled", amqpClient != nil)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
