package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blueoakmerch/merchops-backend/internal/automap"
	"github.com/blueoakmerch/merchops-backend/internal/links"
	"github.com/blueoakmerch/merchops-backend/internal/matching"
	"github.com/blueoakmerch/merchops-backend/internal/orderstore"
	"github.com/blueoakmerch/merchops-backend/pkg/config"
	"github.com/blueoakmerch/merchops-backend/pkg/db"
	"github.com/blueoakmerch/merchops-backend/pkg/logger"
	"github.com/blueoakmerch/merchops-backend/pkg/metrics"
	"github.com/blueoakmerch/merchops-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "automap"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	maxOrders := flag.Int("max-orders", 0, "cap on unlinked orders scanned this run (0 = all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "automap",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	orderRepo := orderstore.NewRepository(dbClient.DB())
	linkRepo := links.NewRepository(dbClient.DB())

	linkService, err := links.NewService(linkRepo, orderRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create link service", err)
		os.Exit(1)
	}

	matcher := matching.NewMatcher(matching.Config{
		AmountWeight:     cfg.Matching.AmountWeight,
		NameWeight:       cfg.Matching.NameWeight,
		DateWeight:       cfg.Matching.DateWeight,
		CandidateWindow:  cfg.Matching.CandidateWindow,
		MaxAmountRelDiff: cfg.Matching.MaxAmountRelDiff,
	})

	autoMapMetrics := metrics.NewAutoMapMetrics(prometheus.DefaultRegisterer)
	service, err := automap.NewService(orderRepo, linkService, matcher, automap.Policy{
		HighConfidence:  cfg.Matching.HighConfidenceThreshold,
		ReviewThreshold: cfg.Matching.ReviewThreshold,
		MarginEpsilon:   cfg.Matching.MarginEpsilon,
	}, autoMapMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create auto-map service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting auto-map batch")

	bounds := automap.Bounds{
		Concurrency: cfg.AutoMap.Concurrency,
		MaxOrders:   cfg.AutoMap.MaxOrders,
		TimeLimit:   cfg.AutoMap.TimeLimit,
	}
	if *maxOrders > 0 {
		bounds.MaxOrders = *maxOrders
	}

	summary, err := service.Run(ctx, bounds)
	if err != nil {
		logg.Error(ctx, "auto-map batch failed", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"scanned":         summary.Scanned,
		"auto_linked":     summary.AutoLinked,
		"pending_created": summary.PendingCreated,
		"left_unlinked":   summary.LeftUnlinked,
		"skipped":         summary.Skipped,
		"failed":          summary.Failed,
	})
	logg.Info(ctx, "auto-map batch complete")

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
