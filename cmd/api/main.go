package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blueoakmerch/merchops-backend/api/routes"
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
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	autoMapService, err := automap.NewService(orderRepo, linkService, matcher, automap.Policy{
		HighConfidence:  cfg.Matching.HighConfidenceThreshold,
		ReviewThreshold: cfg.Matching.ReviewThreshold,
		MarginEpsilon:   cfg.Matching.MarginEpsilon,
	}, autoMapMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create auto-map service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, linkService, autoMapService, orderRepo),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
