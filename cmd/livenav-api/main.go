// README: Entry point; loads config, wires planner, guidance and optional stores, then serves HTTP.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"livenav/internal/config"
	httptransport "livenav/internal/http"
	"livenav/internal/http/handlers"
	"livenav/internal/infra"
	"livenav/internal/maps"
	"livenav/internal/modules/guidance"
	"livenav/internal/modules/journal"
	"livenav/internal/modules/location"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := infra.NewLogger(infra.LogOptions{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Auth.FirebaseProjectID, cfg.Auth.CredentialsFile)
	if err != nil {
		return fmt.Errorf("firebase init: %w", err)
	}
	if verifier == nil {
		logger.Warn("auth disabled: no firebase project configured")
	}

	planner, err := newPlanner(cfg.Planner)
	if err != nil {
		return err
	}

	var (
		routeJournal guidance.Journal
		events       handlers.EventLister
	)
	if cfg.DB.DSN != "" {
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		store := journal.NewStore(pool)
		routeJournal, events = store, store
		logger.Info("route journal enabled")
	}

	var mirror location.Mirror
	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		mirror = location.NewStore(rdb)
		logger.Info("position mirror enabled", zap.String("addr", cfg.Redis.Addr))
	}

	locationSvc := location.NewService(mirror, logger.Named("location"))
	if err := locationSvc.Restore(ctx); err != nil {
		logger.Warn("restoring latest fix failed", zap.Error(err))
	}

	guidanceSvc := guidance.NewService(guidanceConfig(cfg), planner, routeJournal, logger.Named("guidance"))

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httptransport.NewRouter(httptransport.RouterDeps{
		Guidance: guidanceSvc,
		Location: locationSvc,
		Events:   events,
		Verifier: verifier,
		Logger:   logger.Named("http"),
	})

	return httptransport.NewServer(cfg.HTTP.Addr, router, logger).Run(ctx)
}

func newPlanner(cfg config.PlannerConfig) (guidance.Planner, error) {
	var p maps.Planner
	switch cfg.Provider {
	case "google":
		svc, err := maps.NewRouteService(cfg.GoogleAPIKey, cfg.Language, cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("google maps client: %w", err)
		}
		p = svc
	default:
		p = maps.NewOSRMProvider(cfg.OSRMURL, cfg.OSRMProfile, cfg.OSRMGeometry, &http.Client{Timeout: cfg.Timeout})
	}
	if cfg.CacheSize > 0 {
		p = maps.NewCachedPlanner(p, cfg.CacheSize, cfg.CacheTTL)
	}
	return p, nil
}

func guidanceConfig(cfg config.Config) guidance.Config {
	g := cfg.Guidance
	return guidance.Config{
		RerouteThresholdM: g.RerouteThresholdM,
		PassedBufferM:     g.PassedBufferM,
		DensifyStepM:      g.DensifyStepM,
		Window:            g.Window,
		ProgressEpsilonM:  g.ProgressEpsilonM,
		NoProgressLimit:   g.NoProgressLimit,
		ManeuverBufferM:   g.ManeuverBufferM,
		RerouteEnabled:    g.RerouteEnabled,
		PlannerTimeout:    cfg.Planner.Timeout,
		RerouteBackoff:    g.RerouteBackoff,
	}
}
