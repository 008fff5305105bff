package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/formosa-data/formosa/internal/app"
	"github.com/formosa-data/formosa/internal/disclosure"
	"github.com/formosa-data/formosa/internal/dividend"
	"github.com/formosa-data/formosa/internal/insiders"
	"github.com/formosa-data/formosa/internal/mops"
	"github.com/formosa-data/formosa/internal/observability"
	"github.com/formosa-data/formosa/internal/platform/cache"
	"github.com/formosa-data/formosa/internal/platform/db"
	"github.com/formosa-data/formosa/internal/report"
	"github.com/formosa-data/formosa/internal/revenue"
	"github.com/formosa-data/formosa/internal/taxonomy"
	"github.com/formosa-data/formosa/internal/xbrl"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, hot cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	mopsClient, err := mops.NewClient(mops.ClientConfig{
		BaseURL:     cfg.MOPSBaseURL,
		MinInterval: cfg.MOPSMinInterval,
		Timeout:     cfg.MOPSTimeout,
		CABundle:    cfg.MOPSCABundle,
	}, logger, metrics)
	if err != nil {
		logger.Error("build mops client", slog.Any("error", err))
		os.Exit(1)
	}

	taxonomyManager, err := taxonomy.New(cfg.TaxonomyDir, app.TaxonomyFetcher{Client: mopsClient}, logger)
	if err != nil {
		logger.Error("build taxonomy manager", slog.Any("error", err))
		os.Exit(1)
	}

	parser := xbrl.NewParser(logger)

	reportRepo := report.NewRepository(dbpool)
	reportService := report.NewService(reportRepo, mopsClient, parser, taxonomyManager, redisClient, logger, metrics)
	reportHandler := report.NewHandler(logger, reportService)

	revenueRepo := revenue.NewRepository(dbpool)
	revenueService := revenue.NewService(revenueRepo, mopsClient, logger, metrics)
	revenueHandler := revenue.NewHandler(logger, revenueService)

	insidersRepo := insiders.NewRepository(dbpool)
	insidersService := insiders.NewService(insidersRepo, mopsClient, logger, metrics)
	insidersHandler := insiders.NewHandler(logger, insidersService)

	dividendRepo := dividend.NewRepository(dbpool)
	dividendService := dividend.NewService(dividendRepo, mopsClient, logger, metrics)
	dividendHandler := dividend.NewHandler(logger, dividendService)

	disclosureRepo := disclosure.NewRepository(dbpool)
	disclosureService := disclosure.NewService(disclosureRepo, mopsClient, logger, metrics)
	disclosureHandler := disclosure.NewHandler(logger, disclosureService)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		ReportHandler:     reportHandler,
		RevenueHandler:    revenueHandler,
		InsidersHandler:   insidersHandler,
		DividendHandler:   dividendHandler,
		DisclosureHandler: disclosureHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
