package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paysync/internal/bootstrap"
	"paysync/internal/config"
	cronpkg "paysync/internal/cron"
	"paysync/internal/form"
	"paysync/internal/middleware"
	"paysync/internal/payment"
	"paysync/internal/pkg/httpclient"
	"paysync/internal/repository"
	"paysync/internal/router"
)

func main() {
	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger, err := newLogger(cfg.Server)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.MigrateAndSeed(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}
	if hasArg("--bootstrap-db") {
		logger.Info("Schema migration and default seed completed")
		return
	}

	// --- Payments ---
	orders := repository.NewOrderRepository(db)
	settings := repository.NewSettingRepository(db)
	reference := repository.NewReferenceRepository(db)

	transport := httpclient.New(cfg.Stripe.HTTPTimeout)
	backends := payment.NewStripeBackends(transport.HTTPClient(), cfg.Stripe.MaxNetworkRetries, logger)
	registry := payment.NewStripeRegistry(payment.Dependencies{
		Gateways:  payment.StripeGatewayFactory(backends),
		Orders:    orders,
		Reference: reference,
		BaseURL:   cfg.Server.BaseURL,
		Logger:    logger,
	})
	payments := payment.NewService(registry, orders, settings, logger)

	// --- Webhook Deduper (Redis with in-memory fallback) ---
	deduper, dedupeErr := middleware.NewEventDeduper(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		cfg.Redis.DedupTTL,
	)
	if dedupeErr != nil {
		logger.Warn("Redis unavailable for webhook dedup, using in-memory fallback", zap.Error(dedupeErr))
	}

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	// --- Routes ---
	router.Setup(e, router.Deps{
		Payments: payments,
		Renderer: form.NewRenderer(),
		Deduper:  deduper,
		Logger:   logger,
		APIKey:   cfg.API.Key,
	})

	// --- Cron Scheduler ---
	scheduler := cronpkg.New(cfg.Reconcile, payments, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting paysync server",
			zap.String("addr", addr),
			zap.Strings("providers", registry.Aliases()))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop cron
	ctx := scheduler.Stop()
	<-ctx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(cfg config.ServerConfig) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}
