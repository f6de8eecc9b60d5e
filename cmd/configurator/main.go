// w2f-config - Build-to-order PC configurator service.
// Copyright (c) 2025 dancrook1
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/dancrook1/w2f-config/internal/api"
	"github.com/dancrook1/w2f-config/internal/bootstrap"
	"github.com/dancrook1/w2f-config/internal/bus"
	"github.com/dancrook1/w2f-config/internal/cache"
	"github.com/dancrook1/w2f-config/internal/catalog"
	"github.com/dancrook1/w2f-config/internal/checkout"
	"github.com/dancrook1/w2f-config/internal/configurator"
	"github.com/dancrook1/w2f-config/internal/domain"
	"github.com/dancrook1/w2f-config/internal/pricing"
	"github.com/dancrook1/w2f-config/internal/repository"
	"github.com/dancrook1/w2f-config/internal/rules"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load configuration: single-node defaults, cluster preset on
	// request, environment overrides on top.
	cfg := domain.DefaultConfig()
	if os.Getenv("CONFIGURATOR_CLUSTER") == "true" {
		cfg = domain.ClusterConfig()
		slog.Info("running in cluster mode")
	}
	if err := envconfig.Process("configurator", cfg); err != nil {
		slog.Error("failed to process environment configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Logging)

	slog.Info("starting configurator",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Catalog with read-through product cache
	cat := catalog.New(repo, cacheImpl, cfg.Cache.LocalTTL)

	// Initialize Rule Engine
	engine, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	// Pricing tables and composer
	warranty := pricing.NewWarranty()
	composer := pricing.NewComposer(warranty, cfg.Pricing)

	// Orchestrating service
	svc := configurator.New(repo, cat, engine, composer, warranty, busImpl, cfg.Engine)

	// Seed an empty store before the initial reloads
	if _, err := bootstrap.Run(ctx, repo, cfg.SeedPath); err != nil {
		slog.Error("failed to seed store", "error", err)
		os.Exit(1)
	}

	// Load rules and warranty tables from the store. All of this can be
	// changed at runtime via the reload endpoints.
	loaded, err := svc.ReloadRules(ctx)
	if err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", loaded)

	if err := svc.ReloadWarranty(ctx); err != nil {
		slog.Error("failed to load warranty tables", "error", err)
		os.Exit(1)
	}
	slog.Info("warranty tables initialized", "brackets", len(warranty.Brackets()))

	// Order intake worker: consumes accepted configurations off the bus
	orderWorker := checkout.NewWorker(busImpl, repo, 24*time.Hour)
	if err := orderWorker.Start(); err != nil {
		slog.Error("failed to start order worker", "error", err)
		os.Exit(1)
	}
	slog.Info("order worker started")

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, svc, engine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("configurator is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop the order worker first so in-flight submissions drain
	if err := orderWorker.Stop(); err != nil {
		slog.Error("failed to stop order worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("configurator shutdown complete")
}

func setupLogger(cfg domain.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("              W2F CONFIGURATOR")
	fmt.Println("      Build-to-order compatibility engine")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET  /configurators/{id}                      - Configurator definition")
	fmt.Println("    POST /configurators/{id}/compatibility        - Check a configuration")
	fmt.Println("    POST /configurators/{id}/price                - Price a configuration")
	fmt.Println("    POST /configurators/{id}/options              - Filter all slot options")
	fmt.Println("    POST /configurators/{id}/slots/{slot}/options - Filter one slot")
	fmt.Println("    POST /configurators/{id}/submit               - Submit an order")
	fmt.Println("    POST /configurators/{id}/share                - Create a share token")
	fmt.Println("    GET  /orders/{id}                             - Get order by ID")
	fmt.Println("    GET  /rules                                   - List loaded rules")
	fmt.Println("    POST /rules                                   - Create a rule")
	fmt.Println("    POST /rules/reload                            - Hot-reload rules")
	fmt.Println("    POST /rules/preview                           - Preview an unsaved rule")
	fmt.Println("    GET  /warranty                                - Warranty pricing tables")
	fmt.Println("    GET  /health                                  - Health check")
	fmt.Println()
}
