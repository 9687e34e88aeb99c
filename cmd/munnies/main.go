package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"munnies/internal/cloud"
	cloudmem "munnies/internal/cloud/memory"
	"munnies/internal/config"
	"munnies/internal/core"
	"munnies/internal/currency"
	"munnies/internal/events"
	apphttp "munnies/internal/http"
	applog "munnies/internal/log"
	"munnies/internal/persistence"
	"munnies/internal/relay"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent("munnies")
	applog.SetDefault(logger)

	logger.Info("Starting munnies")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Cloud sharing backend. Only the in-process backend exists today; the
	// switch keeps the seam for a remote one.
	var cloudClient cloud.Client
	switch cfg.CloudBackend {
	default:
		cloudClient = cloudmem.NewService(cfg.CloudUserID, cfg.CloudUserName)
		logger.Info("Initialized memory cloud backend", "user_id", cfg.CloudUserID)
	}

	bus := events.NewBus()
	defer bus.Close()

	manager := persistence.NewManager(cfg.PrivateDBPath, cfg.SharedDBPath, cloudClient, bus)
	defer manager.Close()

	startCtx, startCancel := context.WithCancel(context.Background())
	defer startCancel()

	if err := manager.WaitForStores(startCtx, cfg.StoreLoadTimeout); err != nil {
		logger.Error("Stores failed to load", "error", err, "timeout", cfg.StoreLoadTimeout)
		os.Exit(1)
	}
	logger.Info("Stores loaded",
		"private_path", cfg.PrivateDBPath,
		"shared_path", cfg.SharedDBPath)

	cur := currency.NewManager(startCtx, manager.Repository(core.ScopePrivate))

	if cfg.SeedSampleData {
		if err := seedSampleData(startCtx, manager); err != nil {
			logger.Error("Failed to seed sample data", "error", err)
			os.Exit(1)
		}
	}

	manager.Refresh(startCtx)

	// Remote change relay. The app stays usable without it; changes made on
	// other devices then only show up after a restart.
	var (
		relayClient *relay.Client
		processor   *relay.Processor
	)
	relayClient, err := relay.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Remote change relay unavailable, continuing without it",
			"error", err, "url", cfg.AMQPURL)
		relayClient = nil
	} else {
		defer relayClient.Close()
		processor = relay.NewProcessor(manager, bus)

		// Catch up on journaled changes missed while offline.
		for _, scope := range []core.Scope{core.ScopePrivate, core.ScopeShared} {
			if err := processor.ProcessHistory(startCtx, scope); err != nil {
				logger.Error("Startup history processing failed", "scope", scope, "error", err)
			}
		}
		logger.Info("Remote change relay ready",
			"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, manager, cur, bus)
	if err != nil {
		logger.Error("Failed to construct server", "error", err)
		os.Exit(1)
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		logger.Info("Starting munnies server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	if relayClient != nil {
		g.Go(func() error {
			err := relayClient.ConsumeRemoteChanges(gctx, processor.HandleRemoteChange)
			if err != nil && err != context.Canceled {
				// Relay loss is degraded service, not a fatal error.
				logger.Error("Remote change consumption failed", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
