// Package main provides the entry point for the API server and retention scheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/narvanalabs/logkeeper/internal/api"
	"github.com/narvanalabs/logkeeper/internal/auth"
	"github.com/narvanalabs/logkeeper/internal/cleanup"
	"github.com/narvanalabs/logkeeper/internal/logs"
	"github.com/narvanalabs/logkeeper/internal/shutdown"
	"github.com/narvanalabs/logkeeper/internal/store/driver"
	"github.com/narvanalabs/logkeeper/pkg/config"
	"github.com/narvanalabs/logkeeper/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Default().Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(logger.ParseLevel(cfg.LogLevel), cfg.LogJSON).WithComponent("api")

	// Initialize store
	st, err := driver.Open(cfg.Store, log.Logger)
	if err != nil {
		log.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	if err := driver.Migrate(context.Background(), st); err != nil {
		log.Error("failed to migrate store", "error", err)
		st.Close()
		os.Exit(1)
	}

	// Live tails see every entry written through the API.
	broker := logs.NewBroker(log.Logger)
	published := logs.Publishing(st, broker)

	authService := auth.NewService(&auth.Config{
		JWTSecret:   []byte(cfg.JWTSecret),
		TokenExpiry: cfg.JWTExpiry,
	}, log.Logger)

	purgerOpts := []cleanup.PurgerOption{
		cleanup.WithBatchSize(cfg.Retention.BatchSize),
		cleanup.WithMaxIterations(cfg.Retention.MaxIterations),
	}
	if cfg.Retention.SingleBatch {
		purgerOpts = append(purgerOpts, cleanup.WithSingleBatch())
	}
	cleanupLog := log.WithComponent("cleanup").Logger
	cleanupService := cleanup.NewService(
		published,
		cleanup.NewPurger(published, cleanupLog, purgerOpts...),
		cleanup.Policy{DefaultDays: cfg.Retention.DefaultDays},
		cleanupLog,
	)

	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)
	coordinator.Register(shutdown.NewCloserComponent("store", st))

	deps := api.Deps{
		Store:   published,
		Auth:    authService,
		Cleanup: cleanupService,
		Broker:  broker,
	}

	if cfg.Retention.Enabled {
		scheduler, err := cleanup.NewScheduler(cleanupService, cleanup.SchedulerConfig{
			Schedule:   cfg.Retention.Schedule,
			Timezone:   cfg.Retention.Timezone,
			RunTimeout: cfg.Retention.RunTimeout,
		}, cleanupLog)
		if err != nil {
			log.Error("failed to create retention scheduler", "error", err)
			st.Close()
			os.Exit(1)
		}
		scheduler.Start()
		coordinator.Register(shutdown.NewFuncComponent("scheduler", scheduler.Stop))
		deps.Scheduler = scheduler
	} else {
		log.Warn("scheduled retention disabled")
	}

	server := api.NewServer(cfg, deps, log.Logger)
	httpServer := server.HTTPServer(fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort))
	coordinator.Register(shutdown.NewHTTPServerComponent("http", httpServer))

	go func() {
		log.Info("starting API server",
			"addr", httpServer.Addr,
			"store", cfg.Store.Driver,
			"retention_days", cfg.Retention.DefaultDays,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			coordinator.Shutdown()
		}
	}()

	go coordinator.WaitForSignal()
	coordinator.Wait()

	log.Info("server stopped")
	os.Exit(coordinator.ExitCode())
}
