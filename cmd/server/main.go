package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/findoc/findoc/internal/app/config"
	"github.com/findoc/findoc/internal/app/server"
	appservices "github.com/findoc/findoc/internal/app/services"
	"github.com/findoc/findoc/internal/infrastructure/database"
	"github.com/findoc/findoc/pkg/cron"
	"github.com/findoc/findoc/pkg/logger"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.GetDatabaseURL())
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	sm, err := appservices.NewServiceManager(cfg, db, log)
	if err != nil {
		log.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}

	srv, err := server.New(cfg, log, sm)
	if err != nil {
		log.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	// Report schedules run inside the API process
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var scheduleRunner *cron.Runner
	if cfg.Features.Schedules {
		scheduleRunner = cron.NewRunner(sm.ScheduleService, sm.CacheService, log, time.Minute)
		if err := scheduleRunner.Start(ctx); err != nil {
			log.Error("Failed to start schedule runner", "error", err)
			os.Exit(1)
		}
	}

	go func() {
		log.Info("Starting server", "port", cfg.Server.Port, "environment", cfg.Environment)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	cancel()
	if scheduleRunner != nil {
		scheduleRunner.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server shutdown complete")
}
