package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/findoc/findoc/internal/app/config"
	appservices "github.com/findoc/findoc/internal/app/services"
	"github.com/findoc/findoc/internal/infrastructure/database"
	"github.com/findoc/findoc/pkg/logger"
)

func main() {
	log := logger.New()

	log.Info("Starting extraction worker")

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
	defer sm.Close()

	if err := sm.HealthCheck(); err != nil {
		log.Error("Service health check failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			workerLoop(ctx, sm, cfg, log, workerID)
		}(i)
	}

	log.Info("Worker started",
		"concurrency", cfg.Worker.Concurrency,
		"poll_interval", cfg.Worker.PollInterval,
		"job_timeout", cfg.Extraction.JobTimeout)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutdown signal received, stopping workers...")
	cancel()
	wg.Wait()
	log.Info("All workers stopped")
}

// workerLoop polls the job queue and hands each job to the extraction
// service, which owns status transitions and retry bookkeeping.
func workerLoop(ctx context.Context, sm *appservices.ServiceManager, cfg *config.Config, log *logger.Logger, workerID int) {
	log.Info("Worker loop started", "worker_id", workerID)

	ticker := time.NewTicker(cfg.Worker.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Worker loop stopping", "worker_id", workerID)
			return
		case <-ticker.C:
			processNext(ctx, sm, cfg, log, workerID)
		}
	}
}

func processNext(ctx context.Context, sm *appservices.ServiceManager, cfg *config.Config, log *logger.Logger, workerID int) {
	job, err := sm.Repositories.JobRepo.GetNextJob(ctx)
	if err != nil {
		log.Error("Failed to fetch next job", "worker_id", workerID, "error", err)
		return
	}
	if job == nil {
		return
	}

	log.Info("Processing job",
		"worker_id", workerID,
		"job_id", job.ID,
		"job_type", job.JobType,
		"document_id", job.DocumentID,
		"attempt", job.Attempts+1)

	jobCtx, cancel := context.WithTimeout(ctx, cfg.Extraction.JobTimeout)
	defer cancel()

	if err := sm.ExtractionService.ProcessJob(jobCtx, job); err != nil {
		log.Error("Job failed", "worker_id", workerID, "job_id", job.ID, "error", err)
	}
}
