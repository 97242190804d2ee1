package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/findoc/findoc/internal/domain/services"
	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/findoc/findoc/pkg/logger"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const defaultRefreshInterval = time.Minute

// ReportGenerator is the slice of ScheduleService the runner needs.
type ReportGenerator interface {
	ListActive(ctx context.Context) ([]models.ReportSchedule, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.ReportSchedule, error)
	GenerateReport(ctx context.Context, schedule *models.ReportSchedule) (string, error)
}

// Runner drives report schedules through a cron engine. Entries are synced
// from the database periodically, so schedules created or deactivated at
// runtime take effect without a restart.
type Runner struct {
	generator ReportGenerator
	cache     services.CacheService
	logger    *logger.Logger
	engine    *cron.Cron
	refresh   time.Duration

	mu      sync.Mutex
	entries map[uuid.UUID]scheduleEntry
	// per-schedule overlap guard: a run that is still going when the next
	// tick fires makes the tick skip, not queue
	running sync.Map // uuid.UUID -> *sync.Mutex
}

type scheduleEntry struct {
	id       cron.EntryID
	cronExpr string
	tenantID uuid.UUID
}

func NewRunner(generator ReportGenerator, cache services.CacheService, log *logger.Logger, refresh time.Duration) *Runner {
	if refresh <= 0 {
		refresh = defaultRefreshInterval
	}
	return &Runner{
		generator: generator,
		cache:     cache,
		logger:    log,
		engine:    cron.New(),
		refresh:   refresh,
		entries:   make(map[uuid.UUID]scheduleEntry),
	}
}

// Start loads active schedules, starts the cron engine, and keeps entries in
// sync until the context is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.Sync(ctx); err != nil {
		return err
	}
	r.engine.Start()

	go func() {
		ticker := time.NewTicker(r.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Sync(ctx); err != nil {
					r.logger.Error("failed to sync report schedules", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop halts the cron engine and waits for in-flight runs to finish.
func (r *Runner) Stop() {
	<-r.engine.Stop().Done()
}

// Sync reconciles cron entries with the active schedules in the database.
func (r *Runner) Sync(ctx context.Context) error {
	schedules, err := r.generator.ListActive(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[uuid.UUID]bool, len(schedules))
	for _, schedule := range schedules {
		seen[schedule.ID] = true

		existing, ok := r.entries[schedule.ID]
		if ok && existing.cronExpr == schedule.CronExpr {
			continue
		}
		if ok {
			r.engine.Remove(existing.id)
		}

		scheduleID := schedule.ID
		tenantID := schedule.TenantID
		entryID, err := r.engine.AddFunc(schedule.CronExpr, func() {
			r.run(scheduleID, tenantID)
		})
		if err != nil {
			r.logger.Error("failed to register schedule",
				"schedule_id", schedule.ID, "cron_expr", schedule.CronExpr, "error", err)
			delete(r.entries, schedule.ID)
			continue
		}
		r.entries[schedule.ID] = scheduleEntry{id: entryID, cronExpr: schedule.CronExpr, tenantID: tenantID}
	}

	for id, entry := range r.entries {
		if !seen[id] {
			r.engine.Remove(entry.id)
			delete(r.entries, id)
		}
	}

	return nil
}

// EntryCount reports how many schedules are currently registered.
func (r *Runner) EntryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Runner) run(scheduleID, tenantID uuid.UUID) {
	lockAny, _ := r.running.LoadOrStore(scheduleID, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	if !lock.TryLock() {
		r.logger.Warn("skipping schedule run, previous run still in progress", "schedule_id", scheduleID)
		return
	}
	defer lock.Unlock()

	ctx := context.Background()

	// Cross-instance guard: first instance to claim the lock key runs
	if r.cache != nil {
		key := fmt.Sprintf(services.ScheduleLockKeyPattern, scheduleID)
		acquired, err := r.cache.SetNX(ctx, key, "1", services.CacheShortTerm)
		if err == nil && !acquired {
			return
		}
		defer r.cache.Delete(ctx, key)
	}

	schedule, err := r.generator.Get(ctx, tenantID, scheduleID)
	if err != nil {
		r.logger.Error("failed to load schedule", "schedule_id", scheduleID, "error", err)
		return
	}
	if !schedule.IsActive {
		return
	}

	if _, err := r.generator.GenerateReport(ctx, schedule); err != nil {
		r.logger.Error("scheduled report failed", "schedule_id", scheduleID, "error", err)
	}
}
