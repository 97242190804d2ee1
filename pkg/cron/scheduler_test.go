package cron

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/findoc/findoc/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	schedules []models.ReportSchedule
	runs      atomic.Int32
	block     chan struct{} // when set, GenerateReport waits on it
}

func (s *stubGenerator) ListActive(ctx context.Context) ([]models.ReportSchedule, error) {
	return s.schedules, nil
}

func (s *stubGenerator) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.ReportSchedule, error) {
	for i := range s.schedules {
		if s.schedules[i].ID == id {
			return &s.schedules[i], nil
		}
	}
	return nil, fmt.Errorf("report schedule not found")
}

func (s *stubGenerator) GenerateReport(ctx context.Context, schedule *models.ReportSchedule) (string, error) {
	s.runs.Add(1)
	if s.block != nil {
		<-s.block
	}
	return "reports/test.json", nil
}

func testSchedule(cronExpr string) models.ReportSchedule {
	return models.ReportSchedule{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Name:     "weekly summary",
		CronExpr: cronExpr,
		IsActive: true,
	}
}

func TestRunner_SyncRegistersSchedules(t *testing.T) {
	gen := &stubGenerator{schedules: []models.ReportSchedule{
		testSchedule("0 8 * * 1"),
		testSchedule("30 6 1 * *"),
	}}
	runner := NewRunner(gen, nil, logger.NewForTesting(), time.Minute)

	require.NoError(t, runner.Sync(context.Background()))
	assert.Equal(t, 2, runner.EntryCount())
}

func TestRunner_SyncRemovesDeactivatedSchedules(t *testing.T) {
	first := testSchedule("0 8 * * 1")
	second := testSchedule("0 9 * * 2")
	gen := &stubGenerator{schedules: []models.ReportSchedule{first, second}}
	runner := NewRunner(gen, nil, logger.NewForTesting(), time.Minute)

	require.NoError(t, runner.Sync(context.Background()))
	require.Equal(t, 2, runner.EntryCount())

	gen.schedules = []models.ReportSchedule{first}
	require.NoError(t, runner.Sync(context.Background()))
	assert.Equal(t, 1, runner.EntryCount())
}

func TestRunner_SyncReplacesChangedCronExpr(t *testing.T) {
	schedule := testSchedule("0 8 * * 1")
	gen := &stubGenerator{schedules: []models.ReportSchedule{schedule}}
	runner := NewRunner(gen, nil, logger.NewForTesting(), time.Minute)

	require.NoError(t, runner.Sync(context.Background()))

	gen.schedules[0].CronExpr = "0 9 * * 1"
	require.NoError(t, runner.Sync(context.Background()))
	assert.Equal(t, 1, runner.EntryCount())
	assert.Equal(t, "0 9 * * 1", runner.entries[schedule.ID].cronExpr)
}

func TestRunner_SyncSkipsInvalidCronExpr(t *testing.T) {
	gen := &stubGenerator{schedules: []models.ReportSchedule{testSchedule("not a cron expr")}}
	runner := NewRunner(gen, nil, logger.NewForTesting(), time.Minute)

	require.NoError(t, runner.Sync(context.Background()))
	assert.Equal(t, 0, runner.EntryCount())
}

func TestRunner_RunGeneratesReport(t *testing.T) {
	schedule := testSchedule("0 8 * * 1")
	gen := &stubGenerator{schedules: []models.ReportSchedule{schedule}}
	runner := NewRunner(gen, nil, logger.NewForTesting(), time.Minute)

	runner.run(schedule.ID, schedule.TenantID)
	assert.Equal(t, int32(1), gen.runs.Load())
}

func TestRunner_RunSkipsInactiveSchedule(t *testing.T) {
	schedule := testSchedule("0 8 * * 1")
	schedule.IsActive = false
	gen := &stubGenerator{schedules: []models.ReportSchedule{schedule}}
	runner := NewRunner(gen, nil, logger.NewForTesting(), time.Minute)

	runner.run(schedule.ID, schedule.TenantID)
	assert.Equal(t, int32(0), gen.runs.Load())
}

func TestRunner_OverlappingRunIsSkipped(t *testing.T) {
	schedule := testSchedule("0 8 * * 1")
	gen := &stubGenerator{
		schedules: []models.ReportSchedule{schedule},
		block:     make(chan struct{}),
	}
	runner := NewRunner(gen, nil, logger.NewForTesting(), time.Minute)

	done := make(chan struct{})
	go func() {
		runner.run(schedule.ID, schedule.TenantID)
		close(done)
	}()

	// Wait for the first run to be inside GenerateReport
	require.Eventually(t, func() bool {
		return gen.runs.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// Second tick while the first run is blocked: must skip, not queue
	runner.run(schedule.ID, schedule.TenantID)
	assert.Equal(t, int32(1), gen.runs.Load())

	close(gen.block)
	<-done
}
