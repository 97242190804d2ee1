package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/findoc/findoc/internal/domain/repositories"
	"github.com/findoc/findoc/internal/infrastructure/database"
	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReportScheduleRepository struct {
	db *database.DB
}

func NewReportScheduleRepository(db *database.DB) repositories.ReportScheduleRepository {
	return &ReportScheduleRepository{db: db}
}

func (r *ReportScheduleRepository) Create(ctx context.Context, schedule *models.ReportSchedule) error {
	if err := r.db.WithContext(ctx).Create(schedule).Error; err != nil {
		return fmt.Errorf("failed to create report schedule: %w", err)
	}
	return nil
}

func (r *ReportScheduleRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.ReportSchedule, error) {
	var schedule models.ReportSchedule
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("report schedule not found")
		}
		return nil, fmt.Errorf("failed to get report schedule: %w", err)
	}
	return &schedule, nil
}

func (r *ReportScheduleRepository) Update(ctx context.Context, schedule *models.ReportSchedule) error {
	result := r.db.WithContext(ctx).Save(schedule)
	if result.Error != nil {
		return fmt.Errorf("failed to update report schedule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("report schedule not found")
	}
	return nil
}

func (r *ReportScheduleRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.ReportSchedule{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete report schedule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("report schedule not found")
	}
	return nil
}

func (r *ReportScheduleRepository) List(ctx context.Context, tenantID uuid.UUID, params repositories.ListParams) ([]models.ReportSchedule, int64, error) {
	var schedules []models.ReportSchedule
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ReportSchedule{}).Where("tenant_id = ?", tenantID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count report schedules: %w", err)
	}

	err := query.Order(orderClause(params, "created_at DESC")).
		Offset(params.Offset).Limit(limitOrDefault(params.Limit)).
		Find(&schedules).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list report schedules: %w", err)
	}

	return schedules, total, nil
}

// ListActive returns every enabled schedule across tenants, for the cron
// runner to register at startup.
func (r *ReportScheduleRepository) ListActive(ctx context.Context) ([]models.ReportSchedule, error) {
	var schedules []models.ReportSchedule
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active report schedules: %w", err)
	}
	return schedules, nil
}

func (r *ReportScheduleRepository) MarkRun(ctx context.Context, id uuid.UUID, ranAt, nextRun time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.ReportSchedule{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_run_at": ranAt,
			"next_run_at": nextRun,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark report schedule run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("report schedule not found")
	}
	return nil
}
