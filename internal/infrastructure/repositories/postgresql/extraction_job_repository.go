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

type ExtractionJobRepository struct {
	db *database.DB
}

func NewExtractionJobRepository(db *database.DB) repositories.ExtractionJobRepository {
	return &ExtractionJobRepository{db: db}
}

func (r *ExtractionJobRepository) Create(ctx context.Context, job *models.ExtractionJob) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create extraction job: %w", err)
	}
	return nil
}

func (r *ExtractionJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ExtractionJob, error) {
	var job models.ExtractionJob
	err := r.db.WithContext(ctx).Preload("Document").
		Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("extraction job not found")
		}
		return nil, fmt.Errorf("failed to get extraction job: %w", err)
	}
	return &job, nil
}

// GetNextJob claims the highest-priority queued job that has retry budget
// left, or returns nil when the queue is empty. The claim flips the row to
// in_progress with a guarded update, so concurrent workers polling the same
// queue never receive the same job twice.
func (r *ExtractionJobRepository) GetNextJob(ctx context.Context) (*models.ExtractionJob, error) {
	for {
		var job models.ExtractionJob
		err := r.db.WithContext(ctx).
			Where("status = ? AND attempts < max_attempts", models.ProcessingQueued).
			Order("priority ASC, created_at ASC").
			First(&job).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil // No jobs available
			}
			return nil, fmt.Errorf("failed to get next extraction job: %w", err)
		}

		result := r.db.WithContext(ctx).Model(&models.ExtractionJob{}).
			Where("id = ? AND status = ?", job.ID, models.ProcessingQueued).
			Updates(map[string]interface{}{
				"status":     models.ProcessingInProgress,
				"started_at": time.Now(),
			})
		if result.Error != nil {
			return nil, fmt.Errorf("failed to claim extraction job: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			continue // Another worker claimed it first, take the next one.
		}

		return r.GetByID(ctx, job.ID)
	}
}

func (r *ExtractionJobRepository) Update(ctx context.Context, job *models.ExtractionJob) error {
	result := r.db.WithContext(ctx).Save(job)
	if result.Error != nil {
		return fmt.Errorf("failed to update extraction job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("extraction job not found")
	}
	return nil
}

func (r *ExtractionJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ProcessingStatus, errorMessage string) error {
	updates := map[string]interface{}{
		"status":        status,
		"error_message": errorMessage,
	}

	// Set timestamps based on status
	now := time.Now()
	switch status {
	case models.ProcessingInProgress:
		updates["started_at"] = now
	case models.ProcessingCompleted, models.ProcessingFailed:
		updates["completed_at"] = now
	}

	result := r.db.WithContext(ctx).Model(&models.ExtractionJob{}).
		Where("id = ?", id).Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update extraction job status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("extraction job not found")
	}
	return nil
}

func (r *ExtractionJobRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]models.ExtractionJob, error) {
	var jobs []models.ExtractionJob
	err := r.db.WithContext(ctx).Where("document_id = ?", documentID).
		Order("created_at DESC").Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list extraction jobs by document: %w", err)
	}
	return jobs, nil
}

func (r *ExtractionJobRepository) GetFailedJobs(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.ExtractionJob, error) {
	var jobs []models.ExtractionJob
	err := r.db.WithContext(ctx).Preload("Document").
		Where("tenant_id = ? AND status = ?", tenantID, models.ProcessingFailed).
		Order("created_at DESC").
		Limit(limitOrDefault(limit)).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get failed extraction jobs: %w", err)
	}
	return jobs, nil
}

func (r *ExtractionJobRepository) RetryJob(ctx context.Context, id uuid.UUID) error {
	var job models.ExtractionJob
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("extraction job not found")
		}
		return fmt.Errorf("failed to get extraction job: %w", err)
	}

	if job.Status != models.ProcessingFailed {
		return fmt.Errorf("only failed jobs can be retried")
	}
	if job.Attempts >= job.MaxAttempts {
		return fmt.Errorf("job has exceeded maximum retry attempts")
	}

	updates := map[string]interface{}{
		"status":        models.ProcessingQueued,
		"error_message": "",
		"started_at":    nil,
		"completed_at":  nil,
	}

	result := r.db.WithContext(ctx).Model(&models.ExtractionJob{}).
		Where("id = ?", id).Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to retry extraction job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("extraction job not found")
	}
	return nil
}

func (r *ExtractionJobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// Only completed or failed jobs may be removed
	var job models.ExtractionJob
	err := r.db.WithContext(ctx).Select("status").Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("extraction job not found")
		}
		return fmt.Errorf("failed to check extraction job status: %w", err)
	}

	if job.Status == models.ProcessingInProgress || job.Status == models.ProcessingQueued {
		return fmt.Errorf("cannot delete active or queued extraction jobs")
	}

	result := r.db.WithContext(ctx).Delete(&models.ExtractionJob{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete extraction job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("extraction job not found")
	}
	return nil
}
