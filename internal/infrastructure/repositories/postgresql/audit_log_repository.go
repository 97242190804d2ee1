package postgresql

import (
	"context"
	"fmt"

	"github.com/findoc/findoc/internal/domain/repositories"
	"github.com/findoc/findoc/internal/infrastructure/database"
	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/google/uuid"
)

type AuditLogRepository struct {
	db *database.DB
}

func NewAuditLogRepository(db *database.DB) repositories.AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(ctx context.Context, log *models.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *AuditLogRepository) List(ctx context.Context, tenantID uuid.UUID, params repositories.ListParams) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	query := r.db.WithContext(ctx).Model(&models.AuditLog{}).Where("tenant_id = ?", tenantID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	err := query.Preload("User").
		Order(orderClause(params, "created_at DESC")).
		Offset(params.Offset).Limit(limitOrDefault(params.Limit)).
		Find(&logs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	return logs, total, nil
}

func (r *AuditLogRepository) ListByResource(ctx context.Context, tenantID uuid.UUID, resourceType string, resourceID uuid.UUID) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND resource_type = ? AND resource_id = ?", tenantID, resourceType, resourceID).
		Order("created_at DESC").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs by resource: %w", err)
	}
	return logs, nil
}
