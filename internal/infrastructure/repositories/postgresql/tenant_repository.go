package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/findoc/findoc/internal/domain/repositories"
	"github.com/findoc/findoc/internal/infrastructure/database"
	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TenantRepository struct {
	db *database.DB
}

func NewTenantRepository(db *database.DB) repositories.TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	if err := r.db.WithContext(ctx).Create(tenant).Error; err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tenant not found")
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

func (r *TenantRepository) GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.WithContext(ctx).Where("subdomain = ?", subdomain).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tenant not found")
		}
		return nil, fmt.Errorf("failed to get tenant by subdomain: %w", err)
	}
	return &tenant, nil
}

func (r *TenantRepository) Update(ctx context.Context, tenant *models.Tenant) error {
	result := r.db.WithContext(ctx).Save(tenant)
	if result.Error != nil {
		return fmt.Errorf("failed to update tenant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("tenant not found")
	}
	return nil
}

func (r *TenantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Tenant{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete tenant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("tenant not found")
	}
	return nil
}

func (r *TenantRepository) List(ctx context.Context, params repositories.ListParams) ([]models.Tenant, int64, error) {
	var tenants []models.Tenant
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Tenant{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tenants: %w", err)
	}

	err := query.Order(orderClause(params, "created_at DESC")).
		Offset(params.Offset).Limit(limitOrDefault(params.Limit)).
		Find(&tenants).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tenants: %w", err)
	}

	return tenants, total, nil
}

// UpdateUsage atomically adjusts the tenant's storage and API counters.
// Deltas may be negative (document deletion frees quota).
func (r *TenantRepository) UpdateUsage(ctx context.Context, id uuid.UUID, storageDelta int64, apiDelta int) error {
	result := r.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"storage_used": gorm.Expr("storage_used + ?", storageDelta),
			"api_used":     gorm.Expr("api_used + ?", apiDelta),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update tenant usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("tenant not found")
	}
	return nil
}

func (r *TenantRepository) CheckQuotaLimits(ctx context.Context, id uuid.UUID) (*repositories.QuotaStatus, error) {
	var tenant models.Tenant
	err := r.db.WithContext(ctx).Select("storage_used", "storage_quota", "api_used", "api_quota").
		Where("id = ?", id).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tenant not found")
		}
		return nil, fmt.Errorf("failed to get tenant quota: %w", err)
	}

	status := &repositories.QuotaStatus{
		StorageUsed:  tenant.StorageUsed,
		StorageQuota: tenant.StorageQuota,
		APIUsed:      tenant.APIUsed,
		APIQuota:     tenant.APIQuota,
	}
	if tenant.StorageQuota > 0 {
		status.StoragePercent = float64(tenant.StorageUsed) / float64(tenant.StorageQuota) * 100
	}
	if tenant.APIQuota > 0 {
		status.APIPercent = float64(tenant.APIUsed) / float64(tenant.APIQuota) * 100
	}
	status.CanUpload = tenant.StorageUsed < tenant.StorageQuota

	return status, nil
}
