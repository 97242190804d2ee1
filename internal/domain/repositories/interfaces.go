package repositories

import (
	"context"
	"time"

	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/google/uuid"
)

// ListParams holds common pagination parameters.
type ListParams struct {
	Offset int
	Limit  int
	SortBy string
	Order  string // "asc" or "desc"
}

// DocumentFilters narrows document listings.
type DocumentFilters struct {
	Status       *models.DocStatus
	DocumentType *models.DocumentType
	CreatedBy    *uuid.UUID
	UploadedFrom *time.Time
	UploadedTo   *time.Time
	Search       string // matches file name
}

// QuotaStatus reports a tenant's usage against its limits.
type QuotaStatus struct {
	StorageUsed    int64   `json:"storage_used"`
	StorageQuota   int64   `json:"storage_quota"`
	StoragePercent float64 `json:"storage_percent"`
	APIUsed        int     `json:"api_used"`
	APIQuota       int     `json:"api_quota"`
	APIPercent     float64 `json:"api_percent"`
	CanUpload      bool    `json:"can_upload"`
}

// TenantRepository manages tenant records and quota accounting.
type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
	Update(ctx context.Context, tenant *models.Tenant) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params ListParams) ([]models.Tenant, int64, error)
	UpdateUsage(ctx context.Context, id uuid.UUID, storageDelta int64, apiDelta int) error
	CheckQuotaLimits(ctx context.Context, id uuid.UUID) (*QuotaStatus, error)
}

// UserRepository manages user records within a tenant.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*models.User, error)
	GetByAuthID(ctx context.Context, authID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, params ListParams) ([]models.User, int64, error)
	UpdateLastLogin(ctx context.Context, tenantID, id uuid.UUID) error
}

// DocumentRepository manages document records and their extracted data.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Document, error)
	GetByContentHash(ctx context.Context, tenantID uuid.UUID, hash string) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status models.DocStatus, errorMessage string) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, filters DocumentFilters, params ListParams) ([]models.Document, int64, error)
	SemanticSearch(ctx context.Context, tenantID uuid.UUID, embedding []float32, limit int) ([]models.Document, error)
	SearchText(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]models.Document, error)
	CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[models.DocStatus]int64, error)
}

// ExtractionJobRepository manages the extraction job queue.
type ExtractionJobRepository interface {
	Create(ctx context.Context, job *models.ExtractionJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ExtractionJob, error)
	GetNextJob(ctx context.Context) (*models.ExtractionJob, error)
	Update(ctx context.Context, job *models.ExtractionJob) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ProcessingStatus, errorMessage string) error
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]models.ExtractionJob, error)
	GetFailedJobs(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.ExtractionJob, error)
	RetryJob(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ReportScheduleRepository manages recurring report schedules.
type ReportScheduleRepository interface {
	Create(ctx context.Context, schedule *models.ReportSchedule) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.ReportSchedule, error)
	Update(ctx context.Context, schedule *models.ReportSchedule) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, params ListParams) ([]models.ReportSchedule, int64, error)
	ListActive(ctx context.Context) ([]models.ReportSchedule, error)
	MarkRun(ctx context.Context, id uuid.UUID, ranAt, nextRun time.Time) error
}

// AuditLogRepository records and queries audit events.
type AuditLogRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, tenantID uuid.UUID, params ListParams) ([]models.AuditLog, int64, error)
	ListByResource(ctx context.Context, tenantID uuid.UUID, resourceType string, resourceID uuid.UUID) ([]models.AuditLog, error)
}
