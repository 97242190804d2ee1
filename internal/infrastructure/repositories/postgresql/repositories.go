package postgresql

import (
	"context"
	"fmt"
	"strings"

	"github.com/findoc/findoc/internal/domain/repositories"
	"github.com/findoc/findoc/internal/infrastructure/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	TenantRepo   repositories.TenantRepository
	UserRepo     repositories.UserRepository
	DocumentRepo repositories.DocumentRepository
	JobRepo      repositories.ExtractionJobRepository
	ScheduleRepo repositories.ReportScheduleRepository
	AuditRepo    repositories.AuditLogRepository

	// Internal reference to database for health checks
	db *database.DB
}

// NewRepositories creates a new repositories container
func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		TenantRepo:   NewTenantRepository(db),
		UserRepo:     NewUserRepository(db),
		DocumentRepo: NewDocumentRepository(db),
		JobRepo:      NewExtractionJobRepository(db),
		ScheduleRepo: NewReportScheduleRepository(db),
		AuditRepo:    NewAuditLogRepository(db),
		db:           db,
	}
}

// HealthCheck verifies database connectivity
func (r *Repositories) HealthCheck(ctx context.Context) error {
	sqlDB, err := r.db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

const defaultListLimit = 50

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

// orderClause builds the ORDER BY fragment from list params, restricting the
// direction to asc/desc and falling back to a caller-supplied default.
func orderClause(params repositories.ListParams, fallback string) string {
	if params.SortBy == "" {
		return fallback
	}
	direction := "ASC"
	if strings.EqualFold(params.Order, "desc") {
		direction = "DESC"
	}
	return fmt.Sprintf("%s %s", params.SortBy, direction)
}
