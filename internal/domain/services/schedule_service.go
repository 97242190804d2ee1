package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/findoc/findoc/internal/domain/repositories"
	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/findoc/findoc/pkg/logger"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ScheduleService manages recurring report schedules and produces the
// reports when the cron runner fires.
type ScheduleService struct {
	scheduleRepo repositories.ReportScheduleRepository
	docRepo      repositories.DocumentRepository
	storage      StorageService
	logger       *logger.Logger
}

func NewScheduleService(
	scheduleRepo repositories.ReportScheduleRepository,
	docRepo repositories.DocumentRepository,
	storage StorageService,
	logger *logger.Logger,
) *ScheduleService {
	return &ScheduleService{
		scheduleRepo: scheduleRepo,
		docRepo:      docRepo,
		storage:      storage,
		logger:       logger,
	}
}

type ScheduleParams struct {
	Name       string
	CronExpr   string
	ReportType string
	Recipients []string
}

// Create validates the cron expression (standard 5-field format) and stores
// the schedule with its first computed run time.
func (s *ScheduleService) Create(ctx context.Context, tenantID, userID uuid.UUID, params ScheduleParams) (*models.ReportSchedule, error) {
	spec, err := cron.ParseStandard(params.CronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", params.CronExpr, err)
	}

	reportType := params.ReportType
	if reportType == "" {
		reportType = "portfolio_summary"
	}

	next := spec.Next(time.Now())
	schedule := &models.ReportSchedule{
		TenantID:   tenantID,
		Name:       params.Name,
		CronExpr:   params.CronExpr,
		ReportType: reportType,
		Recipients: models.JSONB{"emails": params.Recipients},
		IsActive:   true,
		NextRunAt:  &next,
		CreatedBy:  userID,
	}
	if err := s.scheduleRepo.Create(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

func (s *ScheduleService) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.ReportSchedule, error) {
	return s.scheduleRepo.GetByID(ctx, tenantID, id)
}

func (s *ScheduleService) List(ctx context.Context, tenantID uuid.UUID, params repositories.ListParams) ([]models.ReportSchedule, int64, error) {
	return s.scheduleRepo.List(ctx, tenantID, params)
}

// Update revalidates the cron expression when it changes and recomputes the
// next run.
func (s *ScheduleService) Update(ctx context.Context, tenantID, id uuid.UUID, params ScheduleParams, isActive *bool) (*models.ReportSchedule, error) {
	schedule, err := s.scheduleRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if params.Name != "" {
		schedule.Name = params.Name
	}
	if params.ReportType != "" {
		schedule.ReportType = params.ReportType
	}
	if params.Recipients != nil {
		schedule.Recipients = models.JSONB{"emails": params.Recipients}
	}
	if params.CronExpr != "" && params.CronExpr != schedule.CronExpr {
		spec, err := cron.ParseStandard(params.CronExpr)
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", params.CronExpr, err)
		}
		schedule.CronExpr = params.CronExpr
		next := spec.Next(time.Now())
		schedule.NextRunAt = &next
	}
	if isActive != nil {
		schedule.IsActive = *isActive
	}

	if err := s.scheduleRepo.Update(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

func (s *ScheduleService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.scheduleRepo.Delete(ctx, tenantID, id)
}

func (s *ScheduleService) ListActive(ctx context.Context) ([]models.ReportSchedule, error) {
	return s.scheduleRepo.ListActive(ctx)
}

// GenerateReport aggregates the tenant's processed documents into a report,
// stores it, and records the run.
func (s *ScheduleService) GenerateReport(ctx context.Context, schedule *models.ReportSchedule) (string, error) {
	status := models.DocStatusProcessed
	docs, _, err := s.docRepo.List(ctx, schedule.TenantID,
		repositories.DocumentFilters{Status: &status},
		repositories.ListParams{Limit: 500, SortBy: "valuation_date", Order: "desc"})
	if err != nil {
		return "", fmt.Errorf("failed to load documents for report: %w", err)
	}

	report := buildPortfolioReport(schedule, docs)
	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	fileName := fmt.Sprintf("%s-%s.json", schedule.ReportType, time.Now().Format("2006-01-02"))
	path, err := s.storage.Store(ctx, StorageParams{
		TenantID:    schedule.TenantID,
		FileReader:  bytes.NewReader(encoded),
		Filename:    fileName,
		ContentType: "application/json",
		Size:        int64(len(encoded)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store report: %w", err)
	}

	now := time.Now()
	next := now
	if spec, err := cron.ParseStandard(schedule.CronExpr); err == nil {
		next = spec.Next(now)
	}
	if err := s.scheduleRepo.MarkRun(ctx, schedule.ID, now, next); err != nil {
		s.logger.Warn("failed to record schedule run", "schedule_id", schedule.ID, "error", err)
	}

	s.logger.Info("report generated",
		"schedule_id", schedule.ID, "tenant_id", schedule.TenantID,
		"documents", len(docs), "path", path)
	return path, nil
}

func buildPortfolioReport(schedule *models.ReportSchedule, docs []models.Document) map[string]interface{} {
	var totalValue float64
	var securityCount int
	byType := make(map[string]int)
	documents := make([]map[string]interface{}, 0, len(docs))

	for _, doc := range docs {
		if doc.TotalValue != nil {
			totalValue += *doc.TotalValue
		}
		securityCount += doc.SecurityCount
		byType[string(doc.DocumentType)]++

		entry := map[string]interface{}{
			"document_id":    doc.ID,
			"file_name":      doc.OriginalName,
			"document_type":  doc.DocumentType,
			"security_count": doc.SecurityCount,
			"currency":       doc.Currency,
		}
		if doc.TotalValue != nil {
			entry["total_value"] = *doc.TotalValue
		}
		if doc.ValuationDate != nil {
			entry["valuation_date"] = doc.ValuationDate.Format("2006-01-02")
		}
		documents = append(documents, entry)
	}

	return map[string]interface{}{
		"report_type":    schedule.ReportType,
		"schedule_name":  schedule.Name,
		"generated_at":   time.Now().Format(time.RFC3339),
		"document_count": len(docs),
		"security_count": securityCount,
		"total_value":    totalValue,
		"by_type":        byType,
		"documents":      documents,
	}
}
