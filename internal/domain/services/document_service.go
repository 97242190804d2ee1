package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/findoc/findoc/internal/domain/repositories"
	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/findoc/findoc/pkg/logger"
	"github.com/google/uuid"
)

var (
	ErrDuplicateDocument = errors.New("document with identical content already exists")
	ErrQuotaExceeded     = errors.New("tenant storage quota exceeded")
	ErrNotProcessed      = errors.New("document has not been processed yet")
	ErrFileTooLarge      = errors.New("file exceeds the maximum allowed size")
)

// DocumentService handles the document lifecycle around the extraction
// pipeline: upload with dedup and quota checks, retrieval, deletion,
// downloads and access to extraction results.
type DocumentService struct {
	docRepo    repositories.DocumentRepository
	jobRepo    repositories.ExtractionJobRepository
	tenantRepo repositories.TenantRepository
	auditRepo  repositories.AuditLogRepository
	storage    StorageService
	cache      CacheService
	logger     *logger.Logger
	maxSize    int64
}

type DocumentServiceConfig struct {
	DocRepo     repositories.DocumentRepository
	JobRepo     repositories.ExtractionJobRepository
	TenantRepo  repositories.TenantRepository
	AuditRepo   repositories.AuditLogRepository
	Storage     StorageService
	Cache       CacheService
	Logger      *logger.Logger
	MaxFileSize int64
}

func NewDocumentService(cfg DocumentServiceConfig) *DocumentService {
	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = 50 * 1024 * 1024 // 50MB
	}
	return &DocumentService{
		docRepo:    cfg.DocRepo,
		jobRepo:    cfg.JobRepo,
		tenantRepo: cfg.TenantRepo,
		auditRepo:  cfg.AuditRepo,
		storage:    cfg.Storage,
		cache:      cfg.Cache,
		logger:     cfg.Logger,
		maxSize:    maxSize,
	}
}

// UploadParams describes one incoming file.
type UploadParams struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
	IPAddress   string
}

// Upload stores a new document and queues its extraction. Identical content
// (by SHA-256) within a tenant is rejected with ErrDuplicateDocument and the
// existing record.
func (s *DocumentService) Upload(ctx context.Context, params UploadParams) (*models.Document, error) {
	if params.Size > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, params.Size)
	}

	quota, err := s.tenantRepo.CheckQuotaLimits(ctx, params.TenantID)
	if err != nil {
		return nil, err
	}
	if !quota.CanUpload {
		return nil, ErrQuotaExceeded
	}

	content, err := io.ReadAll(io.LimitReader(params.Reader, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(content)) > s.maxSize {
		return nil, ErrFileTooLarge
	}

	hash := sha256.Sum256(content)
	contentHash := hex.EncodeToString(hash[:])

	if existing, err := s.docRepo.GetByContentHash(ctx, params.TenantID, contentHash); err == nil {
		return existing, ErrDuplicateDocument
	}

	storagePath, err := s.storage.Store(ctx, StorageParams{
		TenantID:    params.TenantID,
		FileReader:  bytes.NewReader(content),
		Filename:    params.FileName,
		ContentType: params.ContentType,
		Size:        int64(len(content)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	doc := &models.Document{
		TenantID:     params.TenantID,
		FileName:     params.FileName,
		OriginalName: params.FileName,
		ContentType:  params.ContentType,
		FileSize:     int64(len(content)),
		StoragePath:  storagePath,
		ContentHash:  contentHash,
		DocumentType: models.DocTypeUnknown,
		Status:       models.DocStatusUploaded,
		CreatedBy:    params.UserID,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		// Best effort cleanup of the orphaned file
		if delErr := s.storage.Delete(ctx, storagePath); delErr != nil {
			s.logger.Warn("failed to clean up stored file", "path", storagePath, "error", delErr)
		}
		return nil, err
	}

	if err := s.tenantRepo.UpdateUsage(ctx, params.TenantID, doc.FileSize, 1); err != nil {
		s.logger.Warn("failed to update tenant usage", "tenant_id", params.TenantID, "error", err)
	}

	s.enqueuePipeline(ctx, doc)
	s.audit(ctx, params.TenantID, params.UserID, doc.ID, models.AuditCreate, params.IPAddress)

	s.logger.Info("document uploaded",
		"document_id", doc.ID, "tenant_id", params.TenantID,
		"file_name", doc.FileName, "size", doc.FileSize)

	return doc, nil
}

// enqueuePipeline queues the full extraction run plus embedding generation.
// The embedding job runs at lower priority; it depends on text the pipeline
// job extracts, and the queue orders by priority first.
func (s *DocumentService) enqueuePipeline(ctx context.Context, doc *models.Document) {
	jobs := []*models.ExtractionJob{
		{
			TenantID:    doc.TenantID,
			DocumentID:  doc.ID,
			JobType:     models.JobTypeFullPipeline,
			Status:      models.ProcessingQueued,
			Priority:    5,
			MaxAttempts: 3,
		},
		{
			TenantID:    doc.TenantID,
			DocumentID:  doc.ID,
			JobType:     models.JobTypeEmbeddingGeneration,
			Status:      models.ProcessingQueued,
			Priority:    7,
			MaxAttempts: 3,
		},
	}
	for _, job := range jobs {
		if err := s.jobRepo.Create(ctx, job); err != nil {
			s.logger.Error("failed to enqueue job",
				"document_id", doc.ID, "job_type", job.JobType, "error", err)
		}
	}
}

func (s *DocumentService) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Document, error) {
	return s.docRepo.GetByID(ctx, tenantID, id)
}

func (s *DocumentService) List(ctx context.Context, tenantID uuid.UUID, filters repositories.DocumentFilters, params repositories.ListParams) ([]models.Document, int64, error) {
	return s.docRepo.List(ctx, tenantID, filters, params)
}

// Delete removes the document record, its stored file, and frees quota.
func (s *DocumentService) Delete(ctx context.Context, tenantID, id, userID uuid.UUID) error {
	doc, err := s.docRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, doc.StoragePath); err != nil {
		s.logger.Warn("failed to delete stored file", "path", doc.StoragePath, "error", err)
	}

	if err := s.docRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}

	if err := s.tenantRepo.UpdateUsage(ctx, tenantID, -doc.FileSize, 0); err != nil {
		s.logger.Warn("failed to release tenant usage", "tenant_id", tenantID, "error", err)
	}

	if s.cache != nil {
		cacheKey := fmt.Sprintf(ExtractionCacheKeyPattern, id)
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			s.logger.Warn("failed to invalidate extraction cache", "document_id", id, "error", err)
		}
	}

	s.audit(ctx, tenantID, userID, id, models.AuditDelete, "")
	return nil
}

// DownloadURL returns a time-limited URL for the original file.
func (s *DocumentService) DownloadURL(ctx context.Context, tenantID, id, userID uuid.UUID, expiry time.Duration) (string, error) {
	doc, err := s.docRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return "", err
	}

	url, err := s.storage.GeneratePresignedURL(ctx, doc.StoragePath, expiry)
	if err != nil {
		return "", fmt.Errorf("failed to generate download url: %w", err)
	}

	s.audit(ctx, tenantID, userID, id, models.AuditDownload, "")
	return url, nil
}

// GetExtraction returns the structured extraction result for a processed
// document, cache-aside on the document id.
func (s *DocumentService) GetExtraction(ctx context.Context, tenantID, id uuid.UUID) (map[string]interface{}, error) {
	if s.cache != nil {
		cacheKey := fmt.Sprintf(ExtractionCacheKeyPattern, id)
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			var result map[string]interface{}
			if err := json.Unmarshal([]byte(cached), &result); err == nil {
				return result, nil
			}
		}
	}

	doc, err := s.docRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.DocStatusProcessed {
		return nil, fmt.Errorf("%w: status is %s", ErrNotProcessed, doc.Status)
	}

	return map[string]interface{}(doc.ExtractedData), nil
}

// Stats reports document counts by status plus quota usage.
func (s *DocumentService) Stats(ctx context.Context, tenantID uuid.UUID) (map[string]interface{}, error) {
	counts, err := s.docRepo.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	quota, err := s.tenantRepo.CheckQuotaLimits(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	byStatus := make(map[string]int64, len(counts))
	var total int64
	for status, count := range counts {
		byStatus[string(status)] = count
		total += count
	}

	return map[string]interface{}{
		"total_documents": total,
		"by_status":       byStatus,
		"quota":           quota,
	}, nil
}

func (s *DocumentService) audit(ctx context.Context, tenantID, userID, resourceID uuid.UUID, action models.AuditAction, ip string) {
	if s.auditRepo == nil {
		return
	}
	entry := &models.AuditLog{
		TenantID:     tenantID,
		UserID:       userID,
		ResourceID:   resourceID,
		Action:       action,
		ResourceType: "document",
		IPAddress:    ip,
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", "resource_id", resourceID, "error", err)
	}
}
