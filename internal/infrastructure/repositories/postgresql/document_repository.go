package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/findoc/findoc/internal/domain/repositories"
	"github.com/findoc/findoc/internal/infrastructure/database"
	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DocumentRepository struct {
	db *database.DB
}

func NewDocumentRepository(db *database.DB) repositories.DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&doc).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("document not found")
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByContentHash(ctx context.Context, tenantID uuid.UUID, hash string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND content_hash = ?", tenantID, hash).
		First(&doc).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("document not found")
		}
		return nil, fmt.Errorf("failed to get document by hash: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	result := r.db.WithContext(ctx).Save(doc)
	if result.Error != nil {
		return fmt.Errorf("failed to update document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("document not found")
	}
	return nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status models.DocStatus, errorMessage string) error {
	updates := map[string]interface{}{
		"status":        status,
		"error_message": errorMessage,
	}

	result := r.db.WithContext(ctx).Model(&models.Document{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update document status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("document not found")
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.Document{})

	if result.Error != nil {
		return fmt.Errorf("failed to delete document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("document not found")
	}
	return nil
}

func (r *DocumentRepository) List(ctx context.Context, tenantID uuid.UUID, filters repositories.DocumentFilters, params repositories.ListParams) ([]models.Document, int64, error) {
	var documents []models.Document
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Document{}).Where("tenant_id = ?", tenantID)

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DocumentType != nil {
		query = query.Where("document_type = ?", *filters.DocumentType)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.UploadedFrom != nil {
		query = query.Where("created_at >= ?", *filters.UploadedFrom)
	}
	if filters.UploadedTo != nil {
		query = query.Where("created_at <= ?", *filters.UploadedTo)
	}
	if filters.Search != "" {
		searchTerm := "%" + filters.Search + "%"
		query = query.Where("file_name LIKE ? OR original_name LIKE ?", searchTerm, searchTerm)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	err := query.Preload("Creator").
		Order(orderClause(params, "created_at DESC")).
		Offset(params.Offset).Limit(limitOrDefault(params.Limit)).
		Find(&documents).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}

	return documents, total, nil
}

// SemanticSearch orders processed documents by cosine distance between their
// stored embedding and the query embedding. Requires pgvector; rows without an
// embedding are excluded. On other dialects (sqlite tests) it degrades to
// recency ordering.
func (r *DocumentRepository) SemanticSearch(ctx context.Context, tenantID uuid.UUID, embedding []float32, limit int) ([]models.Document, error) {
	var documents []models.Document

	query := r.db.WithContext(ctx).Model(&models.Document{}).
		Where("tenant_id = ? AND status = ?", tenantID, models.DocStatusProcessed)

	if r.db.Dialector.Name() == "postgres" {
		query = query.Where("embedding IS NOT NULL").
			Clauses(clause.OrderBy{Expression: clause.Expr{
				SQL:  "embedding <=> ?",
				Vars: []interface{}{pgvector.NewVector(embedding)},
			}})
	} else {
		query = query.Order("created_at DESC")
	}

	if err := query.Limit(limitOrDefault(limit)).Find(&documents).Error; err != nil {
		return nil, fmt.Errorf("failed to run semantic search: %w", err)
	}
	return documents, nil
}

// SearchText is the retrieval fallback when no query embedding is available:
// case-insensitive keyword match over extracted text. Words shorter than four
// characters are ignored; a query with no usable words matches nothing.
func (r *DocumentRepository) SearchText(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]models.Document, error) {
	var terms []string
	for _, word := range strings.Fields(query) {
		word = strings.Trim(word, `.,;:!?"'`)
		if len(word) >= 4 {
			terms = append(terms, word)
		}
	}
	if len(terms) == 0 {
		return nil, nil
	}

	q := r.db.WithContext(ctx).Model(&models.Document{}).
		Where("tenant_id = ? AND status = ?", tenantID, models.DocStatusProcessed)

	match := "LOWER(extracted_text) LIKE LOWER(?)"
	if r.db.Dialector.Name() == "postgres" {
		match = "extracted_text ILIKE ?"
	}
	conditions := r.db.Where(match, "%"+terms[0]+"%")
	for _, term := range terms[1:] {
		conditions = conditions.Or(match, "%"+term+"%")
	}
	q = q.Where(conditions)

	var documents []models.Document
	if err := q.Order("created_at DESC").Limit(limitOrDefault(limit)).Find(&documents).Error; err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	return documents, nil
}

func (r *DocumentRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[models.DocStatus]int64, error) {
	type statusCount struct {
		Status models.DocStatus
		Count  int64
	}
	var rows []statusCount

	err := r.db.WithContext(ctx).Model(&models.Document{}).
		Select("status, count(*) as count").
		Where("tenant_id = ?", tenantID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count documents by status: %w", err)
	}

	counts := make(map[models.DocStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
