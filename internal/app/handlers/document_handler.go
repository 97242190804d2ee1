package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/findoc/findoc/internal/domain/repositories"
	"github.com/findoc/findoc/internal/domain/services"
	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/gin-gonic/gin"
)

// DocumentHandler handles HTTP requests for document operations
type DocumentHandler struct {
	*BaseHandler
	documentService   *services.DocumentService
	extractionService *services.ExtractionService
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documentService *services.DocumentService, extractionService *services.ExtractionService) *DocumentHandler {
	return &DocumentHandler{
		BaseHandler:       NewBaseHandler(),
		documentService:   documentService,
		extractionService: extractionService,
	}
}

// RegisterRoutes registers all document routes
func (h *DocumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	docs := router.Group("/documents")
	{
		docs.POST("/upload", h.UploadDocument)
		docs.GET("", h.ListDocuments)
		docs.GET("/stats", h.GetStats)
		docs.GET("/:id", h.GetDocument)
		docs.DELETE("/:id", h.DeleteDocument)
		docs.GET("/:id/download", h.DownloadDocument)
		docs.GET("/:id/extraction", h.GetExtraction)
		docs.POST("/:id/reprocess", h.ReprocessDocument)
	}
}

// UploadDocument accepts a multipart file and queues it for extraction
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.RespondBadRequest(c, "No file uploaded or invalid file", err.Error())
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType != "" && !h.config.ValidateFileType(contentType) {
		h.RespondError(c, http.StatusUnsupportedMediaType, "unsupported_format",
			"File type "+contentType+" is not supported")
		return
	}

	document, err := h.documentService.Upload(c.Request.Context(), services.UploadParams{
		TenantID:    userCtx.TenantID,
		UserID:      userCtx.UserID,
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Reader:      file,
		IPAddress:   c.ClientIP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateDocument):
			c.JSON(http.StatusConflict, gin.H{
				"error":       "duplicate_document",
				"message":     "A document with identical content already exists",
				"document_id": document.ID,
			})
		case errors.Is(err, services.ErrQuotaExceeded):
			h.RespondError(c, http.StatusPaymentRequired, "quota_exceeded", "Tenant storage quota exceeded")
		case errors.Is(err, services.ErrFileTooLarge):
			h.RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large", err.Error())
		default:
			h.RespondInternalError(c, "Failed to upload document", err.Error())
		}
		return
	}

	h.RespondCreated(c, document)
}

// ListDocuments returns the tenant's documents with filtering and pagination
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	page, pageSize := h.ParsePagination(c)

	filters := repositories.DocumentFilters{
		Search: c.Query("search"),
	}
	if status := c.Query("status"); status != "" {
		s := models.DocStatus(status)
		filters.Status = &s
	}
	if docType := c.Query("document_type"); docType != "" {
		t := models.DocumentType(docType)
		filters.DocumentType = &t
	}

	params := repositories.ListParams{
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
		SortBy: c.DefaultQuery("sort_by", "created_at"),
		Order:  c.DefaultQuery("order", "desc"),
	}

	documents, total, err := h.documentService.List(c.Request.Context(), userCtx.TenantID, filters, params)
	if err != nil {
		h.RespondInternalError(c, "Failed to list documents", err.Error())
		return
	}

	h.RespondSuccess(c, PaginatedResponse{
		Data:       documents,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	})
}

// GetDocument retrieves a specific document
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	documentID, ok := h.ValidateUUID(c, "document ID", c.Param("id"))
	if !ok {
		return
	}

	document, err := h.documentService.Get(c.Request.Context(), userCtx.TenantID, documentID)
	if err != nil {
		h.RespondNotFound(c, "Document not found")
		return
	}

	h.RespondSuccess(c, document)
}

// DeleteDocument removes a document and its stored file
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	documentID, ok := h.ValidateUUID(c, "document ID", c.Param("id"))
	if !ok {
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), userCtx.TenantID, documentID, userCtx.UserID); err != nil {
		h.RespondNotFound(c, "Document not found")
		return
	}

	c.Status(http.StatusNoContent)
}

// DownloadDocument returns a time-limited URL for the original file
func (h *DocumentHandler) DownloadDocument(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	documentID, ok := h.ValidateUUID(c, "document ID", c.Param("id"))
	if !ok {
		return
	}

	url, err := h.documentService.DownloadURL(c.Request.Context(), userCtx.TenantID, documentID, userCtx.UserID, 15*time.Minute)
	if err != nil {
		h.RespondNotFound(c, "Document not found")
		return
	}

	h.RespondSuccess(c, gin.H{"download_url": url, "expires_in": "15m"})
}

// GetExtraction returns the structured extraction result for a processed document
func (h *DocumentHandler) GetExtraction(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	documentID, ok := h.ValidateUUID(c, "document ID", c.Param("id"))
	if !ok {
		return
	}

	result, err := h.documentService.GetExtraction(c.Request.Context(), userCtx.TenantID, documentID)
	if err != nil {
		if errors.Is(err, services.ErrNotProcessed) {
			h.RespondError(c, http.StatusConflict, "not_processed", err.Error())
			return
		}
		h.RespondNotFound(c, "Document not found")
		return
	}

	h.RespondSuccess(c, result)
}

// ReprocessDocument queues a fresh extraction run for the document
func (h *DocumentHandler) ReprocessDocument(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	documentID, ok := h.ValidateUUID(c, "document ID", c.Param("id"))
	if !ok {
		return
	}

	job, err := h.extractionService.Reprocess(c.Request.Context(), userCtx.TenantID, documentID, userCtx.UserID)
	if err != nil {
		h.RespondNotFound(c, "Document not found")
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// GetStats reports document counts by status plus quota usage
func (h *DocumentHandler) GetStats(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	stats, err := h.documentService.Stats(c.Request.Context(), userCtx.TenantID)
	if err != nil {
		h.RespondInternalError(c, "Failed to load document stats", err.Error())
		return
	}

	h.RespondSuccess(c, stats)
}
