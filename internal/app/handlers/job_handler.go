package handlers

import (
	"net/http"

	"github.com/findoc/findoc/internal/domain/repositories"
	"github.com/gin-gonic/gin"
)

// JobHandler exposes the extraction job queue for inspection and retries
type JobHandler struct {
	*BaseHandler
	jobRepo repositories.ExtractionJobRepository
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobRepo repositories.ExtractionJobRepository) *JobHandler {
	return &JobHandler{
		BaseHandler: NewBaseHandler(),
		jobRepo:     jobRepo,
	}
}

// RegisterRoutes registers all job routes
func (h *JobHandler) RegisterRoutes(router *gin.RouterGroup) {
	jobs := router.Group("/jobs")
	{
		jobs.GET("/failed", h.ListFailedJobs)
		jobs.GET("/:id", h.GetJob)
		jobs.POST("/:id/retry", h.RetryJob)
		jobs.DELETE("/:id", h.DeleteJob)
	}

	router.GET("/documents/:id/jobs", h.ListDocumentJobs)
}

// ListFailedJobs returns jobs that exhausted their attempts
func (h *JobHandler) ListFailedJobs(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	limit := getIntParam(c, "limit", 50)
	jobs, err := h.jobRepo.GetFailedJobs(c.Request.Context(), userCtx.TenantID, limit)
	if err != nil {
		h.RespondInternalError(c, "Failed to list failed jobs", err.Error())
		return
	}

	h.RespondSuccess(c, gin.H{"jobs": jobs, "count": len(jobs)})
}

// GetJob retrieves a single job
func (h *JobHandler) GetJob(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	jobID, ok := h.ValidateUUID(c, "job ID", c.Param("id"))
	if !ok {
		return
	}

	job, err := h.jobRepo.GetByID(c.Request.Context(), jobID)
	if err != nil {
		h.RespondNotFound(c, "Job not found")
		return
	}
	if job.TenantID != userCtx.TenantID {
		h.RespondNotFound(c, "Job not found")
		return
	}

	h.RespondSuccess(c, job)
}

// RetryJob requeues a failed job with its attempt counter intact
func (h *JobHandler) RetryJob(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	jobID, ok := h.ValidateUUID(c, "job ID", c.Param("id"))
	if !ok {
		return
	}

	job, err := h.jobRepo.GetByID(c.Request.Context(), jobID)
	if err != nil || job.TenantID != userCtx.TenantID {
		h.RespondNotFound(c, "Job not found")
		return
	}

	if err := h.jobRepo.RetryJob(c.Request.Context(), jobID); err != nil {
		h.RespondError(c, http.StatusConflict, "retry_failed", err.Error())
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Job requeued", "job_id": jobID})
}

// DeleteJob removes a finished job from the queue
func (h *JobHandler) DeleteJob(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	jobID, ok := h.ValidateUUID(c, "job ID", c.Param("id"))
	if !ok {
		return
	}

	job, err := h.jobRepo.GetByID(c.Request.Context(), jobID)
	if err != nil || job.TenantID != userCtx.TenantID {
		h.RespondNotFound(c, "Job not found")
		return
	}

	if err := h.jobRepo.Delete(c.Request.Context(), jobID); err != nil {
		h.RespondError(c, http.StatusConflict, "delete_failed", err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// ListDocumentJobs returns all jobs for one document
func (h *JobHandler) ListDocumentJobs(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	documentID, ok := h.ValidateUUID(c, "document ID", c.Param("id"))
	if !ok {
		return
	}

	jobs, err := h.jobRepo.ListByDocument(c.Request.Context(), documentID)
	if err != nil {
		h.RespondInternalError(c, "Failed to list jobs", err.Error())
		return
	}

	// ListByDocument is not tenant-scoped; filter here
	filtered := jobs[:0]
	for _, job := range jobs {
		if job.TenantID == userCtx.TenantID {
			filtered = append(filtered, job)
		}
	}

	h.RespondSuccess(c, gin.H{"jobs": filtered, "count": len(filtered)})
}
