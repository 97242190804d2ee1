package handlers

import (
	"net/http"
	"strings"

	"github.com/findoc/findoc/internal/domain/repositories"
	"github.com/findoc/findoc/internal/domain/services"
	"github.com/gin-gonic/gin"
)

// ScheduleHandler handles HTTP requests for report schedules
type ScheduleHandler struct {
	*BaseHandler
	scheduleService *services.ScheduleService
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(scheduleService *services.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{
		BaseHandler:     NewBaseHandler(),
		scheduleService: scheduleService,
	}
}

// ScheduleRequest is the create/update payload
type ScheduleRequest struct {
	Name       string   `json:"name" binding:"required"`
	CronExpr   string   `json:"cron_expr" binding:"required"`
	ReportType string   `json:"report_type"`
	Recipients []string `json:"recipients"`
	IsActive   *bool    `json:"is_active"`
}

// RegisterRoutes registers all schedule routes
func (h *ScheduleHandler) RegisterRoutes(router *gin.RouterGroup) {
	schedules := router.Group("/schedules")
	{
		schedules.POST("", h.CreateSchedule)
		schedules.GET("", h.ListSchedules)
		schedules.GET("/:id", h.GetSchedule)
		schedules.PUT("/:id", h.UpdateSchedule)
		schedules.DELETE("/:id", h.DeleteSchedule)
		schedules.POST("/:id/run", h.RunSchedule)
	}
}

// CreateSchedule registers a new recurring report
func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	schedule, err := h.scheduleService.Create(c.Request.Context(), userCtx.TenantID, userCtx.UserID, services.ScheduleParams{
		Name:       req.Name,
		CronExpr:   req.CronExpr,
		ReportType: req.ReportType,
		Recipients: req.Recipients,
	})
	if err != nil {
		if strings.Contains(err.Error(), "invalid cron expression") {
			h.RespondBadRequest(c, err.Error())
			return
		}
		h.RespondInternalError(c, "Failed to create schedule", err.Error())
		return
	}

	h.RespondCreated(c, schedule)
}

// ListSchedules returns the tenant's schedules
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	page, pageSize := h.ParsePagination(c)
	schedules, total, err := h.scheduleService.List(c.Request.Context(), userCtx.TenantID, repositories.ListParams{
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	})
	if err != nil {
		h.RespondInternalError(c, "Failed to list schedules", err.Error())
		return
	}

	h.RespondSuccess(c, PaginatedResponse{
		Data:       schedules,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	})
}

// GetSchedule retrieves a single schedule
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	scheduleID, ok := h.ValidateUUID(c, "schedule ID", c.Param("id"))
	if !ok {
		return
	}

	schedule, err := h.scheduleService.Get(c.Request.Context(), userCtx.TenantID, scheduleID)
	if err != nil {
		h.RespondNotFound(c, "Schedule not found")
		return
	}

	h.RespondSuccess(c, schedule)
}

// UpdateSchedule modifies an existing schedule
func (h *ScheduleHandler) UpdateSchedule(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	scheduleID, ok := h.ValidateUUID(c, "schedule ID", c.Param("id"))
	if !ok {
		return
	}

	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	schedule, err := h.scheduleService.Update(c.Request.Context(), userCtx.TenantID, scheduleID, services.ScheduleParams{
		Name:       req.Name,
		CronExpr:   req.CronExpr,
		ReportType: req.ReportType,
		Recipients: req.Recipients,
	}, req.IsActive)
	if err != nil {
		if strings.Contains(err.Error(), "invalid cron expression") {
			h.RespondBadRequest(c, err.Error())
			return
		}
		h.RespondNotFound(c, "Schedule not found")
		return
	}

	h.RespondSuccess(c, schedule)
}

// DeleteSchedule removes a schedule
func (h *ScheduleHandler) DeleteSchedule(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	scheduleID, ok := h.ValidateUUID(c, "schedule ID", c.Param("id"))
	if !ok {
		return
	}

	if err := h.scheduleService.Delete(c.Request.Context(), userCtx.TenantID, scheduleID); err != nil {
		h.RespondNotFound(c, "Schedule not found")
		return
	}

	c.Status(http.StatusNoContent)
}

// RunSchedule generates the report immediately, outside the cron cycle
func (h *ScheduleHandler) RunSchedule(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	scheduleID, ok := h.ValidateUUID(c, "schedule ID", c.Param("id"))
	if !ok {
		return
	}

	schedule, err := h.scheduleService.Get(c.Request.Context(), userCtx.TenantID, scheduleID)
	if err != nil {
		h.RespondNotFound(c, "Schedule not found")
		return
	}

	path, err := h.scheduleService.GenerateReport(c.Request.Context(), schedule)
	if err != nil {
		h.RespondInternalError(c, "Failed to generate report", err.Error())
		return
	}

	h.RespondSuccess(c, gin.H{"report_path": path})
}
