package handlers

import (
	"net/http"
	"strconv"

	"github.com/findoc/findoc/internal/app/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorResponse represents a structured API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// BaseHandler provides common functionality for all handlers
type BaseHandler struct {
	config *HandlerConfig
}

// NewBaseHandler creates a new base handler
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{
		config: NewHandlerConfig(),
	}
}

// AuthenticateUser extracts and validates user context
func (b *BaseHandler) AuthenticateUser(c *gin.Context) (*middleware.UserContext, bool) {
	userCtx := middleware.GetUserContext(c)
	if userCtx == nil {
		b.RespondUnauthorized(c, "User authentication required")
		return nil, false
	}
	return userCtx, true
}

// RespondError sends a standardized error response
func (b *BaseHandler) RespondError(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	response := ErrorResponse{
		Error:   errorCode,
		Message: message,
		Status:  statusCode,
	}

	if len(details) > 0 && b.config.EnableDebugErrors {
		response.Details = details[0]
	}

	c.JSON(statusCode, response)
}

// RespondUnauthorized sends a standardized unauthorized response
func (b *BaseHandler) RespondUnauthorized(c *gin.Context, message string) {
	b.RespondError(c, http.StatusUnauthorized, "unauthorized", message)
}

// RespondBadRequest sends a standardized bad request response
func (b *BaseHandler) RespondBadRequest(c *gin.Context, message string, details ...string) {
	b.RespondError(c, http.StatusBadRequest, "invalid_request", message, details...)
}

// RespondNotFound sends a standardized not found response
func (b *BaseHandler) RespondNotFound(c *gin.Context, message string) {
	b.RespondError(c, http.StatusNotFound, "not_found", message)
}

// RespondConflict sends a standardized conflict response
func (b *BaseHandler) RespondConflict(c *gin.Context, message string) {
	b.RespondError(c, http.StatusConflict, "conflict", message)
}

// RespondInternalError sends a standardized internal server error response
func (b *BaseHandler) RespondInternalError(c *gin.Context, message string, details ...string) {
	b.RespondError(c, http.StatusInternalServerError, "internal_error", message, details...)
}

// RespondSuccess sends a standardized success response
func (b *BaseHandler) RespondSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// RespondCreated sends a standardized created response
func (b *BaseHandler) RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// ParsePagination extracts and validates pagination parameters
func (b *BaseHandler) ParsePagination(c *gin.Context) (page, pageSize int) {
	page = getIntParam(c, "page", 1)
	pageSize = getIntParam(c, "page_size", b.config.DefaultPageSize)

	if page < 1 {
		page = 1
	}
	pageSize = b.config.ValidatePageSize(pageSize)

	return page, pageSize
}

// ValidateUUID validates UUID parameter and responds with error if invalid
func (b *BaseHandler) ValidateUUID(c *gin.Context, paramName, uuidStr string) (uuid.UUID, bool) {
	id, err := uuid.Parse(uuidStr)
	if err != nil {
		b.RespondBadRequest(c, "Invalid "+paramName+" format")
		return uuid.Nil, false
	}
	return id, true
}

// getIntParam safely parses an integer query parameter with a default value
func getIntParam(c *gin.Context, param string, defaultValue int) int {
	value := c.Query(param)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func totalPages(total int64, pageSize int) int {
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if pages == 0 {
		pages = 1
	}
	return pages
}
