package handlers

import (
	"errors"
	"net/http"

	"github.com/findoc/findoc/internal/domain/services"
	"github.com/gin-gonic/gin"
)

// ChatHandler handles document Q&A requests
type ChatHandler struct {
	*BaseHandler
	chatService *services.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{
		BaseHandler: NewBaseHandler(),
		chatService: chatService,
	}
}

// ChatRequest is the question payload
type ChatRequest struct {
	Question string `json:"question" binding:"required"`
}

// RegisterRoutes registers the chat route
func (h *ChatHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/chat/query", h.Ask)
}

// Ask answers a question grounded in the tenant's processed documents
func (h *ChatHandler) Ask(c *gin.Context) {
	userCtx, ok := h.AuthenticateUser(c)
	if !ok {
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	answer, err := h.chatService.Ask(c.Request.Context(), userCtx.TenantID, req.Question)
	if err != nil {
		if errors.Is(err, services.ErrChatUnavailable) {
			h.RespondError(c, http.StatusServiceUnavailable, "chat_unavailable", err.Error())
			return
		}
		h.RespondInternalError(c, "Failed to answer question", err.Error())
		return
	}

	h.RespondSuccess(c, answer)
}
