package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/findoc/findoc/internal/domain/repositories"
	"github.com/findoc/findoc/internal/domain/services"
	"github.com/findoc/findoc/internal/infrastructure/database/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserContext holds user information extracted from the validated token
type UserContext struct {
	UserID   uuid.UUID       `json:"user_id"`
	TenantID uuid.UUID       `json:"tenant_id"`
	Email    string          `json:"email"`
	Role     models.UserRole `json:"role"`
	IsActive bool            `json:"is_active"`
}

// AuthMiddleware validates the bearer token with Supabase and loads the
// matching local user record.
func AuthMiddleware(authService services.SupabaseAuthService, userRepo repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_authorization",
				"message": "Authorization header is required",
			})
			c.Abort()
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_authorization_format",
				"message": "Authorization header must be in format: Bearer <token>",
			})
			c.Abort()
			return
		}

		accessToken := tokenParts[1]

		supabaseUser, err := authService.ValidateToken(accessToken)
		if err != nil || supabaseUser == nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "Token validation failed",
			})
			c.Abort()
			return
		}

		user, err := userRepo.GetByAuthID(c.Request.Context(), supabaseUser.ID.String())
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "user_not_found",
				"message": "User not found in system",
			})
			c.Abort()
			return
		}

		if !user.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "user_inactive",
				"message": "User account is inactive",
			})
			c.Abort()
			return
		}

		userCtx := &UserContext{
			UserID:   user.ID,
			TenantID: user.TenantID,
			Email:    user.Email,
			Role:     user.Role,
			IsActive: user.IsActive,
		}

		c.Set("user", userCtx)
		c.Set("user_id", user.ID)
		c.Set("tenant_id", user.TenantID)
		c.Set("user_role", user.Role)
		c.Set("access_token", accessToken)

		c.Next()
	}
}

// AdminRequiredMiddleware ensures only admin users can access the endpoint
func AdminRequiredMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx := GetUserContext(c)
		if userCtx == nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "authentication_required",
				"message": "User must be authenticated",
			})
			c.Abort()
			return
		}

		if userCtx.Role != models.UserRoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "admin_required",
				"message": "Admin privileges required",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RateLimitMiddleware enforces a per-tenant request budget over a fixed
// window, counted in the shared cache so all instances see the same totals.
// Keys carry the window bucket, so old buckets simply stop being read.
func RateLimitMiddleware(cache services.CacheService, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cache == nil || limit <= 0 {
			c.Next()
			return
		}

		userCtx := GetUserContext(c)
		if userCtx == nil {
			c.Next()
			return
		}

		bucket := time.Now().Truncate(services.RateLimitWindow).Unix()
		key := fmt.Sprintf(services.RateLimitKeyPattern, userCtx.TenantID, strconv.FormatInt(bucket, 10))
		count, err := cache.Increment(c.Request.Context(), key)
		if err != nil {
			// Rate limiting must not take the API down with it
			c.Next()
			return
		}

		if count > int64(limit) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many requests, try again later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUserContext retrieves user context from gin context
func GetUserContext(c *gin.Context) *UserContext {
	if userCtx, exists := c.Get("user"); exists {
		if user, ok := userCtx.(*UserContext); ok {
			return user
		}
	}
	return nil
}

// GetUserID retrieves user ID from gin context
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(uuid.UUID); ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

// GetTenantID retrieves tenant ID from gin context
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	if tenantID, exists := c.Get("tenant_id"); exists {
		if id, ok := tenantID.(uuid.UUID); ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

// ErrorResponse represents API error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}
