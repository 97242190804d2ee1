package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/findoc/findoc/internal/app/config"
	"github.com/findoc/findoc/internal/app/handlers"
	"github.com/findoc/findoc/internal/app/middleware"
	appservices "github.com/findoc/findoc/internal/app/services"
	"github.com/findoc/findoc/pkg/logger"
)

type Server struct {
	config   *config.Config
	logger   *logger.Logger
	router   *gin.Engine
	server   *http.Server
	services *appservices.ServiceManager
}

// New creates a new server instance
func New(cfg *config.Config, log *logger.Logger, sm *appservices.ServiceManager) (*Server, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(cfg))
	router.Use(loggingMiddleware(log))

	server := &Server{
		config:   cfg,
		logger:   log,
		router:   router,
		services: sm,
	}

	server.setupRoutes()

	return server, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         ":" + s.config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	if err := s.services.Close(); err != nil {
		s.logger.Error("Error closing services", "error", err)
	}

	return s.server.Shutdown(ctx)
}

// setupRoutes configures all application routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		public := v1.Group("")
		{
			public.GET("/status", s.systemStatus)
		}

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(s.services.AuthService, s.services.Repositories.UserRepo))
		protected.Use(middleware.RateLimitMiddleware(s.services.CacheService, s.config.Limits.RateLimit))
		{
			documentHandler := handlers.NewDocumentHandler(s.services.DocumentService, s.services.ExtractionService)
			documentHandler.RegisterRoutes(protected)

			jobHandler := handlers.NewJobHandler(s.services.Repositories.JobRepo)
			jobHandler.RegisterRoutes(protected)

			scheduleHandler := handlers.NewScheduleHandler(s.services.ScheduleService)
			scheduleHandler.RegisterRoutes(protected)

			chatHandler := handlers.NewChatHandler(s.services.ChatService)
			chatHandler.RegisterRoutes(protected)
		}
	}
}

// Health check handler
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"environment": s.config.Environment,
	})
}

// System status handler
func (s *Server) systemStatus(c *gin.Context) {
	dbStatus := "healthy"
	if err := s.services.Repositories.HealthCheck(c.Request.Context()); err != nil {
		dbStatus = "unhealthy"
	}

	cacheStatus := "healthy"
	if err := s.services.CacheService.Ping(c.Request.Context()); err != nil {
		cacheStatus = "unhealthy"
	}

	llmStatus := "not_configured"
	if s.services.LLM != nil && s.services.LLM.IsEnabled() {
		llmStatus = "enabled"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"database":  dbStatus,
		"cache":     cacheStatus,
		"llm":       llmStatus,
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	})
}

// corsMiddleware configures CORS
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	return cors.New(corsConfig)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}
