package services

import (
	"context"
	"fmt"

	"github.com/findoc/findoc/internal/app/config"
	"github.com/findoc/findoc/internal/domain/services"
	"github.com/findoc/findoc/internal/extraction/acquire"
	"github.com/findoc/findoc/internal/extraction/classify"
	authsupabase "github.com/findoc/findoc/internal/infrastructure/auth/supabase"
	"github.com/findoc/findoc/internal/infrastructure/cache"
	"github.com/findoc/findoc/internal/infrastructure/database"
	"github.com/findoc/findoc/internal/infrastructure/repositories/postgresql"
	storagelocal "github.com/findoc/findoc/internal/infrastructure/storage/local"
	storagesupabase "github.com/findoc/findoc/internal/infrastructure/storage/supabase"
	"github.com/findoc/findoc/pkg/logger"
)

// ServiceManager wires infrastructure and domain services from configuration.
// Both the API server and the worker build one of these.
type ServiceManager struct {
	Config *config.Config
	Logger *logger.Logger

	// Infrastructure
	DB           *database.DB
	Repositories *postgresql.Repositories
	CacheService services.CacheService
	Storage      services.StorageService
	AuthService  services.SupabaseAuthService
	LLM          services.LLMService // nil when no provider is configured

	// Domain services
	DocumentService   *services.DocumentService
	ExtractionService *services.ExtractionService
	ChatService       *services.ChatService
	ScheduleService   *services.ScheduleService
}

// NewServiceManager creates a new service manager
func NewServiceManager(cfg *config.Config, db *database.DB, log *logger.Logger) (*ServiceManager, error) {
	repos := postgresql.NewRepositories(db)

	// Redis when reachable, in-process cache otherwise. Single-instance
	// deployments lose nothing; multi-instance ones lose shared rate limits.
	cacheService, err := cache.New(cfg.Redis.URL)
	if err != nil {
		log.Warn("redis unavailable, using in-memory cache", "error", err)
		cacheService = cache.NewMemory()
	}

	storage, err := buildStorage(cfg)
	if err != nil {
		return nil, err
	}

	var authService services.SupabaseAuthService
	if cfg.Supabase.URL != "" {
		auth, err := authsupabase.NewAuthService(authsupabase.Config{
			URL:    cfg.Supabase.URL,
			APIKey: cfg.Supabase.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize auth service: %w", err)
		}
		authService = auth
	}

	var llm services.LLMService
	var labelLLM classify.LabelClassifier
	if cfg.Features.LLMExtraction {
		claude, err := services.NewClaudeService(services.ClaudeServiceConfig{
			APIKey:          cfg.LLM.APIKey,
			BaseURL:         cfg.LLM.BaseURL,
			Model:           cfg.LLM.Model,
			MaxTokens:       cfg.LLM.MaxTokens,
			Temperature:     cfg.LLM.Temperature,
			TimeoutSeconds:  int(cfg.LLM.Timeout.Seconds()),
			RateLimitRPM:    cfg.LLM.RateLimit,
			Enabled:         true,
			EmbeddingURL:    cfg.LLM.EmbeddingURL,
			EmbeddingAPIKey: cfg.LLM.EmbeddingAPIKey,
			EmbeddingModel:  cfg.LLM.EmbeddingModel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM service: %w", err)
		}
		llm = claude
		labelLLM = claude
	}

	var ocr acquire.Runner
	if cfg.Features.OCR && cfg.Extraction.OCRCommand != "" {
		ocr = acquire.NewCommandRunner(cfg.Extraction.OCRCommand, cfg.Extraction.OCRArgs, cfg.Extraction.OCRTimeout)
	}
	extractor := acquire.NewExtractor(ocr)

	var classifierOpts []classify.Option
	if labelLLM != nil {
		classifierOpts = append(classifierOpts, classify.WithLLM(labelLLM))
	}
	classifier := classify.New(classifierOpts...)

	documentService := services.NewDocumentService(services.DocumentServiceConfig{
		DocRepo:     repos.DocumentRepo,
		JobRepo:     repos.JobRepo,
		TenantRepo:  repos.TenantRepo,
		AuditRepo:   repos.AuditRepo,
		Storage:     storage,
		Cache:       cacheService,
		Logger:      log,
		MaxFileSize: cfg.Limits.MaxFileSize,
	})

	extractionService := services.NewExtractionService(services.ExtractionServiceConfig{
		DocRepo:    repos.DocumentRepo,
		JobRepo:    repos.JobRepo,
		AuditRepo:  repos.AuditRepo,
		Storage:    storage,
		Extractor:  extractor,
		Classifier: classifier,
		LLM:        llm,
		Cache:      cacheService,
		Logger:     log,
	})

	chatService := services.NewChatService(repos.DocumentRepo, llm, log)
	scheduleService := services.NewScheduleService(repos.ScheduleRepo, repos.DocumentRepo, storage, log)

	return &ServiceManager{
		Config:            cfg,
		Logger:            log,
		DB:                db,
		Repositories:      repos,
		CacheService:      cacheService,
		Storage:           storage,
		AuthService:       authService,
		LLM:               llm,
		DocumentService:   documentService,
		ExtractionService: extractionService,
		ChatService:       chatService,
		ScheduleService:   scheduleService,
	}, nil
}

func buildStorage(cfg *config.Config) (services.StorageService, error) {
	switch cfg.Storage.Type {
	case "supabase":
		storage, err := storagesupabase.NewStorageService(storagesupabase.Config{
			URL:    cfg.Supabase.URL,
			APIKey: cfg.Supabase.ServiceKey,
			Bucket: cfg.Supabase.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize supabase storage: %w", err)
		}
		return storage, nil
	case "local", "":
		return storagelocal.NewStorageService(cfg.Storage.Path), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}
}

// HealthCheck verifies the database and cache are reachable
func (sm *ServiceManager) HealthCheck() error {
	if err := sm.Repositories.HealthCheck(context.Background()); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	if err := sm.CacheService.Ping(context.Background()); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}

	return nil
}

// Close gracefully shuts down all services
func (sm *ServiceManager) Close() error {
	if err := sm.CacheService.Close(); err != nil {
		return fmt.Errorf("failed to close cache service: %w", err)
	}

	if err := sm.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
