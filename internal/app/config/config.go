package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Supabase    SupabaseConfig
	LLM         LLMConfig
	Extraction  ExtractionConfig
	Worker      WorkerConfig
	Features    FeatureConfig
	Limits      LimitsConfig
}

type ServerConfig struct {
	Host           string
	Port           string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL     string
	TestURL string
}

type RedisConfig struct {
	URL      string
	PoolSize int
}

type StorageConfig struct {
	Type string
	Path string
}

type SupabaseConfig struct {
	URL        string
	APIKey     string
	ServiceKey string
	Bucket     string
}

type LLMConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxTokens       int
	Temperature     float64
	Timeout         time.Duration
	RateLimit       int
	EmbeddingURL    string
	EmbeddingAPIKey string
	EmbeddingModel  string
}

type ExtractionConfig struct {
	OCRCommand string
	OCRArgs    []string
	OCRTimeout time.Duration
	JobTimeout time.Duration
}

type WorkerConfig struct {
	PollInterval time.Duration
	Concurrency  int
}

type FeatureConfig struct {
	LLMExtraction bool
	OCR           bool
	Schedules     bool
}

type LimitsConfig struct {
	MaxFileSize     int64
	RateLimit       int
	RateLimitWindow time.Duration
}

// Load configuration from environment variables
func Load() (*Config, error) {
	// Load .env file in non-production environments
	env := os.Getenv("ENVIRONMENT")
	if env != "production" {
		if err := godotenv.Load(); err != nil {
			// .env file is optional
		}
	}

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:           getEnv("HOST", "localhost"),
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		},
		Database: DatabaseConfig{
			URL:     getEnv("DATABASE_URL", ""),
			TestURL: getEnv("DATABASE_URL_TEST", ""),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			PoolSize: parseInt(getEnv("REDIS_POOL_SIZE", "10")),
		},
		Storage: StorageConfig{
			Type: getEnv("STORAGE_TYPE", "local"),
			Path: getEnv("STORAGE_PATH", "./uploads"),
		},
		Supabase: SupabaseConfig{
			URL:        getEnv("SUPABASE_URL", ""),
			APIKey:     getEnv("SUPABASE_API_KEY", ""),
			ServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:     getEnv("SUPABASE_BUCKET", "documents"),
		},
		LLM: LLMConfig{
			APIKey:          getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL:         getEnv("ANTHROPIC_BASE_URL", ""),
			Model:           getEnv("LLM_MODEL", "claude-3-5-sonnet-20241022"),
			MaxTokens:       parseInt(getEnv("LLM_MAX_TOKENS", "4096")),
			Temperature:     parseFloat(getEnv("LLM_TEMPERATURE", "0.1")),
			Timeout:         parseDuration(getEnv("LLM_TIMEOUT", "60s")),
			RateLimit:       parseInt(getEnv("LLM_RATE_LIMIT", "1000")),
			EmbeddingURL:    getEnv("EMBEDDING_URL", ""),
			EmbeddingAPIKey: getEnv("EMBEDDING_API_KEY", ""),
			EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Extraction: ExtractionConfig{
			OCRCommand: getEnv("OCR_COMMAND", ""),
			OCRArgs:    splitNonEmpty(getEnv("OCR_ARGS", "")),
			OCRTimeout: parseDuration(getEnv("OCR_TIMEOUT", "2m")),
			JobTimeout: parseDuration(getEnv("JOB_TIMEOUT", "5m")),
		},
		Worker: WorkerConfig{
			PollInterval: parseDuration(getEnv("WORKER_POLL_INTERVAL", "2s")),
			Concurrency:  parseInt(getEnv("WORKER_CONCURRENCY", "2")),
		},
		Features: FeatureConfig{
			LLMExtraction: parseBool(getEnv("ENABLE_LLM_EXTRACTION", "false")),
			OCR:           parseBool(getEnv("ENABLE_OCR", "false")),
			Schedules:     parseBool(getEnv("ENABLE_SCHEDULES", "true")),
		},
		Limits: LimitsConfig{
			MaxFileSize:     parseInt64(getEnv("MAX_FILE_SIZE", "52428800")),
			RateLimit:       parseInt(getEnv("RATE_LIMIT_REQUESTS", "100")),
			RateLimitWindow: parseDuration(getEnv("RATE_LIMIT_WINDOW", "60s")),
		},
	}

	// Validate required configuration
	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// GetDatabaseURL returns the appropriate database URL based on environment
func (c *Config) GetDatabaseURL() string {
	if c.Environment == "test" && c.Database.TestURL != "" {
		return c.Database.TestURL
	}
	return c.Database.URL
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsTest returns true if running in test environment
func (c *Config) IsTest() bool {
	return c.Environment == "test"
}

func validate(config *Config) error {
	// Database URL is optional for development
	if config.IsProduction() && config.GetDatabaseURL() == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	if config.Features.LLMExtraction && config.LLM.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM extraction is enabled")
	}
	if config.Features.OCR && config.Extraction.OCRCommand == "" {
		return fmt.Errorf("OCR_COMMAND is required when OCR is enabled")
	}
	if config.Storage.Type == "supabase" && config.Supabase.URL == "" {
		return fmt.Errorf("SUPABASE_URL is required for supabase storage")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(value string) int {
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	return 0
}

func parseInt64(value string) int64 {
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	return 0
}

func parseFloat(value string) float64 {
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return 0
}

func parseBool(value string) bool {
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return false
}

func parseDuration(value string) time.Duration {
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return 0
}

func splitNonEmpty(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, " ")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
