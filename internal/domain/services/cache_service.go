package services

import (
	"context"
	"time"
)

// CacheService interface for caching operations
type CacheService interface {
	// Basic operations
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Atomic operations
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Increment(ctx context.Context, key string) (int64, error)

	// Hash operations for structured data
	HSet(ctx context.Context, key string, field string, value interface{}) error
	HGet(ctx context.Context, key string, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Health check
	Ping(ctx context.Context) error
	Close() error
}

// Cache key patterns for the application
const (
	// User cache keys
	UserCacheKeyPattern = "user:%s"

	// Document cache keys
	DocumentCacheKeyPattern   = "doc:%s"
	ExtractionCacheKeyPattern = "extraction:%s" // document id

	// Tenant cache keys
	TenantCacheKeyPattern = "tenant:%s"

	// Rate limiting keys
	RateLimitKeyPattern = "rate_limit:%s:%s" // tenant:window bucket

	// Report schedule overlap guard
	ScheduleLockKeyPattern = "schedule_lock:%s"
)

// Common cache durations
const (
	CacheShortTerm  = 5 * time.Minute
	CacheMediumTerm = 30 * time.Minute
	CacheLongTerm   = 2 * time.Hour

	// Rate limiting windows
	RateLimitWindow = time.Minute
)
