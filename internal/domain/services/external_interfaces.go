package services

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// External service interfaces that our domain services depend on

// StorageService interface for file storage operations (Supabase Storage compatible)
type StorageService interface {
	Store(ctx context.Context, params StorageParams) (string, error)
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	GeneratePresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error)
	GetPublicURL(bucketName, filePath string) string
}

// StorageParams contains parameters for storing files
type StorageParams struct {
	TenantID    uuid.UUID
	FileReader  io.Reader
	Filename    string
	ContentType string
	Size        int64
	BucketName  string // Supabase bucket name
}

// LLMService is the language-model client used by the extraction pipeline:
// free-form completions for extraction and chat, embeddings for semantic
// search. IsEnabled lets callers skip LLM stages cleanly when no provider is
// configured.
type LLMService interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	IsEnabled() bool
}

// SupabaseAuthService validates access tokens issued by Supabase Auth.
// Sign-up, sign-in and session refresh happen against Supabase directly from
// the client; the API only needs to resolve a token to a user.
type SupabaseAuthService interface {
	ValidateToken(accessToken string) (*SupabaseUser, error)
}

// SupabaseUser represents a user from Supabase Auth
type SupabaseUser struct {
	ID               uuid.UUID              `json:"id"`
	Email            string                 `json:"email"`
	EmailConfirmedAt *time.Time             `json:"email_confirmed_at"`
	UserMetadata     map[string]interface{} `json:"user_metadata"`
	AppMetadata      map[string]interface{} `json:"app_metadata"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

