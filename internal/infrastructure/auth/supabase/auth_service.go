package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/findoc/findoc/internal/domain/services"
	"github.com/google/uuid"
	supabase "github.com/nedpals/supabase-go"
)

// AuthService resolves Supabase access tokens to user records. Sign-up and
// sign-in flows run against Supabase from the client, so this service carries
// only the validation surface the API middleware needs.
type AuthService struct {
	client *supabase.Client
}

type Config struct {
	URL    string
	APIKey string
}

func NewAuthService(config Config) (*AuthService, error) {
	client := supabase.CreateClient(config.URL, config.APIKey)
	if client == nil {
		return nil, fmt.Errorf("failed to create Supabase client")
	}

	return &AuthService{
		client: client,
	}, nil
}

func (s *AuthService) ValidateToken(accessToken string) (*services.SupabaseUser, error) {
	ctx := context.Background()

	user, err := s.client.Auth.User(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}

	return convertToSupabaseUser(user), nil
}

// Helper function to convert nedpals User to our domain model
func convertToSupabaseUser(user *supabase.User) *services.SupabaseUser {
	if user == nil {
		return nil
	}

	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return nil
	}

	return &services.SupabaseUser{
		ID:               userID,
		Email:            user.Email,
		EmailConfirmedAt: timePointerFromTime(user.ConfirmedAt),
		UserMetadata:     user.UserMetadata,
		AppMetadata:      convertAppMetadata(user.AppMetadata),
		CreatedAt:        user.CreatedAt,
		UpdatedAt:        user.UpdatedAt,
	}
}

func timePointerFromTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func convertAppMetadata(appMeta interface{}) map[string]interface{} {
	if appMeta == nil {
		return make(map[string]interface{})
	}
	if meta, ok := appMeta.(map[string]interface{}); ok {
		return meta
	}
	return make(map[string]interface{})
}
