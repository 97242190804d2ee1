package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/findoc/findoc/internal/domain/services"
	"github.com/findoc/findoc/internal/infrastructure/repositories/postgresql"
	"github.com/findoc/findoc/internal/infrastructure/repositories/postgresql/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthService struct {
	user *services.SupabaseUser
	err  error
}

func (s *stubAuthService) ValidateToken(accessToken string) (*services.SupabaseUser, error) {
	return s.user, s.err
}

func newAuthRouter(t *testing.T, auth services.SupabaseAuthService) (*gin.Engine, *testutil.TestDB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	t.Cleanup(func() { db.Cleanup(t) })
	repos := postgresql.NewRepositories(db.DB)

	router := gin.New()
	router.GET("/me", AuthMiddleware(auth, repos.UserRepo), func(c *gin.Context) {
		tenantID, ok := GetTenantID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"tenant_id": tenantID})
	})
	return router, db
}

func authedRequest() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer token-123")
	return req
}

// The Supabase user id is a uuid; the local user record keys it as a string.
func TestAuthMiddleware_ResolvesTokenToLocalUser(t *testing.T) {
	authID := uuid.New()
	auth := &stubAuthService{user: &services.SupabaseUser{ID: authID, Email: "user@acme.test"}}
	router, db := newAuthRouter(t, auth)

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)
	user.AuthID = authID.String()
	require.NoError(t, db.Save(user).Error)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), tenant.ID.String())
}

func TestAuthMiddleware_UnknownAuthID(t *testing.T) {
	auth := &stubAuthService{user: &services.SupabaseUser{ID: uuid.New()}}
	router, _ := newAuthRouter(t, auth)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest())

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "user_not_found")
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	router, _ := newAuthRouter(t, &stubAuthService{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing_authorization")
}

func TestAuthMiddleware_InactiveUser(t *testing.T) {
	authID := uuid.New()
	auth := &stubAuthService{user: &services.SupabaseUser{ID: authID}}
	router, db := newAuthRouter(t, auth)

	tenant := db.CreateTestTenant(t)
	user := db.CreateTestUser(t, tenant)
	user.AuthID = authID.String()
	user.IsActive = false
	require.NoError(t, db.Save(user).Error)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest())

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "user_inactive")
}
