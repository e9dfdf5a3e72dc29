package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/karhabti/karhabti-api/internal/auth"
	"github.com/karhabti/karhabti-api/internal/models"
)

func newAuthMiddleware(t *testing.T) (*AuthMiddleware, *auth.Service) {
	t.Helper()
	authService, err := auth.NewService()
	require.NoError(t, err)
	return NewAuthMiddleware(authService), authService
}

func tokenFor(t *testing.T, authService *auth.Service, role models.Role) string {
	t.Helper()
	token, err := authService.GenerateToken(&models.User{
		ID:    primitive.NewObjectID(),
		Email: "someone@example.com",
		Role:  role,
	})
	require.NoError(t, err)
	return token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate_ValidToken(t *testing.T) {
	m, authService := newAuthMiddleware(t)
	token := tokenFor(t, authService, models.RoleUser)

	var sawActor bool
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		sawActor = ok
		assert.Equal(t, models.RoleUser, actor.Role)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, sawActor)
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	m, _ := newAuthMiddleware(t)
	handler := m.Authenticate(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_BadToken(t *testing.T) {
	m, _ := newAuthMiddleware(t)
	handler := m.Authenticate(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_SkipsPublicPaths(t *testing.T) {
	m, _ := newAuthMiddleware(t)
	handler := m.Authenticate(okHandler())

	for _, path := range []string{"/api/auth/login", "/api/auth/register", "/health"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
	}
}

func TestRequireRole(t *testing.T) {
	m, authService := newAuthMiddleware(t)

	tests := []struct {
		name     string
		actor    models.Role
		required models.Role
		status   int
	}{
		{"user hits user gate", models.RoleUser, models.RoleUser, http.StatusOK},
		{"user hits admin gate", models.RoleUser, models.RoleAdmin, http.StatusForbidden},
		{"user hits garage gate", models.RoleUser, models.RoleGarage, http.StatusForbidden},
		{"admin hits admin gate", models.RoleAdmin, models.RoleAdmin, http.StatusOK},
		{"admin hits user gate", models.RoleAdmin, models.RoleUser, http.StatusOK},
		// Garage entry points are scoped to the garage identity itself.
		{"admin hits garage gate", models.RoleAdmin, models.RoleGarage, http.StatusForbidden},
		{"garage hits garage gate", models.RoleGarage, models.RoleGarage, http.StatusOK},
		{"garage hits admin gate", models.RoleGarage, models.RoleAdmin, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := m.Authenticate(m.RequireRole(tt.required)(okHandler()))

			req := httptest.NewRequest(http.MethodGet, "/api/anything", nil)
			req.Header.Set("Authorization", "Bearer "+tokenFor(t, authService, tt.actor))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRequireRole_NoActorInContext(t *testing.T) {
	m, _ := newAuthMiddleware(t)
	handler := m.RequireRole(models.RoleUser)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/anything", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit(t *testing.T) {
	limiter := NewRateLimitMiddleware()
	handler := limiter.RateLimit(3, 60)(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different client is unaffected.
	req = httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
