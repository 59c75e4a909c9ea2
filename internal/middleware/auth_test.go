package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"catalyst/internal/model"
	"catalyst/internal/util"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func protectedHandler(t *testing.T, wantUserID int64, wantEmail string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantUserID, UserIDFromContext(r.Context()))
		assert.Equal(t, wantEmail, EmailFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	token, err := util.CreateToken(42, "user@example.com", model.RoleUser, testSecret)
	require.NoError(t, err)

	mw := AuthMiddleware(testSecret, zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/v1/subscriptions/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	mw(protectedHandler(t, 42, "user@example.com")).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	mw := AuthMiddleware(testSecret, zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/v1/subscriptions/me", nil)
	rec := httptest.NewRecorder()

	mw(protectedHandler(t, 0, "")).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareMalformedHeader(t *testing.T) {
	mw := AuthMiddleware(testSecret, zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/v1/subscriptions/me", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()

	mw(protectedHandler(t, 0, "")).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareWrongSecret(t *testing.T) {
	token, err := util.CreateToken(42, "user@example.com", model.RoleUser, "other-secret")
	require.NoError(t, err)

	mw := AuthMiddleware(testSecret, zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/v1/subscriptions/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	mw(protectedHandler(t, 0, "")).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mw := AuthMiddleware(testSecret, zerolog.Nop())

	adminToken, err := util.CreateToken(1, "admin@example.com", model.RoleAdmin, testSecret)
	require.NoError(t, err)
	userToken, err := util.CreateToken(2, "user@example.com", model.RoleUser, testSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/topups", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	mw(RequireAdmin(next)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/admin/topups", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec = httptest.NewRecorder()
	mw(RequireAdmin(next)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
