package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/atelierhq/atelier-api/internal/authprovider"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

func signToken(t *testing.T, sub, email string, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   expiresAt.Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestSessionTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := SessionTokenFromRequest(r)
	assert.False(t, ok)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	token, ok := SessionTokenFromRequest(r)
	assert.True(t, ok)
	assert.Equal(t, "abc123", token)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
	token, ok = SessionTokenFromRequest(r)
	assert.True(t, ok)
	assert.Equal(t, "cookie-token", token)

	// Bearer header wins over the cookie.
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer header-token")
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
	token, ok = SessionTokenFromRequest(r)
	assert.True(t, ok)
	assert.Equal(t, "header-token", token)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, ok = SessionTokenFromRequest(r)
	assert.False(t, ok)
}

func TestRequireSession(t *testing.T) {
	verifier := authprovider.NewSessionVerifier(testSecret)

	var captured authprovider.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromRequest(r)
		require.True(t, ok)
		captured = principal
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireSession(verifier)(next)

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/invitations", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/invitations", nil)
		r.Header.Set("Authorization", "Bearer "+signToken(t, "p-1", "ana@atelier.dev", time.Now().Add(-time.Hour)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token stores principal", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/invitations", nil)
		r.Header.Set("Authorization", "Bearer "+signToken(t, "p-1", "ana@atelier.dev", time.Now().Add(time.Hour)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "p-1", captured.ID)
		assert.Equal(t, "ana@atelier.dev", captured.Email)
	})
}
