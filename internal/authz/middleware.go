package authz

import (
	"net/http"
	"strings"

	"github.com/atelierhq/atelier-api/internal/authprovider"
)

// SessionCookieName carries the provider access token for browser clients.
// API clients may send it as a bearer token instead.
const SessionCookieName = "atelier_session"

// SessionTokenFromRequest extracts the access token from the bearer header
// or the session cookie, in that order.
func SessionTokenFromRequest(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
			return parts[1], true
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

// RequireSession verifies the session token locally and stores the
// principal on the request context. It performs no identity resolution.
func RequireSession(verifier *authprovider.SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := SessionTokenFromRequest(r)
			if !ok {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			principal, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, "invalid session", http.StatusUnauthorized)
				return
			}
			ctx := WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
