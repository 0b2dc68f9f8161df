package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/atelierhq/atelier-api/internal/authprovider"
	"github.com/atelierhq/atelier-api/internal/authz"
	"github.com/rs/zerolog"
)

type AuthHandler struct {
	auth   *authprovider.Client
	logger zerolog.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func NewAuthHandler(auth *authprovider.Client, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger.With().Str("handler", "auth").Logger(),
	}
}

// Login proxies the password grant to the auth provider and sets the
// session cookie the route guard verifies.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "invalid request payload")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials", "email and password are required")
		return
	}

	session, err := h.auth.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, authprovider.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
			return
		}
		h.logger.Error().Err(err).Msg("sign in failed")
		writeError(w, http.StatusBadGateway, "provider_unavailable", "authentication service unavailable")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authz.SessionCookieName,
		Value:    session.AccessToken,
		Path:     "/",
		Expires:  time.Now().Add(time.Duration(session.ExpiresIn) * time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": session.AccessToken,
		"expires_in":   session.ExpiresIn,
		"user": map[string]string{
			"id":    session.User.ID,
			"email": session.User.Email,
		},
	})
}

// Logout clears the session cookie. The provider session itself expires
// on its own schedule.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authz.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}
