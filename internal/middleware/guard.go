package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atelierhq/atelier-api/internal/authprovider"
	"github.com/atelierhq/atelier-api/internal/authz"
	"github.com/rs/zerolog"
)

// RouteClass is the static classification the guard applies to every
// inbound path before any handler logic runs.
type RouteClass int

const (
	RoutePublic RouteClass = iota
	RouteTeam
	RouteClient
	RouteAuthOnly
)

const (
	TeamSignInPath   = "/sign-in"
	ClientSignInPath = "/portal/sign-in"
	DefaultPath      = "/dashboard"
	CallbackPath     = "/auth/callback"
)

// ClassifyRoute maps a path onto its protection class. API routes are
// public here; they enforce their own session requirement so the guard
// stays a pure redirect layer for page routes.
func ClassifyRoute(path string) RouteClass {
	switch {
	case path == TeamSignInPath || path == ClientSignInPath:
		return RouteAuthOnly
	case strings.HasPrefix(path, "/portal"):
		return RouteClient
	case strings.HasPrefix(path, "/dashboard") || strings.HasPrefix(path, "/admin") || strings.HasPrefix(path, "/invitations"):
		return RouteTeam
	}
	return RoutePublic
}

// Guard runs once per inbound request. It decides authenticated vs
// unauthenticated from the session token alone and never resolves the
// full identity; role and company checks belong to the capability policy
// inside the handlers.
type Guard struct {
	verifier *authprovider.SessionVerifier
	auth     *authprovider.Client
	logger   zerolog.Logger
}

func NewGuard(verifier *authprovider.SessionVerifier, auth *authprovider.Client, logger zerolog.Logger) *Guard {
	return &Guard{
		verifier: verifier,
		auth:     auth,
		logger:   logger.With().Str("component", "route_guard").Logger(),
	}
}

func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == CallbackPath {
			g.handleCallback(w, r)
			return
		}

		authenticated := false
		if token, ok := authz.SessionTokenFromRequest(r); ok {
			if _, err := g.verifier.Verify(token); err == nil {
				authenticated = true
			}
		}

		switch ClassifyRoute(r.URL.Path) {
		case RouteTeam:
			if !authenticated {
				redirectToSignIn(w, r, TeamSignInPath)
				return
			}
		case RouteClient:
			if !authenticated {
				redirectToSignIn(w, r, ClientSignInPath)
				return
			}
		case RouteAuthOnly:
			if authenticated {
				http.Redirect(w, r, DefaultPath, http.StatusFound)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// handleCallback exchanges an inbound authorization code for a session,
// or classifies a provider-reported error into a user-readable reason.
func (g *Guard) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if providerErr := query.Get("error"); providerErr != "" {
		g.logger.Warn().
			Str("error", providerErr).
			Str("description", query.Get("error_description")).
			Msg("auth provider reported callback error")
		reason := "provider_error"
		if providerErr == "access_denied" {
			reason = "access_denied"
		}
		http.Redirect(w, r, "/?auth_error="+url.QueryEscape(reason), http.StatusFound)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Redirect(w, r, "/?auth_error="+url.QueryEscape("missing_code"), http.StatusFound)
		return
	}

	session, err := g.auth.ExchangeCode(r.Context(), code)
	if err != nil {
		g.logger.Error().Err(err).Msg("authorization code exchange failed")
		http.Redirect(w, r, "/?auth_error="+url.QueryEscape("exchange_failed"), http.StatusFound)
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

	target := sanitizeRedirect(query.Get("redirectTo"))
	separator := "?"
	if strings.Contains(target, "?") {
		separator = "&"
	}
	http.Redirect(w, r, target+separator+"auth_success=1", http.StatusFound)
}

func redirectToSignIn(w http.ResponseWriter, r *http.Request, signInPath string) {
	target := signInPath + "?authRequired=1&redirectTo=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusFound)
}

// sanitizeRedirect only honors same-site relative paths so the return-to
// parameter cannot become an open redirect.
func sanitizeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return DefaultPath
	}
	return target
}
