package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/atelierhq/atelier-api/internal/authz"
	"github.com/atelierhq/atelier-api/internal/identity"
	"github.com/atelierhq/atelier-api/internal/models"
	"github.com/rs/zerolog"
)

type IdentityHandler struct {
	resolver *identity.Resolver
	logger   zerolog.Logger
}

func NewIdentityHandler(resolver *identity.Resolver, logger zerolog.Logger) *IdentityHandler {
	return &IdentityHandler{
		resolver: resolver,
		logger:   logger.With().Str("handler", "identity").Logger(),
	}
}

// UserProfile returns the resolved identity for a principal id. Callers
// may always fetch their own profile; fetching someone else's requires a
// team admin.
func (h *IdentityHandler) UserProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := authz.PrincipalFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		userID = principal.ID
	}

	if userID != principal.ID {
		caller, err := h.resolver.Resolve(r.Context(), principal.ID)
		if err != nil {
			writeError(w, http.StatusForbidden, "access_denied", "access denied")
			return
		}
		decision := authz.Authorize(caller, authz.Resource{Name: "user-profile", Scope: authz.ScopeAdmin})
		if !decision.Allowed {
			writeError(w, http.StatusForbidden, string(decision.Reason), "access denied")
			return
		}
	}

	resolved, err := h.resolver.Resolve(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "no identity for this principal")
		case errors.Is(err, identity.ErrConflict):
			writeError(w, http.StatusConflict, "identity_conflict", "principal resolves to multiple identities")
		default:
			h.logger.Error().Err(err).Str("principal_id", userID).Msg("identity resolution failed")
			writeError(w, http.StatusInternalServerError, "internal", "failed to resolve identity")
		}
		return
	}

	writeJSON(w, http.StatusOK, resolved)
}

// identitySummary trims an identity down to the fields a session consumer
// needs right after acceptance.
func identitySummary(resolved models.Identity) map[string]interface{} {
	summary := map[string]interface{}{"kind": resolved.Kind}
	switch resolved.Kind {
	case models.IdentityKindTeam:
		summary["id"] = resolved.Team.ID
		summary["email"] = resolved.Team.Email
		summary["role"] = resolved.Team.Role
	case models.IdentityKindClient:
		summary["id"] = resolved.Client.ID
		summary["email"] = resolved.Client.Email
		summary["role"] = resolved.Client.Role
		summary["client_company_id"] = resolved.Client.ClientCompanyID
	}
	return summary
}
