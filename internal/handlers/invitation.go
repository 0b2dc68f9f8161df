package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/atelierhq/atelier-api/internal/authprovider"
	"github.com/atelierhq/atelier-api/internal/authz"
	"github.com/atelierhq/atelier-api/internal/identity"
	"github.com/atelierhq/atelier-api/internal/invitation"
	"github.com/atelierhq/atelier-api/internal/models"
	"github.com/atelierhq/atelier-api/internal/provision"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type InvitationHandler struct {
	service  invitation.Service
	resolver *identity.Resolver
	logger   zerolog.Logger
}

type createInvitationRequest struct {
	Email       string  `json:"email"`
	FullName    string  `json:"full_name"`
	Role        string  `json:"role"`
	CompanyName *string `json:"company_name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
}

type updateInvitationRequest struct {
	Action string `json:"action"`
}

type acceptInvitationRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func NewInvitationHandler(service invitation.Service, resolver *identity.Resolver, logger zerolog.Logger) *InvitationHandler {
	return &InvitationHandler{
		service:  service,
		resolver: resolver,
		logger:   logger.With().Str("handler", "invitation").Logger(),
	}
}

func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.resolveCaller(w, r)
	if !ok {
		return
	}

	var payload createInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "invalid request payload")
		return
	}

	created, token, err := h.service.Create(r.Context(), invitation.CreateParams{
		Email:       payload.Email,
		FullName:    payload.FullName,
		Role:        payload.Role,
		CompanyName: payload.CompanyName,
		Phone:       payload.Phone,
	}, caller)
	if err != nil {
		h.writeInvitationError(w, err)
		return
	}

	response := struct {
		models.Invitation
		Token string `json:"token"`
	}{Invitation: created, Token: token}

	writeJSON(w, http.StatusCreated, response)
}

func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.resolveCaller(w, r)
	if !ok {
		return
	}

	if decision := authz.Authorize(caller, authz.Resource{Name: "invitations", Scope: authz.ScopeAdmin}); !decision.Allowed {
		writeError(w, http.StatusForbidden, string(decision.Reason), "access denied")
		return
	}

	query := r.URL.Query()
	status := models.InvitationStatus(strings.TrimSpace(query.Get("status")))
	if status != "" && !models.IsValidInvitationStatus(status) {
		writeError(w, http.StatusBadRequest, "invalid_status", "unknown invitation status")
		return
	}
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	result, err := h.service.List(r.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list invitations")
		writeError(w, http.StatusInternalServerError, "internal", "failed to list invitations")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *InvitationHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.resolveCaller(w, r)
	if !ok {
		return
	}
	if !caller.CanInvite() {
		writeError(w, http.StatusForbidden, "insufficient_role", "access denied")
		return
	}

	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_id", "invitation id is required")
		return
	}

	var payload updateInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "invalid request payload")
		return
	}

	var (
		updated models.Invitation
		err     error
	)
	switch strings.TrimSpace(strings.ToLower(payload.Action)) {
	case "resend":
		updated, err = h.service.Resend(r.Context(), id)
	case "extend":
		updated, err = h.service.Extend(r.Context(), id)
	case "cancel":
		updated, err = h.service.Cancel(r.Context(), id)
	default:
		writeError(w, http.StatusBadRequest, "invalid_action", "action must be resend, extend, or cancel")
		return
	}
	if err != nil {
		// For management actions a non-pending invitation is a bad request,
		// not a conflict: the caller is acting on stale state.
		if errors.Is(err, invitation.ErrNotPending) || errors.Is(err, invitation.ErrExpired) {
			writeError(w, http.StatusBadRequest, "not_pending", "invitation is no longer pending")
			return
		}
		h.writeInvitationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// Preview validates a token and returns the sanitized fields an acceptance
// form needs. The token hash and inviter are never exposed.
func (h *InvitationHandler) Preview(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))

	invite, err := h.service.Validate(r.Context(), token)
	if err != nil {
		// A consumed invitation link is gone, not in conflict: the GET
		// preview has no acceptance attempt to conflict with.
		if errors.Is(err, invitation.ErrNotPending) {
			writeError(w, http.StatusGone, "not_pending", "invitation is no longer pending")
			return
		}
		h.writeInvitationError(w, err)
		return
	}

	response := struct {
		Email       string  `json:"email"`
		FullName    string  `json:"full_name"`
		Role        string  `json:"role"`
		CompanyName *string `json:"company_name,omitempty"`
		ExpiresAt   string  `json:"expires_at"`
	}{
		Email:       invite.Email,
		FullName:    invite.FullName,
		Role:        invite.Role,
		CompanyName: invite.CompanyName,
		ExpiresAt:   invite.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var payload acceptInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "invalid request payload")
		return
	}

	resolved, err := h.service.Accept(r.Context(), payload.Token, payload.Password)
	if err != nil {
		h.writeInvitationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, identitySummary(resolved))
}

func (h *InvitationHandler) resolveCaller(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	principal, ok := authz.PrincipalFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return models.Identity{}, false
	}

	caller, err := h.resolver.Resolve(r.Context(), principal.ID)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrNotFound):
			writeError(w, http.StatusForbidden, "no_identity", "access denied")
		case errors.Is(err, identity.ErrConflict):
			writeError(w, http.StatusConflict, "identity_conflict", "identity could not be resolved")
		default:
			h.logger.Error().Err(err).Msg("failed to resolve caller identity")
			writeError(w, http.StatusInternalServerError, "internal", "failed to resolve identity")
		}
		return models.Identity{}, false
	}
	return caller, true
}

func (h *InvitationHandler) writeInvitationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, invitation.ErrForbidden):
		writeError(w, http.StatusForbidden, "insufficient_role", "access denied")
	case errors.Is(err, invitation.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "invalid_email", "a valid email address is required")
	case errors.Is(err, invitation.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, "invalid_role", "unknown role")
	case errors.Is(err, invitation.ErrMissingCompany):
		writeError(w, http.StatusBadRequest, "missing_company", "client invitations require a company name")
	case errors.Is(err, invitation.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "weak_password", "password must be at least 8 characters")
	case errors.Is(err, invitation.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "duplicate_email", "an account already exists for this email")
	case errors.Is(err, invitation.ErrDuplicatePendingInvitation):
		writeError(w, http.StatusConflict, "duplicate_pending_invitation", "a pending invitation already exists for this email")
	case errors.Is(err, authprovider.ErrEmailRegistered):
		writeError(w, http.StatusConflict, "duplicate_email", "an account already exists for this email")
	case errors.Is(err, invitation.ErrInvalidToken):
		writeError(w, http.StatusNotFound, "invalid_token", "invitation not found")
	case errors.Is(err, invitation.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "invitation not found")
	case errors.Is(err, invitation.ErrExpired):
		writeError(w, http.StatusGone, "expired", "invitation has expired; request a new one")
	case errors.Is(err, invitation.ErrNotPending):
		writeError(w, http.StatusConflict, "not_pending", "invitation is no longer pending")
	case errors.Is(err, invitation.ErrDeliveryFailed):
		writeError(w, http.StatusBadGateway, "delivery_failed", "invitation email could not be delivered")
	case errors.Is(err, provision.ErrCompanyNotFound):
		writeError(w, http.StatusInternalServerError, "company_not_found", "the target company could not be found")
	case errors.Is(err, provision.ErrProvisioningFailed):
		writeError(w, http.StatusInternalServerError, "provisioning_failed", "account could not be provisioned")
	default:
		h.logger.Error().Err(err).Msg("invitation operation failed")
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
