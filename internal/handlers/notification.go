package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/atelierhq/atelier-api/internal/authz"
	"github.com/atelierhq/atelier-api/internal/identity"
	"github.com/atelierhq/atelier-api/internal/notification"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// NotificationHandler exposes the operational event feed to team admins.
type NotificationHandler struct {
	service  notification.Service
	resolver *identity.Resolver
	logger   zerolog.Logger
}

func NewNotificationHandler(service notification.Service, resolver *identity.Resolver, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service:  service,
		resolver: resolver,
		logger:   logger.With().Str("handler", "notification").Logger(),
	}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	limit := 25
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	notifications, err := h.service.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list notifications")
		writeError(w, http.StatusInternalServerError, "internal", "failed to list notifications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
	})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	notifID := strings.TrimSpace(mux.Vars(r)["notificationID"])
	if notifID == "" {
		writeError(w, http.StatusBadRequest, "invalid_id", "notification id is required")
		return
	}

	notif, err := h.service.MarkRead(r.Context(), notifID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found", "notification not found")
			return
		}
		h.logger.Error().Err(err).Str("notification_id", notifID).Msg("failed to mark notification as read")
		writeError(w, http.StatusInternalServerError, "internal", "failed to update notification")
		return
	}

	writeJSON(w, http.StatusOK, notif)
}

func (h *NotificationHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	principal, ok := authz.PrincipalFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return false
	}
	caller, err := h.resolver.Resolve(r.Context(), principal.ID)
	if err != nil {
		writeError(w, http.StatusForbidden, "access_denied", "access denied")
		return false
	}
	decision := authz.Authorize(caller, authz.Resource{Name: "notifications", Scope: authz.ScopeAdmin})
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, string(decision.Reason), "access denied")
		return false
	}
	return true
}
