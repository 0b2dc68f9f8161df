package routes

import (
	"net/http"

	"github.com/atelierhq/atelier-api/internal/authprovider"
	"github.com/atelierhq/atelier-api/internal/authz"
	"github.com/atelierhq/atelier-api/internal/handlers"
	"github.com/gorilla/mux"
)

// NewRouter sets up the API routes. Session-scoped routes verify the
// provider token locally; fine-grained policy checks live in the handlers.
func NewRouter(
	verifier *authprovider.SessionVerifier,
	auth *handlers.AuthHandler,
	invitations *handlers.InvitationHandler,
	identities *handlers.IdentityHandler,
	notifications *handlers.NotificationHandler,
) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Public auth endpoints
	router.HandleFunc("/api/auth/login", auth.Login).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/logout", auth.Logout).Methods(http.MethodPost)

	// Invitation acceptance is reachable without a session; the token is
	// the credential.
	router.HandleFunc("/api/invitations/accept", invitations.Preview).Methods(http.MethodGet)
	router.HandleFunc("/api/invitations/accept", invitations.Accept).Methods(http.MethodPost)

	// Session-scoped endpoints
	requireSession := authz.RequireSession(verifier)

	session := router.PathPrefix("/api").Subrouter()
	session.Use(requireSession)
	session.HandleFunc("/invitations", invitations.Create).Methods(http.MethodPost)
	session.HandleFunc("/invitations", invitations.List).Methods(http.MethodGet)
	session.HandleFunc("/invitations/{id}", invitations.Update).Methods(http.MethodPatch)
	session.HandleFunc("/auth/user-profile", identities.UserProfile).Methods(http.MethodGet)
	session.HandleFunc("/notifications", notifications.List).Methods(http.MethodGet)
	session.HandleFunc("/notifications/{notificationID}/read", notifications.MarkRead).Methods(http.MethodPost)

	return router
}
