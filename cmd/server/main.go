package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/rs/zerolog"

	"github.com/atelierhq/atelier-api/internal/authprovider"
	"github.com/atelierhq/atelier-api/internal/config"
	"github.com/atelierhq/atelier-api/internal/handlers"
	"github.com/atelierhq/atelier-api/internal/identity"
	"github.com/atelierhq/atelier-api/internal/invitation"
	"github.com/atelierhq/atelier-api/internal/middleware"
	"github.com/atelierhq/atelier-api/internal/migration"
	"github.com/atelierhq/atelier-api/internal/notification"
	"github.com/atelierhq/atelier-api/internal/provision"
	"github.com/atelierhq/atelier-api/internal/repository"
	"github.com/atelierhq/atelier-api/internal/routes"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config        *config.Config
	db            *sql.DB
	logger        zerolog.Logger
	notifications notification.Service
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	if err := migration.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Initialize the notification service with the email alarm channel.
	notificationRepo := repository.NewNotificationRepository(db)
	emailNotifier, err := notification.NewEmailNotifier(cfg.Email, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("email notifier disabled")
		emailNotifier = nil
	}
	var notifiers []notification.Notifier
	if emailNotifier != nil {
		notifiers = append(notifiers, emailNotifier)
	}
	notificationService := notification.NewService(notificationRepo, logger, notifiers...)

	app := &application{
		config:        cfg,
		db:            db,
		logger:        logger,
		notifications: notificationService,
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter(logger)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins(cfg.CORSAllowedOrigins),
		h.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, logger)

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(logger zerolog.Logger) http.Handler {
	// Repositories
	invitationRepo := repository.NewInvitationRepository(app.db)
	teamRepo := repository.NewTeamRepository(app.db)
	clientRepo := repository.NewClientRepository(app.db)

	// Auth provider clients
	authClient := authprovider.NewClient(app.config.AuthProvider)
	adminClient := authprovider.NewAdminClient(app.config.AuthProvider)
	verifier := authprovider.NewSessionVerifier(app.config.AuthProvider.JWTSecret)

	// Mailer for invitations
	mailer, err := notification.NewSMTPInvitationMailer(app.config.Email)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure invitation mailer")
	}

	// Domain services
	resolver := identity.NewResolver(clientRepo, teamRepo, app.notifications, logger)
	provisioner := provision.New(adminClient, teamRepo, clientRepo, app.notifications, logger)
	invitationService := invitation.NewService(
		invitationRepo,
		teamRepo,
		clientRepo,
		provisioner,
		mailer,
		app.notifications,
		app.config.Email.InviteURLTemplate,
		app.config.InvitationTTL(),
		logger,
	)

	// Handlers
	authHandler := handlers.NewAuthHandler(authClient, logger)
	invitationHandler := handlers.NewInvitationHandler(invitationService, resolver, logger)
	identityHandler := handlers.NewIdentityHandler(resolver, logger)
	notificationHandler := handlers.NewNotificationHandler(app.notifications, resolver, logger)

	router := routes.NewRouter(verifier, authHandler, invitationHandler, identityHandler, notificationHandler)

	// The guard fronts every route: it redirects unauthenticated page
	// requests and handles the OAuth callback before the router sees it.
	guard := middleware.NewGuard(verifier, authClient, logger)
	return guard.Middleware(router)
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}
}
