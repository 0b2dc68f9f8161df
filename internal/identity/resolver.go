package identity

import (
	"context"
	"database/sql"
	"errors"

	"github.com/atelierhq/atelier-api/internal/models"
	"github.com/atelierhq/atelier-api/internal/notification"
	"github.com/atelierhq/atelier-api/internal/repository"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound means the principal is authenticated at the provider but
	// has no application-level identity. That is a provisioning bug, not a
	// user error.
	ErrNotFound = errors.New("no identity for principal")

	// ErrConflict means the principal exists in both identity stores. The
	// resolver never picks one silently.
	ErrConflict = errors.New("principal resolves to multiple identities")
)

// Resolver maps a provider principal id onto exactly one of the two
// identity shapes. Read-only; idempotent for a given principal id.
type Resolver struct {
	clientRepo repository.ClientRepository
	teamRepo   repository.TeamRepository
	alarms     notification.Service
	logger     zerolog.Logger
}

func NewResolver(clientRepo repository.ClientRepository, teamRepo repository.TeamRepository, alarms notification.Service, logger zerolog.Logger) *Resolver {
	return &Resolver{
		clientRepo: clientRepo,
		teamRepo:   teamRepo,
		alarms:     alarms,
		logger:     logger.With().Str("component", "identity_resolver").Logger(),
	}
}

// Resolve checks the client-contact store first: clients are the
// externally facing population, and checking them first avoids granting
// team-level trust to a client record in a shared id namespace.
func (r *Resolver) Resolve(ctx context.Context, principalID string) (models.Identity, error) {
	client, clientErr := r.clientRepo.GetByPrincipalID(principalID)
	if clientErr != nil && !errors.Is(clientErr, sql.ErrNoRows) {
		return models.Identity{}, clientErr
	}
	clientFound := clientErr == nil

	team, teamErr := r.teamRepo.GetByPrincipalID(principalID)
	if teamErr != nil && !errors.Is(teamErr, sql.ErrNoRows) {
		return models.Identity{}, teamErr
	}
	teamFound := teamErr == nil

	switch {
	case clientFound && teamFound:
		r.logger.Error().Str("principal_id", principalID).Msg("principal present in both identity stores")
		if r.alarms != nil {
			if err := r.alarms.NotifyIdentityConflict(ctx, principalID); err != nil {
				r.logger.Warn().Err(err).Str("principal_id", principalID).Msg("failed to raise conflict alarm")
			}
		}
		return models.Identity{}, ErrConflict
	case clientFound:
		return models.NewClientIdentity(client), nil
	case teamFound:
		return models.NewTeamIdentity(team), nil
	}

	return models.Identity{}, ErrNotFound
}
