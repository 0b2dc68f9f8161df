package provision

import (
	"context"
	"database/sql"

	"github.com/atelierhq/atelier-api/internal/models"
	"github.com/atelierhq/atelier-api/internal/notification"
	"github.com/atelierhq/atelier-api/internal/repository"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	ErrCompanyNotFound    = errors.New("target client company not found")
	ErrProvisioningFailed = errors.New("account provisioning failed")
)

// CredentialStore is the slice of the auth provider admin API the
// provisioner needs. The admin client satisfies it; tests substitute fakes.
type CredentialStore interface {
	CreateUser(ctx context.Context, email, password string, confirmed bool) (string, error)
	DeleteUser(ctx context.Context, principalID string) error
}

// Provisioner creates the credential and the identity row for an accepted
// invitation. The two stores do not share a transaction, so the second
// step failing triggers an explicit compensating delete of the credential.
type Provisioner struct {
	creds      CredentialStore
	teamRepo   repository.TeamRepository
	clientRepo repository.ClientRepository
	alarms     notification.Service
	logger     zerolog.Logger
}

func New(creds CredentialStore, teamRepo repository.TeamRepository, clientRepo repository.ClientRepository, alarms notification.Service, logger zerolog.Logger) *Provisioner {
	return &Provisioner{
		creds:      creds,
		teamRepo:   teamRepo,
		clientRepo: clientRepo,
		alarms:     alarms,
		logger:     logger.With().Str("component", "account_provisioner").Logger(),
	}
}

// Provision runs the create-then-compensate saga. The identity is returned
// only after both the credential and the identity row exist.
func (p *Provisioner) Provision(ctx context.Context, invitation models.Invitation, password string) (models.Identity, error) {
	// The accepted invitation is the proof of email ownership; no second
	// confirmation email.
	principalID, err := p.creds.CreateUser(ctx, invitation.Email, password, true)
	if err != nil {
		return models.Identity{}, err
	}

	if invitation.IsClientRole() {
		return p.provisionClient(ctx, invitation, principalID)
	}
	return p.provisionTeam(ctx, invitation, principalID)
}

func (p *Provisioner) provisionClient(ctx context.Context, invitation models.Invitation, principalID string) (models.Identity, error) {
	companyName := ""
	if invitation.CompanyName != nil {
		companyName = *invitation.CompanyName
	}
	if companyName == "" {
		p.compensate(ctx, principalID, invitation.ID, "invitation carries no company name")
		return models.Identity{}, ErrCompanyNotFound
	}

	company, err := p.clientRepo.GetCompanyByName(companyName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			p.compensate(ctx, principalID, invitation.ID, "company not found: "+companyName)
			return models.Identity{}, ErrCompanyNotFound
		}
		p.compensate(ctx, principalID, invitation.ID, "company lookup failed")
		return models.Identity{}, errors.Wrap(err, "look up company")
	}

	contact, err := p.clientRepo.CreateContact(repository.CreateClientContactParams{
		PrincipalID:     principalID,
		Email:           invitation.Email,
		FullName:        invitation.FullName,
		Role:            models.ClientRole(invitation.Role),
		ClientCompanyID: company.ID,
		Phone:           invitation.Phone,
	})
	if err != nil {
		p.compensate(ctx, principalID, invitation.ID, "client contact insert failed")
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return models.Identity{}, err
		}
		return models.Identity{}, ErrProvisioningFailed
	}

	return models.NewClientIdentity(contact), nil
}

func (p *Provisioner) provisionTeam(ctx context.Context, invitation models.Invitation, principalID string) (models.Identity, error) {
	profile, err := p.teamRepo.Create(repository.CreateTeamProfileParams{
		PrincipalID: principalID,
		Email:       invitation.Email,
		FullName:    invitation.FullName,
		Role:        models.TeamRole(invitation.Role),
	})
	if err != nil {
		p.compensate(ctx, principalID, invitation.ID, "team profile insert failed")
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return models.Identity{}, err
		}
		return models.Identity{}, ErrProvisioningFailed
	}

	return models.NewTeamIdentity(profile), nil
}

// compensate deletes the credential created in step one. A failed delete
// leaves an auth-only account behind and is escalated for manual cleanup;
// nothing further is automated for that case.
func (p *Provisioner) compensate(ctx context.Context, principalID, invitationID, reason string) {
	if err := p.creds.DeleteUser(ctx, principalID); err != nil {
		p.logger.Error().
			Err(err).
			Str("principal_id", principalID).
			Str("invitation_id", invitationID).
			Str("reason", reason).
			Msg("compensating credential delete failed; manual intervention required")
		if p.alarms != nil {
			if alarmErr := p.alarms.NotifyCompensationFailed(ctx, principalID, invitationID, reason); alarmErr != nil {
				p.logger.Warn().Err(alarmErr).Msg("failed to raise compensation alarm")
			}
		}
		return
	}
	p.logger.Info().
		Str("principal_id", principalID).
		Str("invitation_id", invitationID).
		Str("reason", reason).
		Msg("rolled back credential after failed provisioning")
}
