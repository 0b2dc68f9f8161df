package invitation

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/atelierhq/atelier-api/internal/models"
	"github.com/atelierhq/atelier-api/internal/notification"
	"github.com/atelierhq/atelier-api/internal/repository"
	"github.com/rs/zerolog"
)

const DefaultTTL = 7 * 24 * time.Hour

var (
	ErrForbidden      = errors.New("caller may not manage invitations")
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrInvalidRole    = errors.New("invalid invitation role")
	ErrMissingCompany = errors.New("client invitations require a company name")
	ErrInvalidToken   = errors.New("invalid invitation token")
	ErrExpired        = errors.New("invitation has expired")
	ErrNotFound       = errors.New("invitation not found")
	ErrWeakPassword   = errors.New("password must be at least 8 characters")
	ErrDeliveryFailed = errors.New("invitation email could not be delivered")

	// Store-level sentinels surface unchanged so handlers map them once.
	ErrNotPending                 = repository.ErrNotPending
	ErrDuplicateEmail             = repository.ErrDuplicateEmail
	ErrDuplicatePendingInvitation = repository.ErrDuplicatePendingInvitation
)

type CreateParams struct {
	Email       string
	FullName    string
	Role        string
	CompanyName *string
	Phone       *string
}

// AccountProvisioner runs the credential + identity-row saga at acceptance.
type AccountProvisioner interface {
	Provision(ctx context.Context, invitation models.Invitation, password string) (models.Identity, error)
}

// ListResult bundles a page of invitations with aggregate status counts.
type ListResult struct {
	Invitations []models.Invitation             `json:"invitations"`
	Counts      map[models.InvitationStatus]int `json:"counts"`
}

// Service drives the invitation state machine. Expiry is lazy: every read
// path flips an overdue pending invitation before acting on it.
type Service interface {
	Create(ctx context.Context, params CreateParams, invitedBy models.Identity) (models.Invitation, string, error)
	Validate(ctx context.Context, token string) (models.Invitation, error)
	Accept(ctx context.Context, token, password string) (models.Identity, error)
	Resend(ctx context.Context, id string) (models.Invitation, error)
	Extend(ctx context.Context, id string) (models.Invitation, error)
	Cancel(ctx context.Context, id string) (models.Invitation, error)
	List(ctx context.Context, status models.InvitationStatus, limit, offset int) (ListResult, error)
}

type service struct {
	repo        repository.InvitationRepository
	teamRepo    repository.TeamRepository
	clientRepo  repository.ClientRepository
	provisioner AccountProvisioner
	mailer      notification.InvitationMailer
	alarms      notification.Service
	urlTpl      string
	ttl         time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

func NewService(
	repo repository.InvitationRepository,
	teamRepo repository.TeamRepository,
	clientRepo repository.ClientRepository,
	provisioner AccountProvisioner,
	mailer notification.InvitationMailer,
	alarms notification.Service,
	inviteURLTemplate string,
	ttl time.Duration,
	logger zerolog.Logger,
) Service {
	if inviteURLTemplate == "" {
		inviteURLTemplate = "https://app.atelierhq.dev/invitations/accept?token=%s"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &service{
		repo:        repo,
		teamRepo:    teamRepo,
		clientRepo:  clientRepo,
		provisioner: provisioner,
		mailer:      mailer,
		alarms:      alarms,
		urlTpl:      inviteURLTemplate,
		ttl:         ttl,
		now:         time.Now,
		logger:      logger.With().Str("component", "invitation_service").Logger(),
	}
}

func (s *service) Create(ctx context.Context, params CreateParams, invitedBy models.Identity) (models.Invitation, string, error) {
	if !invitedBy.CanInvite() {
		return models.Invitation{}, "", ErrForbidden
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return models.Invitation{}, "", ErrInvalidEmail
	}

	role := strings.TrimSpace(strings.ToLower(params.Role))
	if !models.IsValidInvitationRole(role) {
		return models.Invitation{}, "", ErrInvalidRole
	}
	if models.IsValidClientRole(models.ClientRole(role)) {
		if params.CompanyName == nil || strings.TrimSpace(*params.CompanyName) == "" {
			return models.Invitation{}, "", ErrMissingCompany
		}
	}

	// Pre-check only; the store's unique constraints remain the source of
	// truth for both conditions.
	if err := s.checkEmailUnused(email); err != nil {
		return models.Invitation{}, "", err
	}

	token, err := generateToken()
	if err != nil {
		return models.Invitation{}, "", err
	}

	invitation, err := s.repo.Create(models.Invitation{
		Email:       email,
		FullName:    strings.TrimSpace(params.FullName),
		Role:        role,
		CompanyName: params.CompanyName,
		Phone:       params.Phone,
		InvitedBy:   invitedBy.Team.ID,
		TokenHash:   hashToken(token),
		ExpiresAt:   s.now().Add(s.ttl),
	})
	if err != nil {
		return models.Invitation{}, "", err
	}

	// No invitation may exist without a delivered notification: a failed
	// send rolls the record back.
	if err := s.mailer.SendInvitation(invitation.Email, invitation.FullName, fmt.Sprintf(s.urlTpl, token)); err != nil {
		s.logger.Warn().Err(err).Str("invitation_id", invitation.ID).Msg("invitation email failed; rolling back")
		if delErr := s.repo.Delete(invitation.ID); delErr != nil {
			s.logger.Error().Err(delErr).Str("invitation_id", invitation.ID).Msg("failed to roll back undelivered invitation")
		}
		return models.Invitation{}, "", ErrDeliveryFailed
	}

	if s.alarms != nil {
		if err := s.alarms.NotifyInvitationSent(ctx, invitation.ID, invitation.Email, invitation.Role); err != nil {
			s.logger.Warn().Err(err).Str("invitation_id", invitation.ID).Msg("failed to record invitation_sent event")
		}
	}

	return invitation, token, nil
}

// Validate resolves a token to its invitation, lazily expiring overdue
// pending invitations so callers never see a stale pending view.
func (s *service) Validate(ctx context.Context, token string) (models.Invitation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.Invitation{}, ErrInvalidToken
	}

	invitation, err := s.repo.GetByTokenHash(hashToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Invitation{}, ErrInvalidToken
		}
		return models.Invitation{}, err
	}

	return s.applyLazyExpiry(invitation)
}

func (s *service) Accept(ctx context.Context, token, password string) (models.Identity, error) {
	invitation, err := s.Validate(ctx, token)
	if err != nil {
		return models.Identity{}, err
	}

	if len(strings.TrimSpace(password)) < 8 {
		return models.Identity{}, ErrWeakPassword
	}

	// Re-check before touching the credential store: a racing manual
	// provisioning must fail here with no credential created.
	if err := s.checkEmailUnused(invitation.Email); err != nil {
		return models.Identity{}, err
	}

	identity, err := s.provisioner.Provision(ctx, invitation, password)
	if err != nil {
		return models.Identity{}, err
	}

	// Single conditional update guarded on status = pending; a losing
	// concurrent acceptance observes ErrNotPending.
	accepted, err := s.repo.MarkAccepted(invitation.ID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			s.logger.Error().
				Str("invitation_id", invitation.ID).
				Str("email", invitation.Email).
				Msg("invitation left pending state after provisioning; identity may need manual review")
		}
		return models.Identity{}, err
	}

	if s.alarms != nil {
		principalID := ""
		switch identity.Kind {
		case models.IdentityKindTeam:
			principalID = identity.Team.ID
		case models.IdentityKindClient:
			principalID = identity.Client.ID
		}
		if err := s.alarms.NotifyInvitationAccepted(ctx, accepted.ID, accepted.Email, principalID); err != nil {
			s.logger.Warn().Err(err).Str("invitation_id", accepted.ID).Msg("failed to record invitation_accepted event")
		}
	}

	return identity, nil
}

// Resend rotates the token and renews the expiry, but only after the new
// link was delivered. A failed send mutates nothing.
func (s *service) Resend(ctx context.Context, id string) (models.Invitation, error) {
	invitation, err := s.getPending(id)
	if err != nil {
		return models.Invitation{}, err
	}

	token, err := generateToken()
	if err != nil {
		return models.Invitation{}, err
	}

	if err := s.mailer.SendInvitation(invitation.Email, invitation.FullName, fmt.Sprintf(s.urlTpl, token)); err != nil {
		return models.Invitation{}, ErrDeliveryFailed
	}

	return s.repo.RotateToken(invitation.ID, hashToken(token), s.now().Add(s.ttl))
}

func (s *service) Extend(ctx context.Context, id string) (models.Invitation, error) {
	invitation, err := s.getPending(id)
	if err != nil {
		return models.Invitation{}, err
	}
	return s.repo.Renew(invitation.ID, s.now().Add(s.ttl))
}

func (s *service) Cancel(ctx context.Context, id string) (models.Invitation, error) {
	invitation, err := s.getPending(id)
	if err != nil {
		return models.Invitation{}, err
	}
	return s.repo.MarkCancelled(invitation.ID)
}

func (s *service) List(ctx context.Context, status models.InvitationStatus, limit, offset int) (ListResult, error) {
	invitations, err := s.repo.List(status, limit, offset)
	if err != nil {
		return ListResult{}, err
	}
	counts, err := s.repo.CountByStatus()
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Invitations: invitations, Counts: counts}, nil
}

func (s *service) getPending(id string) (models.Invitation, error) {
	invitation, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Invitation{}, ErrNotFound
		}
		return models.Invitation{}, err
	}

	invitation, err = s.applyLazyExpiry(invitation)
	if err != nil {
		return models.Invitation{}, err
	}
	return invitation, nil
}

func (s *service) applyLazyExpiry(invitation models.Invitation) (models.Invitation, error) {
	switch invitation.Status {
	case models.InvitationStatusPending:
		if invitation.IsExpired(s.now()) {
			expired, err := s.repo.MarkExpired(invitation.ID)
			if err != nil && !errors.Is(err, repository.ErrNotPending) {
				return models.Invitation{}, err
			}
			if err == nil {
				invitation = expired
			} else {
				invitation.Status = models.InvitationStatusExpired
			}
			return invitation, ErrExpired
		}
		return invitation, nil
	case models.InvitationStatusExpired:
		return invitation, ErrExpired
	default:
		return invitation, ErrNotPending
	}
}

func (s *service) checkEmailUnused(email string) error {
	if _, err := s.clientRepo.GetByEmail(email); err == nil {
		return ErrDuplicateEmail
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if _, err := s.teamRepo.GetByEmail(email); err == nil {
		return ErrDuplicateEmail
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return nil
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
