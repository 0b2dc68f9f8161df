package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/atelierhq/atelier-api/internal/models"
	"github.com/atelierhq/atelier-api/internal/repository"
	"github.com/rs/zerolog"
)

type Event struct {
	Event    models.NotificationEvent
	Severity models.NotificationSeverity
	Title    string
	Message  string
	Metadata map[string]interface{}
}

// Service records operational events and fans them out to the configured
// notifiers. Identity conflicts and compensation failures are the two
// events operators are expected to act on.
type Service interface {
	Publish(ctx context.Context, evt Event) (models.Notification, error)
	NotifyInvitationSent(ctx context.Context, invitationID, email, role string) error
	NotifyInvitationAccepted(ctx context.Context, invitationID, email, principalID string) error
	NotifyIdentityConflict(ctx context.Context, principalID string) error
	NotifyCompensationFailed(ctx context.Context, principalID, invitationID, reason string) error
	ListRecent(ctx context.Context, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID string) (models.Notification, error)
}

type service struct {
	repo      repository.NotificationRepository
	logger    zerolog.Logger
	notifiers []Notifier
}

func NewService(repo repository.NotificationRepository, logger zerolog.Logger, notifiers ...Notifier) Service {
	active := make([]Notifier, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier != nil {
			active = append(active, notifier)
		}
	}
	return &service{
		repo:      repo,
		logger:    logger.With().Str("component", "notification_service").Logger(),
		notifiers: active,
	}
}

func (s *service) Publish(ctx context.Context, evt Event) (models.Notification, error) {
	if evt.Event == "" {
		return models.Notification{}, fmt.Errorf("event type is required")
	}
	if evt.Severity == "" {
		evt.Severity = models.NotificationSeverityInfo
	}
	title := strings.TrimSpace(evt.Title)
	message := strings.TrimSpace(evt.Message)
	if title == "" {
		title = string(evt.Event)
	}
	params := repository.CreateNotificationParams{
		Event:    evt.Event,
		Severity: evt.Severity,
		Title:    title,
		Message:  message,
		Metadata: evt.Metadata,
	}

	notif, err := s.repo.Create(ctx, params)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", string(evt.Event)).Msg("failed to persist notification")
		return models.Notification{}, err
	}
	for _, notifier := range s.notifiers {
		if err := notifier.Notify(ctx, notif); err != nil {
			logNotifyError(s.logger, err, notifierChannelName(notifier), notif)
		}
	}
	return notif, nil
}

func (s *service) NotifyInvitationSent(ctx context.Context, invitationID, email, role string) error {
	_, err := s.Publish(ctx, Event{
		Event:    models.NotificationEventInvitationSent,
		Severity: models.NotificationSeverityInfo,
		Title:    "Invitation sent",
		Message:  fmt.Sprintf("Invitation delivered to %s for role %s.", email, role),
		Metadata: map[string]interface{}{
			"invitation_id": invitationID,
			"email":         email,
			"role":          role,
		},
	})
	return err
}

func (s *service) NotifyInvitationAccepted(ctx context.Context, invitationID, email, principalID string) error {
	_, err := s.Publish(ctx, Event{
		Event:    models.NotificationEventInvitationAccepted,
		Severity: models.NotificationSeverityInfo,
		Title:    "Invitation accepted",
		Message:  fmt.Sprintf("%s accepted their invitation.", email),
		Metadata: map[string]interface{}{
			"invitation_id": invitationID,
			"email":         email,
			"principal_id":  principalID,
		},
	})
	return err
}

// NotifyIdentityConflict records a principal present in both identity
// stores. This indicates upstream data corruption, never user error.
func (s *service) NotifyIdentityConflict(ctx context.Context, principalID string) error {
	if strings.TrimSpace(principalID) == "" {
		return fmt.Errorf("principal id is required for conflict notifications")
	}
	_, err := s.Publish(ctx, Event{
		Event:    models.NotificationEventIdentityConflict,
		Severity: models.NotificationSeverityError,
		Title:    "Identity conflict",
		Message:  fmt.Sprintf("Principal %s exists in both the team and client stores.", principalID),
		Metadata: map[string]interface{}{
			"principal_id": principalID,
		},
	})
	return err
}

// NotifyCompensationFailed escalates a provisioning rollback that itself
// failed. Recovery requires manual operator intervention.
func (s *service) NotifyCompensationFailed(ctx context.Context, principalID, invitationID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown error"
	}
	_, err := s.Publish(ctx, Event{
		Event:    models.NotificationEventCompensationFailed,
		Severity: models.NotificationSeverityError,
		Title:    "Provisioning compensation failed",
		Message:  fmt.Sprintf("Credential %s could not be rolled back after a failed provisioning: %s", principalID, reason),
		Metadata: map[string]interface{}{
			"principal_id":  principalID,
			"invitation_id": invitationID,
			"reason":        reason,
		},
	})
	return err
}

func (s *service) ListRecent(ctx context.Context, limit int) ([]models.Notification, error) {
	return s.repo.ListRecent(ctx, limit)
}

func (s *service) MarkRead(ctx context.Context, notificationID string) (models.Notification, error) {
	return s.repo.MarkRead(ctx, notificationID)
}

func notifierChannelName(n Notifier) string {
	type named interface {
		String() string
	}
	if v, ok := n.(named); ok {
		return v.String()
	}
	return fmt.Sprintf("%T", n)
}
