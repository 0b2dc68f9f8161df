package models

import "time"

type InvitationStatus string

const (
	InvitationStatusPending   InvitationStatus = "pending"
	InvitationStatusAccepted  InvitationStatus = "accepted"
	InvitationStatusExpired   InvitationStatus = "expired"
	InvitationStatusCancelled InvitationStatus = "cancelled"
)

// Invitation is a time-boxed, single-use offer to create an identity.
// The raw token is only ever returned at creation time; the record keeps
// a sha256 hash.
type Invitation struct {
	ID          string           `json:"id"`
	Email       string           `json:"email"`
	FullName    string           `json:"full_name"`
	Role        string           `json:"role"`
	CompanyName *string          `json:"company_name,omitempty"`
	Phone       *string          `json:"phone,omitempty"`
	InvitedBy   string           `json:"invited_by"`
	TokenHash   string           `json:"-"`
	Status      InvitationStatus `json:"status"`
	ExpiresAt   time.Time        `json:"expires_at"`
	AcceptedAt  *time.Time       `json:"accepted_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// IsExpired determines whether the invitation has passed its expiry window.
func (i Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// IsTerminal reports whether the status can never change again.
func (i Invitation) IsTerminal() bool {
	switch i.Status {
	case InvitationStatusAccepted, InvitationStatusExpired, InvitationStatusCancelled:
		return true
	}
	return false
}

// IsClientRole reports whether the invited role belongs to the client
// contact namespace rather than the team namespace.
func (i Invitation) IsClientRole() bool {
	return IsValidClientRole(ClientRole(i.Role))
}

// IsValidInvitationRole accepts roles from either namespace.
func IsValidInvitationRole(role string) bool {
	return IsValidTeamRole(TeamRole(role)) || IsValidClientRole(ClientRole(role))
}

func IsValidInvitationStatus(status InvitationStatus) bool {
	switch status {
	case InvitationStatusPending, InvitationStatusAccepted, InvitationStatusExpired, InvitationStatusCancelled:
		return true
	}
	return false
}
