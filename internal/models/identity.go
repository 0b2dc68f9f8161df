package models

import "time"

// IdentityKind distinguishes the two user populations behind a principal id.
type IdentityKind string

const (
	IdentityKindTeam   IdentityKind = "team"
	IdentityKindClient IdentityKind = "client"
)

type TeamRole string

const (
	TeamRoleAdmin      TeamRole = "admin"
	TeamRoleTeamMember TeamRole = "team_member"
	TeamRoleModerator  TeamRole = "moderator"
)

type ClientRole string

const (
	ClientRoleOwner   ClientRole = "owner"
	ClientRoleTech    ClientRole = "tech"
	ClientRoleMedia   ClientRole = "media"
	ClientRoleFinance ClientRole = "finance"
	ClientRoleMember  ClientRole = "member"
)

type TeamStatus string

const (
	TeamStatusActive   TeamStatus = "active"
	TeamStatusInactive TeamStatus = "inactive"
)

type CompanyStatus string

const (
	CompanyStatusProspect CompanyStatus = "prospect"
	CompanyStatusActive   CompanyStatus = "active"
	CompanyStatusInactive CompanyStatus = "inactive"
)

// Company is the client company a contact belongs to. Its status gates all
// portal access for its contacts.
type Company struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Status CompanyStatus `json:"status"`
}

type TeamIdentity struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Role      TeamRole   `json:"role"`
	Status    TeamStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type ClientIdentity struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FullName         string     `json:"full_name"`
	Role             ClientRole `json:"role"`
	ClientCompanyID  string     `json:"client_company_id"`
	Company          Company    `json:"company"`
	IsPrimaryContact bool       `json:"is_primary_contact"`
	IsBillingContact bool       `json:"is_billing_contact"`
	CanManageTeam    bool       `json:"can_manage_team"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Identity is a closed tagged union: exactly one of Team or Client is set,
// indicated by Kind. A principal id resolves to at most one shape.
type Identity struct {
	Kind   IdentityKind    `json:"kind"`
	Team   *TeamIdentity   `json:"team,omitempty"`
	Client *ClientIdentity `json:"client,omitempty"`
}

func NewTeamIdentity(t TeamIdentity) Identity {
	return Identity{Kind: IdentityKindTeam, Team: &t}
}

func NewClientIdentity(c ClientIdentity) Identity {
	return Identity{Kind: IdentityKindClient, Client: &c}
}

// Email returns the identity's email regardless of shape.
func (i Identity) Email() string {
	switch i.Kind {
	case IdentityKindTeam:
		return i.Team.Email
	case IdentityKindClient:
		return i.Client.Email
	}
	return ""
}

// CanInvite reports whether the identity may create and manage invitations.
func (i Identity) CanInvite() bool {
	return i.Kind == IdentityKindTeam &&
		(i.Team.Role == TeamRoleAdmin || i.Team.Role == TeamRoleModerator)
}

func IsValidTeamRole(role TeamRole) bool {
	switch role {
	case TeamRoleAdmin, TeamRoleTeamMember, TeamRoleModerator:
		return true
	}
	return false
}

func IsValidClientRole(role ClientRole) bool {
	switch role {
	case ClientRoleOwner, ClientRoleTech, ClientRoleMedia, ClientRoleFinance, ClientRoleMember:
		return true
	}
	return false
}
