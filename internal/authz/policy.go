package authz

import "github.com/atelierhq/atelier-api/internal/models"

// ResourceScope classifies what population a resource serves.
type ResourceScope string

const (
	ScopePublic ResourceScope = "public"
	ScopeTeam   ResourceScope = "team"
	ScopeClient ResourceScope = "client"
	ScopeAdmin  ResourceScope = "admin"
)

// Resource describes the target of an authorization decision.
type Resource struct {
	Name               string
	Scope              ResourceScope
	RequiresTeamManage bool
}

type DenyReason string

const (
	DenyCompanyInactive        DenyReason = "company_inactive"
	DenyInsufficientRole       DenyReason = "insufficient_role"
	DenyWrongIdentityKind      DenyReason = "wrong_identity_kind"
	DenyInsufficientCapability DenyReason = "insufficient_capability"
)

type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Authorize is the capability policy: a total, I/O-free function from a
// resolved identity and a target resource to an allow/deny decision.
// Rules are evaluated in order; the company-activation gate comes first
// and suppresses access regardless of role.
func Authorize(identity models.Identity, resource Resource) Decision {
	if identity.Kind == models.IdentityKindClient && identity.Client.Company.Status != models.CompanyStatusActive {
		return deny(DenyCompanyInactive)
	}

	if resource.Scope == ScopeAdmin {
		if identity.Kind != models.IdentityKindTeam || identity.Team.Role != models.TeamRoleAdmin {
			return deny(DenyInsufficientRole)
		}
	}

	// Team members do not implicitly inherit client-portal access.
	if resource.Scope == ScopeClient && identity.Kind == models.IdentityKindTeam {
		return deny(DenyWrongIdentityKind)
	}

	if resource.RequiresTeamManage && identity.Kind == models.IdentityKindClient && !identity.Client.CanManageTeam {
		return deny(DenyInsufficientCapability)
	}

	return allow()
}
