package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityEmail(t *testing.T) {
	team := NewTeamIdentity(TeamIdentity{Email: "ana@atelier.dev"})
	assert.Equal(t, "ana@atelier.dev", team.Email())

	client := NewClientIdentity(ClientIdentity{Email: "owner@client.com"})
	assert.Equal(t, "owner@client.com", client.Email())

	assert.Equal(t, "", Identity{}.Email())
}

func TestIdentityCanInvite(t *testing.T) {
	tests := []struct {
		name     string
		identity Identity
		want     bool
	}{
		{"team admin", NewTeamIdentity(TeamIdentity{Role: TeamRoleAdmin}), true},
		{"team moderator", NewTeamIdentity(TeamIdentity{Role: TeamRoleModerator}), true},
		{"team member", NewTeamIdentity(TeamIdentity{Role: TeamRoleTeamMember}), false},
		{"client owner", NewClientIdentity(ClientIdentity{Role: ClientRoleOwner, CanManageTeam: true}), false},
		{"zero identity", Identity{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.identity.CanInvite())
		})
	}
}

func TestIdentityTaggedUnionShape(t *testing.T) {
	team := NewTeamIdentity(TeamIdentity{ID: "p-1"})
	assert.Equal(t, IdentityKindTeam, team.Kind)
	assert.NotNil(t, team.Team)
	assert.Nil(t, team.Client)

	client := NewClientIdentity(ClientIdentity{ID: "p-2"})
	assert.Equal(t, IdentityKindClient, client.Kind)
	assert.NotNil(t, client.Client)
	assert.Nil(t, client.Team)
}
