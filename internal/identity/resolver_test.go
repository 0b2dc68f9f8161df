package identity

import (
	"context"
	"database/sql"
	"testing"

	"github.com/atelierhq/atelier-api/internal/models"
	"github.com/atelierhq/atelier-api/internal/notification"
	"github.com/atelierhq/atelier-api/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClientRepo struct {
	byPrincipal map[string]models.ClientIdentity
}

func (f *fakeClientRepo) GetByPrincipalID(principalID string) (models.ClientIdentity, error) {
	if identity, ok := f.byPrincipal[principalID]; ok {
		return identity, nil
	}
	return models.ClientIdentity{}, sql.ErrNoRows
}

func (f *fakeClientRepo) GetByEmail(string) (models.ClientIdentity, error) {
	return models.ClientIdentity{}, sql.ErrNoRows
}

func (f *fakeClientRepo) CreateContact(repository.CreateClientContactParams) (models.ClientIdentity, error) {
	return models.ClientIdentity{}, sql.ErrNoRows
}

func (f *fakeClientRepo) GetCompanyByName(string) (models.Company, error) {
	return models.Company{}, sql.ErrNoRows
}

func (f *fakeClientRepo) GetCompanyByID(string) (models.Company, error) {
	return models.Company{}, sql.ErrNoRows
}

type fakeTeamRepo struct {
	byPrincipal map[string]models.TeamIdentity
}

func (f *fakeTeamRepo) GetByPrincipalID(principalID string) (models.TeamIdentity, error) {
	if identity, ok := f.byPrincipal[principalID]; ok {
		return identity, nil
	}
	return models.TeamIdentity{}, sql.ErrNoRows
}

func (f *fakeTeamRepo) GetByEmail(string) (models.TeamIdentity, error) {
	return models.TeamIdentity{}, sql.ErrNoRows
}

func (f *fakeTeamRepo) Create(repository.CreateTeamProfileParams) (models.TeamIdentity, error) {
	return models.TeamIdentity{}, sql.ErrNoRows
}

func (f *fakeTeamRepo) List() ([]models.TeamIdentity, error) {
	return nil, nil
}

type recordingAlarms struct {
	notification.Service
	conflicts []string
}

func (r *recordingAlarms) NotifyIdentityConflict(_ context.Context, principalID string) error {
	r.conflicts = append(r.conflicts, principalID)
	return nil
}

func newTestResolver(clients *fakeClientRepo, teams *fakeTeamRepo, alarms notification.Service) *Resolver {
	return NewResolver(clients, teams, alarms, zerolog.Nop())
}

func TestResolveClientIdentity(t *testing.T) {
	clients := &fakeClientRepo{byPrincipal: map[string]models.ClientIdentity{
		"p-1": {ID: "p-1", Email: "owner@client.com", Role: models.ClientRoleOwner},
	}}
	teams := &fakeTeamRepo{byPrincipal: map[string]models.TeamIdentity{}}

	resolved, err := newTestResolver(clients, teams, nil).Resolve(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, models.IdentityKindClient, resolved.Kind)
	require.NotNil(t, resolved.Client)
	assert.Equal(t, "owner@client.com", resolved.Client.Email)
	assert.Nil(t, resolved.Team)
}

func TestResolveTeamIdentity(t *testing.T) {
	clients := &fakeClientRepo{byPrincipal: map[string]models.ClientIdentity{}}
	teams := &fakeTeamRepo{byPrincipal: map[string]models.TeamIdentity{
		"p-2": {ID: "p-2", Email: "ana@atelier.dev", Role: models.TeamRoleAdmin},
	}}

	resolved, err := newTestResolver(clients, teams, nil).Resolve(context.Background(), "p-2")
	require.NoError(t, err)
	assert.Equal(t, models.IdentityKindTeam, resolved.Kind)
	require.NotNil(t, resolved.Team)
	assert.Equal(t, "ana@atelier.dev", resolved.Team.Email)
}

func TestResolveUnknownPrincipal(t *testing.T) {
	clients := &fakeClientRepo{byPrincipal: map[string]models.ClientIdentity{}}
	teams := &fakeTeamRepo{byPrincipal: map[string]models.TeamIdentity{}}

	_, err := newTestResolver(clients, teams, nil).Resolve(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

// A principal present in both stores is never silently resolved to one
// shape; the conflict is surfaced and an alarm is raised.
func TestResolveConflict(t *testing.T) {
	clients := &fakeClientRepo{byPrincipal: map[string]models.ClientIdentity{
		"p-3": {ID: "p-3", Email: "dual@example.com"},
	}}
	teams := &fakeTeamRepo{byPrincipal: map[string]models.TeamIdentity{
		"p-3": {ID: "p-3", Email: "dual@example.com"},
	}}
	alarms := &recordingAlarms{}

	_, err := newTestResolver(clients, teams, alarms).Resolve(context.Background(), "p-3")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, []string{"p-3"}, alarms.conflicts)
}

func TestResolveIdempotent(t *testing.T) {
	clients := &fakeClientRepo{byPrincipal: map[string]models.ClientIdentity{
		"p-1": {ID: "p-1", Email: "owner@client.com"},
	}}
	teams := &fakeTeamRepo{byPrincipal: map[string]models.TeamIdentity{}}
	resolver := newTestResolver(clients, teams, nil)

	first, err := resolver.Resolve(context.Background(), "p-1")
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
