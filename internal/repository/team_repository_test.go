package repository

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/atelierhq/atelier-api/internal/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func teamRow(id string, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "full_name", "role", "status", "created_at", "updated_at"}).
		AddRow(id, "ana@atelier.dev", "Ana", "admin", "active", now, now)
}

func TestTeamGetByPrincipalID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTeamRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM app.team_profiles")).
		WithArgs("p-1").
		WillReturnRows(teamRow("p-1", time.Now()))

	identity, err := repo.GetByPrincipalID("p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", identity.ID)
	assert.Equal(t, models.TeamRoleAdmin, identity.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Email lookups are case-insensitive; the mock only checks the argument
// passes through unchanged.
func TestTeamGetByEmailMiss(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTeamRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("lower(email) = lower($1)")).
		WithArgs("nobody@atelier.dev").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByEmail("nobody@atelier.dev")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeamCreateDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTeamRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO app.team_profiles")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "team_profiles_email_idx"})

	_, err = repo.Create(CreateTeamProfileParams{
		PrincipalID: "p-1",
		Email:       "taken@atelier.dev",
		FullName:    "Taken",
		Role:        models.TeamRoleTeamMember,
	})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}, ""))
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505", Constraint: "some_idx"}, "some_idx"))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23505", Constraint: "other_idx"}, "some_idx"))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}, ""))
	assert.False(t, isUniqueViolation(sql.ErrNoRows, ""))
}
