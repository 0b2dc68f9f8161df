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

var invitationCols = []string{
	"id", "email", "full_name", "role", "company_name", "phone",
	"invited_by", "token_hash", "status", "expires_at", "accepted_at",
	"created_at", "updated_at",
}

func invitationRow(id string, status models.InvitationStatus, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(invitationCols).AddRow(
		id, "x@y.dev", "X", "team_member", nil, nil,
		"admin-1", "hash", string(status), now.Add(7*24*time.Hour), nil,
		now, now,
	)
}

func newMockRepo(t *testing.T) (InvitationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewInvitationRepository(db), mock
}

func TestInvitationCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO app.invitations")).
		WithArgs("x@y.dev", "X", "team_member", nil, nil, "admin-1", "hash", sqlmock.AnyArg()).
		WillReturnRows(invitationRow("inv-1", models.InvitationStatusPending, now))

	created, err := repo.Create(models.Invitation{
		Email:     "x@y.dev",
		FullName:  "X",
		Role:      "team_member",
		InvitedBy: "admin-1",
		TokenHash: "hash",
		ExpiresAt: now.Add(7 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "inv-1", created.ID)
	assert.Equal(t, models.InvitationStatusPending, created.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The partial unique index on pending emails translates to the duplicate
// sentinel instead of a raw driver error.
func TestInvitationCreateDuplicatePending(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO app.invitations")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "invitations_pending_email_idx"})

	_, err := repo.Create(models.Invitation{Email: "x@y.dev"})
	assert.ErrorIs(t, err, ErrDuplicatePendingInvitation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationGetByTokenHash(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE token_hash = $1")).
		WithArgs("hash").
		WillReturnRows(invitationRow("inv-1", models.InvitationStatusPending, now))

	invitation, err := repo.GetByTokenHash("hash")
	require.NoError(t, err)
	assert.Equal(t, "inv-1", invitation.ID)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE token_hash = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByTokenHash("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationMarkAccepted(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SET status = 'accepted'")).
		WithArgs("inv-1", now).
		WillReturnRows(invitationRow("inv-1", models.InvitationStatusAccepted, now))

	accepted, err := repo.MarkAccepted("inv-1", now)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationStatusAccepted, accepted.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A conditional transition that matches no row means the invitation left
// the pending state; the caller sees ErrNotPending, never a silent no-op.
func TestInvitationConditionalTransitionLosesRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SET status = 'accepted'")).
		WithArgs("inv-1", now).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.MarkAccepted("inv-1", now)
	assert.ErrorIs(t, err, ErrNotPending)

	mock.ExpectQuery(regexp.QuoteMeta("SET status = 'cancelled'")).
		WithArgs("inv-1").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.MarkCancelled("inv-1")
	assert.ErrorIs(t, err, ErrNotPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRotateToken(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()
	expires := now.Add(7 * 24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SET token_hash = $2")).
		WithArgs("inv-1", "new-hash", expires).
		WillReturnRows(invitationRow("inv-1", models.InvitationStatusPending, now))

	_, err := repo.RotateToken("inv-1", "new-hash", expires)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationList(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	rows := invitationRow("inv-1", models.InvitationStatusPending, now).AddRow(
		"inv-2", "b@y.dev", "B", "moderator", nil, nil,
		"admin-1", "hash2", "pending", now.Add(7*24*time.Hour), nil,
		now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM app.invitations")).
		WithArgs("pending", 25, 0).
		WillReturnRows(rows)

	invitations, err := repo.List(models.InvitationStatusPending, 0, -5)
	require.NoError(t, err)
	assert.Len(t, invitations, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationCountByStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 3).
			AddRow("accepted", 7))

	counts, err := repo.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, 3, counts[models.InvitationStatusPending])
	assert.Equal(t, 7, counts[models.InvitationStatusAccepted])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationDelete(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM app.invitations")).
		WithArgs("inv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete("inv-1"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM app.invitations")).
		WithArgs("inv-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete("inv-missing"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
