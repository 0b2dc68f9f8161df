package repository

import (
	"database/sql"
	"time"

	"github.com/atelierhq/atelier-api/internal/models"
)

type InvitationRepository interface {
	Create(invitation models.Invitation) (models.Invitation, error)
	GetByTokenHash(tokenHash string) (models.Invitation, error)
	GetByID(id string) (models.Invitation, error)
	List(status models.InvitationStatus, limit, offset int) ([]models.Invitation, error)
	CountByStatus() (map[models.InvitationStatus]int, error)
	MarkAccepted(id string, acceptedAt time.Time) (models.Invitation, error)
	MarkExpired(id string) (models.Invitation, error)
	MarkCancelled(id string) (models.Invitation, error)
	Renew(id string, expiresAt time.Time) (models.Invitation, error)
	RotateToken(id, tokenHash string, expiresAt time.Time) (models.Invitation, error)
	Delete(id string) error
}

type invitationRepository struct {
	db *sql.DB
}

func NewInvitationRepository(db *sql.DB) InvitationRepository {
	return &invitationRepository{db: db}
}

const invitationColumns = `id, email, full_name, role, company_name, phone, invited_by, token_hash, status, expires_at, accepted_at, created_at, updated_at`

func (r *invitationRepository) Create(invitation models.Invitation) (models.Invitation, error) {
	const query = `
		INSERT INTO app.invitations (email, full_name, role, company_name, phone, invited_by, token_hash, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8)
		RETURNING ` + invitationColumns + `;
	`

	row := r.db.QueryRow(query,
		invitation.Email,
		invitation.FullName,
		invitation.Role,
		invitation.CompanyName,
		invitation.Phone,
		invitation.InvitedBy,
		invitation.TokenHash,
		invitation.ExpiresAt,
	)
	created, err := scanInvitation(row)
	if err != nil {
		if isUniqueViolation(err, "invitations_pending_email_idx") {
			return models.Invitation{}, ErrDuplicatePendingInvitation
		}
		return models.Invitation{}, err
	}
	return created, nil
}

func (r *invitationRepository) GetByTokenHash(tokenHash string) (models.Invitation, error) {
	const query = `
		SELECT ` + invitationColumns + `
		FROM app.invitations
		WHERE token_hash = $1;
	`
	return scanInvitation(r.db.QueryRow(query, tokenHash))
}

func (r *invitationRepository) GetByID(id string) (models.Invitation, error) {
	const query = `
		SELECT ` + invitationColumns + `
		FROM app.invitations
		WHERE id = $1;
	`
	return scanInvitation(r.db.QueryRow(query, id))
}

func (r *invitationRepository) List(status models.InvitationStatus, limit, offset int) ([]models.Invitation, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}

	const query = `
		SELECT ` + invitationColumns + `
		FROM app.invitations
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3;
	`

	rows, err := r.db.Query(query, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []models.Invitation
	for rows.Next() {
		invitation, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, invitation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invitations, nil
}

func (r *invitationRepository) CountByStatus() (map[models.InvitationStatus]int, error) {
	const query = `
		SELECT status, COUNT(*)
		FROM app.invitations
		GROUP BY status;
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.InvitationStatus]int)
	for rows.Next() {
		var (
			status models.InvitationStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// MarkAccepted performs the pending -> accepted transition as a single
// conditional update. A concurrent acceptance that loses the race observes
// ErrNotPending, never a silent overwrite.
func (r *invitationRepository) MarkAccepted(id string, acceptedAt time.Time) (models.Invitation, error) {
	const query = `
		UPDATE app.invitations
		SET status = 'accepted', accepted_at = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + invitationColumns + `;
	`
	return r.conditionalTransition(query, id, acceptedAt)
}

func (r *invitationRepository) MarkExpired(id string) (models.Invitation, error) {
	const query = `
		UPDATE app.invitations
		SET status = 'expired', updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + invitationColumns + `;
	`
	return r.conditionalTransition(query, id)
}

func (r *invitationRepository) MarkCancelled(id string) (models.Invitation, error) {
	const query = `
		UPDATE app.invitations
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + invitationColumns + `;
	`
	return r.conditionalTransition(query, id)
}

func (r *invitationRepository) Renew(id string, expiresAt time.Time) (models.Invitation, error) {
	const query = `
		UPDATE app.invitations
		SET expires_at = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + invitationColumns + `;
	`
	return r.conditionalTransition(query, id, expiresAt)
}

// RotateToken replaces the stored token hash alongside the expiry renewal.
// Resend rotates because only the hash survives creation; the previous
// link stops working the moment the new one is delivered.
func (r *invitationRepository) RotateToken(id, tokenHash string, expiresAt time.Time) (models.Invitation, error) {
	const query = `
		UPDATE app.invitations
		SET token_hash = $2, expires_at = $3, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + invitationColumns + `;
	`
	return r.conditionalTransition(query, id, tokenHash, expiresAt)
}

func (r *invitationRepository) conditionalTransition(query string, id string, args ...interface{}) (models.Invitation, error) {
	queryArgs := append([]interface{}{id}, args...)
	invitation, err := scanInvitation(r.db.QueryRow(query, queryArgs...))
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Invitation{}, ErrNotPending
		}
		return models.Invitation{}, err
	}
	return invitation, nil
}

// Delete removes an invitation outright. Only used to roll back a freshly
// created invitation whose notification email could not be delivered.
func (r *invitationRepository) Delete(id string) error {
	const query = `
		DELETE FROM app.invitations
		WHERE id = $1;
	`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanInvitation(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Invitation, error) {
	var (
		invitation  models.Invitation
		companyName sql.NullString
		phone       sql.NullString
		acceptedAt  sql.NullTime
	)

	if err := scanner.Scan(
		&invitation.ID,
		&invitation.Email,
		&invitation.FullName,
		&invitation.Role,
		&companyName,
		&phone,
		&invitation.InvitedBy,
		&invitation.TokenHash,
		&invitation.Status,
		&invitation.ExpiresAt,
		&acceptedAt,
		&invitation.CreatedAt,
		&invitation.UpdatedAt,
	); err != nil {
		return models.Invitation{}, err
	}

	if companyName.Valid {
		invitation.CompanyName = &companyName.String
	}
	if phone.Valid {
		invitation.Phone = &phone.String
	}
	if acceptedAt.Valid {
		t := acceptedAt.Time
		invitation.AcceptedAt = &t
	}

	return invitation, nil
}
