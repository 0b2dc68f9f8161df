package repository

import (
	"database/sql"

	"github.com/atelierhq/atelier-api/internal/models"
)

type CreateTeamProfileParams struct {
	PrincipalID string
	Email       string
	FullName    string
	Role        models.TeamRole
}

type TeamRepository interface {
	GetByPrincipalID(principalID string) (models.TeamIdentity, error)
	GetByEmail(email string) (models.TeamIdentity, error)
	Create(params CreateTeamProfileParams) (models.TeamIdentity, error)
	List() ([]models.TeamIdentity, error)
}

type teamRepository struct {
	db *sql.DB
}

func NewTeamRepository(db *sql.DB) TeamRepository {
	return &teamRepository{db: db}
}

const teamColumns = `id, email, full_name, role, status, created_at, updated_at`

func (r *teamRepository) GetByPrincipalID(principalID string) (models.TeamIdentity, error) {
	const query = `
		SELECT ` + teamColumns + `
		FROM app.team_profiles
		WHERE id = $1;
	`
	return scanTeamIdentity(r.db.QueryRow(query, principalID))
}

func (r *teamRepository) GetByEmail(email string) (models.TeamIdentity, error) {
	const query = `
		SELECT ` + teamColumns + `
		FROM app.team_profiles
		WHERE lower(email) = lower($1);
	`
	return scanTeamIdentity(r.db.QueryRow(query, email))
}

// Create inserts a team profile keyed by the auth provider's principal id.
func (r *teamRepository) Create(params CreateTeamProfileParams) (models.TeamIdentity, error) {
	const query = `
		INSERT INTO app.team_profiles (id, email, full_name, role, status)
		VALUES ($1, $2, $3, $4, 'active')
		RETURNING ` + teamColumns + `;
	`

	identity, err := scanTeamIdentity(r.db.QueryRow(query,
		params.PrincipalID,
		params.Email,
		params.FullName,
		params.Role,
	))
	if err != nil {
		if isUniqueViolation(err, "") {
			return models.TeamIdentity{}, ErrDuplicateEmail
		}
		return models.TeamIdentity{}, err
	}
	return identity, nil
}

func (r *teamRepository) List() ([]models.TeamIdentity, error) {
	const query = `
		SELECT ` + teamColumns + `
		FROM app.team_profiles
		ORDER BY email;
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []models.TeamIdentity
	for rows.Next() {
		identity, err := scanTeamIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return identities, nil
}

func scanTeamIdentity(scanner interface {
	Scan(dest ...interface{}) error
}) (models.TeamIdentity, error) {
	var identity models.TeamIdentity
	if err := scanner.Scan(
		&identity.ID,
		&identity.Email,
		&identity.FullName,
		&identity.Role,
		&identity.Status,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	); err != nil {
		return models.TeamIdentity{}, err
	}
	return identity, nil
}
