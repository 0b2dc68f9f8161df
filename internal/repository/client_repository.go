package repository

import (
	"database/sql"

	"github.com/atelierhq/atelier-api/internal/models"
)

type CreateClientContactParams struct {
	PrincipalID     string
	Email           string
	FullName        string
	Role            models.ClientRole
	ClientCompanyID string
	Phone           *string
}

type ClientRepository interface {
	GetByPrincipalID(principalID string) (models.ClientIdentity, error)
	GetByEmail(email string) (models.ClientIdentity, error)
	CreateContact(params CreateClientContactParams) (models.ClientIdentity, error)
	GetCompanyByName(name string) (models.Company, error)
	GetCompanyByID(id string) (models.Company, error)
}

type clientRepository struct {
	db *sql.DB
}

func NewClientRepository(db *sql.DB) ClientRepository {
	return &clientRepository{db: db}
}

// Contact rows are always read joined to their owning company so callers
// get the activation status in the same round trip.
const clientColumns = `
	c.id, c.email, c.full_name, c.role, c.client_company_id,
	c.is_primary_contact, c.is_billing_contact, c.can_manage_team,
	c.created_at, c.updated_at,
	co.id, co.name, co.status`

func (r *clientRepository) GetByPrincipalID(principalID string) (models.ClientIdentity, error) {
	const query = `
		SELECT ` + clientColumns + `
		FROM app.client_contacts c
		JOIN app.client_companies co ON co.id = c.client_company_id
		WHERE c.id = $1;
	`
	return scanClientIdentity(r.db.QueryRow(query, principalID))
}

func (r *clientRepository) GetByEmail(email string) (models.ClientIdentity, error) {
	const query = `
		SELECT ` + clientColumns + `
		FROM app.client_contacts c
		JOIN app.client_companies co ON co.id = c.client_company_id
		WHERE lower(c.email) = lower($1);
	`
	return scanClientIdentity(r.db.QueryRow(query, email))
}

func (r *clientRepository) CreateContact(params CreateClientContactParams) (models.ClientIdentity, error) {
	const query = `
		INSERT INTO app.client_contacts (id, email, full_name, role, client_company_id, phone)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id;
	`

	var id string
	err := r.db.QueryRow(query,
		params.PrincipalID,
		params.Email,
		params.FullName,
		params.Role,
		params.ClientCompanyID,
		params.Phone,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, "") {
			return models.ClientIdentity{}, ErrDuplicateEmail
		}
		return models.ClientIdentity{}, err
	}

	return r.GetByPrincipalID(id)
}

func (r *clientRepository) GetCompanyByName(name string) (models.Company, error) {
	const query = `
		SELECT id, name, status
		FROM app.client_companies
		WHERE lower(name) = lower($1);
	`
	return scanCompany(r.db.QueryRow(query, name))
}

func (r *clientRepository) GetCompanyByID(id string) (models.Company, error) {
	const query = `
		SELECT id, name, status
		FROM app.client_companies
		WHERE id = $1;
	`
	return scanCompany(r.db.QueryRow(query, id))
}

func scanCompany(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Company, error) {
	var company models.Company
	if err := scanner.Scan(&company.ID, &company.Name, &company.Status); err != nil {
		return models.Company{}, err
	}
	return company, nil
}

func scanClientIdentity(scanner interface {
	Scan(dest ...interface{}) error
}) (models.ClientIdentity, error) {
	var identity models.ClientIdentity
	if err := scanner.Scan(
		&identity.ID,
		&identity.Email,
		&identity.FullName,
		&identity.Role,
		&identity.ClientCompanyID,
		&identity.IsPrimaryContact,
		&identity.IsBillingContact,
		&identity.CanManageTeam,
		&identity.CreatedAt,
		&identity.UpdatedAt,
		&identity.Company.ID,
		&identity.Company.Name,
		&identity.Company.Status,
	); err != nil {
		return models.ClientIdentity{}, err
	}
	return identity, nil
}
