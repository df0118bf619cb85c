package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/hyperjump/taxdesk/internal/models"
)

const clientColumns = `id, client_type, mandate_manager, email, phone, tax_number, tax_office,
	address_street, address_number, address_zip, address_city, salutation, title, first_name,
	last_name, birth_date, tax_id, company_name, legal_form, vat_id, contact_salutation,
	contact_last_name, contact_phone, contact_email, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (*models.Client, error) {
	var c models.Client
	err := row.Scan(&c.ID, &c.Type, &c.MandateManager, &c.Email, &c.Phone, &c.TaxNumber, &c.TaxOffice,
		&c.AddressStreet, &c.AddressNumber, &c.AddressZip, &c.AddressCity, &c.Salutation, &c.Title,
		&c.FirstName, &c.LastName, &c.BirthDate, &c.TaxID, &c.CompanyName, &c.LegalForm, &c.VATID,
		&c.ContactSalutation, &c.ContactLastName, &c.ContactPhone, &c.ContactEmail,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateClient validates and inserts a client, setting its ID and timestamps.
func (s *Store) CreateClient(ctx context.Context, c *models.Client) error {
	if err := c.Validate(); err != nil {
		return eris.Wrap(err, "invalid client")
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	id, err := s.insert(ctx,
		`INSERT INTO clients (client_type, mandate_manager, email, phone, tax_number, tax_office,
			address_street, address_number, address_zip, address_city, salutation, title, first_name,
			last_name, birth_date, tax_id, company_name, legal_form, vat_id, contact_salutation,
			contact_last_name, contact_phone, contact_email, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Type, c.MandateManager, c.Email, c.Phone, c.TaxNumber, c.TaxOffice,
		c.AddressStreet, c.AddressNumber, c.AddressZip, c.AddressCity, c.Salutation, c.Title, c.FirstName,
		c.LastName, c.BirthDate, c.TaxID, c.CompanyName, c.LegalForm, c.VATID, c.ContactSalutation,
		c.ContactLastName, c.ContactPhone, c.ContactEmail, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "insert client")
	}
	c.ID = id
	return nil
}

// GetClient returns a client by ID.
func (s *Store) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	c, err := scanClient(s.queryRow(ctx, "SELECT "+clientColumns+" FROM clients WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "client %d", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "get client")
	}
	return c, nil
}

// ListClients returns every client ordered by ID.
func (s *Store) ListClients(ctx context.Context) ([]*models.Client, error) {
	rows, err := s.query(ctx, "SELECT "+clientColumns+" FROM clients ORDER BY id")
	if err != nil {
		return nil, eris.Wrap(err, "list clients")
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, eris.Wrap(err, "scan client")
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// DeleteClient removes a client together with its work orders.
func (s *Store) DeleteClient(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "clients", id)
}

// CountClients returns the number of clients.
func (s *Store) CountClients(ctx context.Context) (int64, error) {
	var n int64
	err := s.queryRow(ctx, "SELECT COUNT(*) FROM clients").Scan(&n)
	return n, err
}

// CreateTaxAdvisor validates and inserts a tax advisor.
func (s *Store) CreateTaxAdvisor(ctx context.Context, a *models.TaxAdvisor) error {
	if err := a.Validate(); err != nil {
		return eris.Wrap(err, "invalid tax advisor")
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	id, err := s.insert(ctx,
		`INSERT INTO tax_advisors (name, email, phone, address, tax_number, specialization, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Name, a.Email, a.Phone, a.Address, a.TaxNumber, a.Specialization, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "insert tax advisor")
	}
	a.ID = id
	return nil
}

const advisorColumns = `id, name, email, phone, address, tax_number, specialization, created_at, updated_at`

func scanAdvisor(row scanner) (*models.TaxAdvisor, error) {
	var a models.TaxAdvisor
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.Address, &a.TaxNumber, &a.Specialization,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetTaxAdvisor returns a tax advisor by ID.
func (s *Store) GetTaxAdvisor(ctx context.Context, id int64) (*models.TaxAdvisor, error) {
	a, err := scanAdvisor(s.queryRow(ctx, "SELECT "+advisorColumns+" FROM tax_advisors WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "tax advisor %d", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "get tax advisor")
	}
	return a, nil
}

// FirstTaxAdvisor returns the advisor with the lowest ID, or ErrNotFound when none exist.
func (s *Store) FirstTaxAdvisor(ctx context.Context) (*models.TaxAdvisor, error) {
	a, err := scanAdvisor(s.queryRow(ctx, "SELECT "+advisorColumns+" FROM tax_advisors ORDER BY id LIMIT 1"))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "no tax advisor configured")
	}
	if err != nil {
		return nil, eris.Wrap(err, "get first tax advisor")
	}
	return a, nil
}

// ListTaxAdvisors returns every tax advisor ordered by ID.
func (s *Store) ListTaxAdvisors(ctx context.Context) ([]*models.TaxAdvisor, error) {
	rows, err := s.query(ctx, "SELECT "+advisorColumns+" FROM tax_advisors ORDER BY id")
	if err != nil {
		return nil, eris.Wrap(err, "list tax advisors")
	}
	defer rows.Close()

	var out []*models.TaxAdvisor
	for rows.Next() {
		a, err := scanAdvisor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "scan tax advisor")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
