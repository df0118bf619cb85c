// Package models defines the core records: clients, tax advisors, templates, work orders and documents.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Client types.
const (
	ClientNatural = "natural"
	ClientCompany = "company"
)

// Client is either a natural person or a company. Exactly one variant's fields are meaningful,
// selected by Type.
type Client struct {
	ID                int64     `json:"id"`
	Type              string    `json:"client_type"`
	MandateManager    string    `json:"mandate_manager,omitempty"`
	Email             string    `json:"email,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	TaxNumber         string    `json:"tax_number,omitempty"`
	TaxOffice         string    `json:"tax_office,omitempty"`
	AddressStreet     string    `json:"address_street,omitempty"`
	AddressNumber     string    `json:"address_number,omitempty"`
	AddressZip        string    `json:"address_zip,omitempty"`
	AddressCity       string    `json:"address_city,omitempty"`
	Salutation        string    `json:"salutation,omitempty"`
	Title             string    `json:"title,omitempty"`
	FirstName         string    `json:"first_name,omitempty"`
	LastName          string    `json:"last_name,omitempty"`
	BirthDate         string    `json:"birth_date,omitempty"` // YYYY-MM-DD
	TaxID             string    `json:"tax_id,omitempty"`
	CompanyName       string    `json:"company_name,omitempty"`
	LegalForm         string    `json:"legal_form,omitempty"`
	VATID             string    `json:"vat_id,omitempty"`
	ContactSalutation string    `json:"contact_salutation,omitempty"`
	ContactLastName   string    `json:"contact_last_name,omitempty"`
	ContactPhone      string    `json:"contact_phone,omitempty"`
	ContactEmail      string    `json:"contact_email,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsCompany reports whether the client is the company variant.
func (c *Client) IsCompany() bool {
	return c.Type == ClientCompany
}

// DisplayName returns the company name or "First Last".
func (c *Client) DisplayName() string {
	if c.IsCompany() {
		return c.CompanyName
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Validate checks the variant invariant and the birth date format.
func (c *Client) Validate() error {
	switch c.Type {
	case ClientNatural:
		if strings.TrimSpace(c.LastName) == "" {
			return fmt.Errorf("natural person requires last_name")
		}
		if c.CompanyName != "" {
			return fmt.Errorf("natural person must not carry company_name")
		}
		if c.BirthDate != "" {
			if _, err := time.Parse("2006-01-02", c.BirthDate); err != nil {
				return fmt.Errorf("birth_date must be YYYY-MM-DD: %w", err)
			}
		}
	case ClientCompany:
		if strings.TrimSpace(c.CompanyName) == "" {
			return fmt.Errorf("company requires company_name")
		}
		if c.FirstName != "" || c.LastName != "" {
			return fmt.Errorf("company must not carry first_name or last_name")
		}
	default:
		return fmt.Errorf("client_type must be %q or %q, got %q", ClientNatural, ClientCompany, c.Type)
	}
	return nil
}

// TaxAdvisor is a Steuerberater who owns work orders.
type TaxAdvisor struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	Address        string    `json:"address,omitempty"`
	TaxNumber      string    `json:"tax_number,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks required fields.
func (a *TaxAdvisor) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(a.Email) == "" {
		return fmt.Errorf("email is required")
	}
	return nil
}
