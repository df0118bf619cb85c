package models

// PersonInfo is the person part of a candidate.
type PersonInfo struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	Title     string `json:"title,omitempty"`
	BirthDate string `json:"birth_date,omitempty"`
}

// CompanyInfo is the company part of a candidate.
type CompanyInfo struct {
	CompanyName   string `json:"company_name,omitempty"`
	LegalForm     string `json:"legal_form,omitempty"`
	ContactPerson string `json:"contact_person,omitempty"`
}

// ContactInfo is the contact part of a candidate.
type ContactInfo struct {
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// Identification holds tax and registration identifiers.
type Identification struct {
	TaxNumber         string `json:"tax_number,omitempty"`
	VATID             string `json:"vat_id,omitempty"`
	BusinessRegNumber string `json:"business_reg_number,omitempty"`
}

// Candidate is unverified client information extracted from document text.
// It is recomputed on every run and never persisted.
type Candidate struct {
	Person            PersonInfo     `json:"person_info"`
	Company           CompanyInfo    `json:"company_info"`
	Contact           ContactInfo    `json:"contact_info"`
	Identification    Identification `json:"identification"`
	DocumentTypeHints []string       `json:"document_type_hints"`
	Confidence        float64        `json:"confidence"`
}
