package matching

import (
	"strings"
	"time"

	"github.com/hyperjump/taxdesk/internal/models"
)

// ClientFields projects a client onto the flat template field names, with English and German
// aliases. Empty attributes are omitted.
func ClientFields(c *models.Client) map[string]any {
	out := map[string]any{}
	if c == nil {
		return out
	}
	set := func(v string, keys ...string) {
		if v == "" {
			return
		}
		for _, k := range keys {
			out[k] = v
		}
	}

	if c.IsCompany() {
		set(c.CompanyName, "client_company_name", "client_name", "client_firma")
		set(c.ContactLastName, "client_contact_person", "client_ansprechpartner")
	} else {
		set(c.FirstName, "client_first_name", "client_vorname")
		set(c.LastName, "client_last_name", "client_nachname")
		if c.FirstName != "" && c.LastName != "" {
			set(c.FirstName+" "+c.LastName, "client_full_name", "client_name")
		}
		if t, err := time.Parse("2006-01-02", c.BirthDate); err == nil {
			out["client_birth_date"] = t.Format("2006-01-02")
			out["client_geburtsdatum"] = t.Format("02.01.2006")
		}
	}

	set(c.Email, "client_email")
	phone := c.Phone
	if phone == "" {
		phone = c.ContactPhone
	}
	set(phone, "client_phone", "client_telefon")
	set(c.TaxNumber, "client_tax_number", "client_steuernummer")

	var address []string
	street := strings.TrimSpace(strings.TrimSpace(c.AddressStreet) + " " + strings.TrimSpace(c.AddressNumber))
	if c.AddressStreet != "" {
		set(street, "client_street", "client_strasse")
		address = append(address, street)
	}
	if c.AddressZip != "" {
		set(c.AddressZip, "client_postal_code", "client_plz")
		address = append(address, c.AddressZip)
	}
	if c.AddressCity != "" {
		set(c.AddressCity, "client_city", "client_stadt")
		address = append(address, c.AddressCity)
	}
	if len(address) > 0 {
		set(strings.Join(address, ", "), "client_address", "client_adresse")
	}
	return out
}
