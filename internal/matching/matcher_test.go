package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/taxdesk/internal/config"
	"github.com/hyperjump/taxdesk/internal/models"
)

func TestMatch_taxNumberOnly(t *testing.T) {
	c := models.Candidate{
		Identification: models.Identification{TaxNumber: "123-456"},
		Contact:        models.ContactInfo{Email: "a@b.com"},
	}
	clients := []models.Client{{ID: 1, Type: models.ClientNatural, LastName: "X", TaxNumber: "ABC123-456XYZ", Email: "other@b.com"}}

	res := NewMatcher(DefaultWeights()).Match(c, clients)
	require.NotNil(t, res.Client)
	assert.InDelta(t, 0.4, res.Confidence, 1e-9)
	assert.Equal(t, []string{"Tax number match: 123-456"}, res.Reasons)
}

func TestMatch_emptyClients(t *testing.T) {
	res := NewMatcher(DefaultWeights()).Match(models.Candidate{}, nil)
	assert.Nil(t, res.Client)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestMatch_zeroScoreStillReturned(t *testing.T) {
	clients := []models.Client{{ID: 7, Type: models.ClientCompany, CompanyName: "ACME"}}
	res := NewMatcher(DefaultWeights()).Match(models.Candidate{}, clients)
	require.NotNil(t, res.Client)
	assert.Equal(t, int64(7), res.Client.ID)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Empty(t, res.Reasons)
}

func TestMatch_tieKeepsFirst(t *testing.T) {
	c := models.Candidate{Contact: models.ContactInfo{City: "München"}}
	clients := []models.Client{
		{ID: 1, Type: models.ClientNatural, LastName: "A", AddressCity: "München"},
		{ID: 2, Type: models.ClientNatural, LastName: "B", AddressCity: "MÜNCHEN"},
	}
	res := NewMatcher(DefaultWeights()).Match(c, clients)
	assert.Equal(t, int64(1), res.Client.ID)
	assert.InDelta(t, 0.05, res.Confidence, 1e-9)
}

func TestMatch_bestWins(t *testing.T) {
	c := models.Candidate{
		Person:  models.PersonInfo{FirstName: "max", LastName: "Mustermann"},
		Contact: models.ContactInfo{Email: "MAX@example.com", Phone: "089 / 123 456", City: "Berlin", PostalCode: "10115"},
	}
	clients := []models.Client{
		{ID: 1, Type: models.ClientNatural, FirstName: "Erika", LastName: "Mustermann"},
		{ID: 2, Type: models.ClientNatural, FirstName: "Max", LastName: "Mustermann", Email: "max@example.com",
			Phone: "089 123456", AddressCity: "Berlin", AddressZip: "10115"},
		{ID: 3, Type: models.ClientCompany, CompanyName: "Mustermann GmbH", Email: "max@example.com"},
	}
	res := NewMatcher(DefaultWeights()).Match(c, clients)
	require.NotNil(t, res.Client)
	assert.Equal(t, int64(2), res.Client.ID)
	assert.InDelta(t, 0.3+0.15+0.15+0.1+0.05+0.05, res.Confidence, 1e-9)
	assert.Equal(t, []string{
		"Email exact match: MAX@example.com",
		"First name match: max",
		"Last name match: Mustermann",
		"Phone number match",
		"City match: Berlin",
		"Postal code match: 10115",
	}, res.Reasons)
}

func TestScore_companyIgnoresPersonNames(t *testing.T) {
	m := NewMatcher(DefaultWeights())
	c := models.Candidate{
		Person:  models.PersonInfo{LastName: "Muster"},
		Company: models.CompanyInfo{CompanyName: "muster"},
	}
	score, reasons := m.Score(c, &models.Client{Type: models.ClientCompany, CompanyName: "Muster GmbH"})
	assert.InDelta(t, 0.25, score, 1e-9)
	assert.Equal(t, []string{"Company name match: muster"}, reasons)

	score, _ = m.Score(c, &models.Client{Type: models.ClientNatural, LastName: "Muster", CompanyName: ""})
	assert.InDelta(t, 0.15, score, 1e-9)
}

func TestScore_shortPhoneIgnored(t *testing.T) {
	m := NewMatcher(DefaultWeights())
	c := models.Candidate{Contact: models.ContactInfo{Phone: "12345"}}
	score, _ := m.Score(c, &models.Client{Type: models.ClientNatural, LastName: "X", Phone: "0123456"})
	assert.Equal(t, 0.0, score)

	score, _ = m.Score(models.Candidate{Contact: models.ContactInfo{Phone: "123456"}},
		&models.Client{Type: models.ClientCompany, CompanyName: "Y", ContactPhone: "0049 123456 0"})
	assert.InDelta(t, 0.1, score, 1e-9)
}

func TestScore_monotonic(t *testing.T) {
	m := NewMatcher(DefaultWeights())
	client := &models.Client{
		Type: models.ClientNatural, FirstName: "Max", LastName: "Mustermann", Email: "m@x.de",
		TaxNumber: "111/222/33333", Phone: "0891234567", AddressCity: "Köln", AddressZip: "50667",
	}
	steps := []func(*models.Candidate){
		func(c *models.Candidate) { c.Identification.TaxNumber = "222/33333" },
		func(c *models.Candidate) { c.Contact.Email = "M@X.DE" },
		func(c *models.Candidate) { c.Person.FirstName = "Max" },
		func(c *models.Candidate) { c.Person.LastName = "Mustermann" },
		func(c *models.Candidate) { c.Contact.Phone = "089-1234567" },
		func(c *models.Candidate) { c.Contact.City = "köln" },
		func(c *models.Candidate) { c.Contact.PostalCode = "50667" },
	}
	var cand models.Candidate
	prev, _ := m.Score(cand, client)
	for i, step := range steps {
		step(&cand)
		score, reasons := m.Score(cand, client)
		assert.Greater(t, score, prev, "step %d", i)
		assert.Len(t, reasons, i+1)
		prev = score
	}
	// Additive scores are not capped.
	assert.Greater(t, prev, 1.0)
}

func TestMatch_deterministic(t *testing.T) {
	m := NewMatcher(DefaultWeights())
	c := models.Candidate{Contact: models.ContactInfo{Email: "a@b.de"}}
	clients := []models.Client{{ID: 1, Type: models.ClientNatural, LastName: "A", Email: "a@b.de"}}
	assert.Equal(t, m.Match(c, clients), m.Match(c, clients))
}

func TestWeightsFromConfig(t *testing.T) {
	w := WeightsFromConfig(config.MatchingConfig{TaxNumberWeight: 0.5, EmailWeight: -1})
	assert.Equal(t, 0.5, w.TaxNumber)
	assert.Equal(t, 0.0, w.Email)
}

func TestClientFields_person(t *testing.T) {
	got := ClientFields(&models.Client{
		Type: models.ClientNatural, FirstName: "Max", LastName: "Mustermann", BirthDate: "1980-02-01",
		Email: "m@x.de", Phone: "089 1", TaxNumber: "111", AddressStreet: "Hauptstr.", AddressNumber: "5",
		AddressZip: "80331", AddressCity: "München",
	})
	assert.Equal(t, map[string]any{
		"client_first_name":   "Max",
		"client_vorname":      "Max",
		"client_last_name":    "Mustermann",
		"client_nachname":     "Mustermann",
		"client_full_name":    "Max Mustermann",
		"client_name":         "Max Mustermann",
		"client_birth_date":   "1980-02-01",
		"client_geburtsdatum": "01.02.1980",
		"client_email":        "m@x.de",
		"client_phone":        "089 1",
		"client_telefon":      "089 1",
		"client_tax_number":   "111",
		"client_steuernummer": "111",
		"client_street":       "Hauptstr. 5",
		"client_strasse":      "Hauptstr. 5",
		"client_postal_code":  "80331",
		"client_plz":          "80331",
		"client_city":         "München",
		"client_stadt":        "München",
		"client_address":      "Hauptstr. 5, 80331, München",
		"client_adresse":      "Hauptstr. 5, 80331, München",
	}, got)
}

func TestClientFields_company(t *testing.T) {
	got := ClientFields(&models.Client{
		Type: models.ClientCompany, CompanyName: "ACME GmbH", ContactLastName: "Schmidt", ContactPhone: "030 9",
		AddressCity: "Berlin",
	})
	assert.Equal(t, "ACME GmbH", got["client_name"])
	assert.Equal(t, "ACME GmbH", got["client_firma"])
	assert.Equal(t, "Schmidt", got["client_ansprechpartner"])
	assert.Equal(t, "030 9", got["client_telefon"])
	assert.Equal(t, "Berlin", got["client_address"])
	assert.NotContains(t, got, "client_first_name")
	assert.Empty(t, ClientFields(nil))
}
