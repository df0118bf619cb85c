// Package matching scores known clients against an extracted candidate.
package matching

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/hyperjump/taxdesk/internal/config"
	"github.com/hyperjump/taxdesk/internal/models"
)

// Weights are the per-signal contributions. Scores are additive and not capped at 1.
type Weights struct {
	TaxNumber   float64
	Email       float64
	FirstName   float64
	LastName    float64
	CompanyName float64
	Phone       float64
	City        float64
	PostalCode  float64
}

// DefaultWeights returns the standard weights.
func DefaultWeights() Weights {
	return Weights{
		TaxNumber:   0.4,
		Email:       0.3,
		FirstName:   0.15,
		LastName:    0.15,
		CompanyName: 0.25,
		Phone:       0.1,
		City:        0.05,
		PostalCode:  0.05,
	}
}

// WeightsFromConfig converts the config section. Negative weights are raised to zero so
// that more evidence never lowers a score.
func WeightsFromConfig(c config.MatchingConfig) Weights {
	nonNeg := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}
	return Weights{
		TaxNumber:   nonNeg(c.TaxNumberWeight),
		Email:       nonNeg(c.EmailWeight),
		FirstName:   nonNeg(c.FirstNameWeight),
		LastName:    nonNeg(c.LastNameWeight),
		CompanyName: nonNeg(c.CompanyNameWeight),
		Phone:       nonNeg(c.PhoneWeight),
		City:        nonNeg(c.CityWeight),
		PostalCode:  nonNeg(c.PostalCodeWeight),
	}
}

// Result is the best match. Client is nil only when there were no clients.
type Result struct {
	Client     *models.Client `json:"client"`
	Confidence float64        `json:"confidence"`
	Reasons    []string       `json:"reasons"`
}

// Matcher is stateless apart from its weights.
type Matcher struct {
	w Weights
}

// NewMatcher returns a matcher with weights w.
func NewMatcher(w Weights) *Matcher {
	return &Matcher{w: w}
}

// fold normalizes to NFC and case-folds for comparisons. Casers are stateful, so each call
// gets its own.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// containsFold reports whether needle occurs in haystack ignoring case. Empty inputs never match.
func containsFold(haystack, needle string) bool {
	h, n := fold(haystack), fold(needle)
	return h != "" && n != "" && strings.Contains(h, n)
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// Score evaluates one client. Reasons follow the evaluation order.
func (m *Matcher) Score(c models.Candidate, client *models.Client) (float64, []string) {
	var score float64
	reasons := []string{}

	if tn := c.Identification.TaxNumber; containsFold(client.TaxNumber, tn) {
		score += m.w.TaxNumber
		reasons = append(reasons, "Tax number match: "+tn)
	}
	if e := c.Contact.Email; fold(e) != "" && fold(e) == fold(client.Email) {
		score += m.w.Email
		reasons = append(reasons, "Email exact match: "+e)
	}
	if !client.IsCompany() {
		if fn := c.Person.FirstName; containsFold(client.FirstName, fn) {
			score += m.w.FirstName
			reasons = append(reasons, "First name match: "+fn)
		}
		if ln := c.Person.LastName; containsFold(client.LastName, ln) {
			score += m.w.LastName
			reasons = append(reasons, "Last name match: "+ln)
		}
	} else if cn := c.Company.CompanyName; containsFold(client.CompanyName, cn) {
		score += m.w.CompanyName
		reasons = append(reasons, "Company name match: "+cn)
	}
	if phoneMatches(c.Contact.Phone, client) {
		score += m.w.Phone
		reasons = append(reasons, "Phone number match")
	}
	if city := c.Contact.City; containsFold(client.AddressCity, city) {
		score += m.w.City
		reasons = append(reasons, "City match: "+city)
	}
	if pc := strings.TrimSpace(c.Contact.PostalCode); pc != "" && pc == strings.TrimSpace(client.AddressZip) {
		score += m.w.PostalCode
		reasons = append(reasons, "Postal code match: "+pc)
	}
	return score, reasons
}

// phoneMatches requires at least six candidate digits contained in the client's phone or
// contact phone.
func phoneMatches(phone string, client *models.Client) bool {
	d := digits(phone)
	if len(d) < 6 {
		return false
	}
	for _, p := range []string{client.Phone, client.ContactPhone} {
		if pd := digits(p); pd != "" && strings.Contains(pd, d) {
			return true
		}
	}
	return false
}

// Match returns the strictly highest scoring client; ties keep the earlier client. A zero
// score best match is still returned. An empty client list yields a nil client.
func (m *Matcher) Match(c models.Candidate, clients []models.Client) Result {
	best := Result{Reasons: []string{}}
	for i := range clients {
		score, reasons := m.Score(c, &clients[i])
		if best.Client == nil || score > best.Confidence {
			best = Result{Client: &clients[i], Confidence: score, Reasons: reasons}
		}
	}
	return best
}

// String renders the result for logs.
func (r Result) String() string {
	if r.Client == nil {
		return "no client"
	}
	return fmt.Sprintf("client %d (%s) confidence %.2f", r.Client.ID, r.Client.DisplayName(), r.Confidence)
}
