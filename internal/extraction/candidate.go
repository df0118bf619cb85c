package extraction

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/llm"
	"github.com/hyperjump/taxdesk/internal/models"
	"github.com/hyperjump/taxdesk/pkg/utils"
)

const candidateSystemPrompt = "You are an expert at extracting client information from German legal and business documents. Extract client/customer information with high accuracy."

var (
	personSchema = Schema{
		textField("first_name"), textField("last_name"), textField("full_name"),
		textField("title"), dateField("birth_date"),
	}
	companySchema = Schema{
		textField("company_name"), textField("legal_form"), textField("contact_person"),
	}
	contactSchema = Schema{
		textField("email"), textField("phone"), textField("street"),
		textField("city"), textField("postal_code"),
	}
	identificationSchema = Schema{
		textField("tax_number"), textField("vat_id"), textField("business_reg_number"),
	}
)

// ExtractCandidate asks the model for client identity data. Each group is validated against
// its fixed schema. Errors are returned for completion or parse failures; callers fall back
// to an empty candidate.
func (e *Extractor) ExtractCandidate(ctx context.Context, documentText string, opts ...Option) (models.Candidate, error) {
	o := buildOptions(0.1, 800, opts)
	prompt := fmt.Sprintf(`
Analyze the following document text and extract client/customer information.
Focus on identifying:

1. PERSON INFORMATION:
   - First name (Vorname)
   - Last name (Nachname)
   - Full name (Vollständiger Name)
   - Title/Salutation (Anrede: Herr, Frau, Dr., etc.)
   - Birth date (Geburtsdatum)

2. COMPANY INFORMATION:
   - Company name (Firmenname)
   - Legal form (Rechtsform: GmbH, AG, KG, etc.)
   - Contact person (Ansprechpartner)

3. CONTACT INFORMATION:
   - Email address
   - Phone number (Telefonnummer)
   - Address (street, city, postal code)

4. IDENTIFICATION:
   - Tax number (Steuernummer)
   - VAT ID (Umsatzsteuer-ID)
   - Business registration number

5. DOCUMENT TYPE HINTS:
   - What type of document is this? (contract, invoice, tax form, etc.)
   - What legal area? (tax law, business law, etc.)

DOCUMENT TEXT:
%s

Return ONLY a JSON object with this structure:
{
  "person_info": {"first_name": null, "last_name": null, "full_name": null, "title": null, "birth_date": "YYYY-MM-DD or null"},
  "company_info": {"company_name": null, "legal_form": null, "contact_person": null},
  "contact_info": {"email": null, "phone": null, "street": null, "city": null, "postal_code": null},
  "identification": {"tax_number": null, "vat_id": null, "business_reg_number": null},
  "document_type_hints": ["type1", "type2"],
  "confidence": 0.85
}
`, utils.Head(documentText, e.limits.MaxChars))

	resp, err := e.llm.Generate(ctx, llm.Request{
		Model:       o.model,
		Prompt:      prompt,
		System:      candidateSystemPrompt,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		return models.Candidate{}, eris.Wrap(err, "client information extraction")
	}
	raw, err := llm.DecodeJSONObject[map[string]any](resp)
	if err != nil {
		e.logger.Debug("raw candidate response", zap.String("response", resp))
		return models.Candidate{}, eris.Wrap(err, "client information extraction")
	}
	return candidateFromRaw(raw), nil
}

func candidateFromRaw(raw map[string]any) models.Candidate {
	person := group(raw, "person_info", personSchema)
	company := group(raw, "company_info", companySchema)
	contact := group(raw, "contact_info", contactSchema)
	ident := group(raw, "identification", identificationSchema)

	c := models.Candidate{
		Person: models.PersonInfo{
			FirstName: person["first_name"],
			LastName:  person["last_name"],
			FullName:  person["full_name"],
			Title:     person["title"],
			BirthDate: person["birth_date"],
		},
		Company: models.CompanyInfo{
			CompanyName:   company["company_name"],
			LegalForm:     company["legal_form"],
			ContactPerson: company["contact_person"],
		},
		Contact: models.ContactInfo{
			Email:      contact["email"],
			Phone:      contact["phone"],
			Street:     contact["street"],
			City:       contact["city"],
			PostalCode: contact["postal_code"],
		},
		Identification: models.Identification{
			TaxNumber:         ident["tax_number"],
			VATID:             ident["vat_id"],
			BusinessRegNumber: ident["business_reg_number"],
		},
		DocumentTypeHints: []string{},
		Confidence:        confidenceOf(raw, 0),
	}
	if hints, ok := raw["document_type_hints"].([]any); ok {
		for _, h := range hints {
			if s, ok := stringValue(h); ok {
				c.DocumentTypeHints = append(c.DocumentTypeHints, s)
			}
		}
	}
	return c
}

func group(raw map[string]any, key string, schema Schema) map[string]string {
	out := map[string]string{}
	m, ok := raw[key].(map[string]any)
	if !ok {
		return out
	}
	for k, v := range schema.Coerce(m) {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
