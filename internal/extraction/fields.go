// Package extraction turns document text plus a field schema into typed values using the
// completion client.
package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hyperjump/taxdesk/internal/models"
)

// Field is one typed slot of a schema. Coerce converts a raw model value to the field's
// type; ok is false when the value must be dropped.
type Field interface {
	Name() string
	Kind() string
	Required() bool
	Description() string
	Coerce(v any) (out any, ok bool)
}

type fieldBase struct {
	name        string
	description string
	required    bool
}

func (f fieldBase) Name() string        { return f.name }
func (f fieldBase) Required() bool      { return f.required }
func (f fieldBase) Description() string { return f.description }

// TextField keeps trimmed strings.
type TextField struct{ fieldBase }

// NumberField keeps the first numeric substring as float64.
type NumberField struct{ fieldBase }

// DateField normalizes recognized dates to YYYY-MM-DD.
type DateField struct{ fieldBase }

// CheckboxField coerces to bool.
type CheckboxField struct{ fieldBase }

// SelectField snaps values onto Options where possible.
type SelectField struct {
	fieldBase
	Options []string
}

func (TextField) Kind() string     { return models.FieldText }
func (NumberField) Kind() string   { return models.FieldNumber }
func (DateField) Kind() string     { return models.FieldDate }
func (CheckboxField) Kind() string { return models.FieldCheckbox }
func (SelectField) Kind() string   { return models.FieldSelect }

// Coerce trims the value.
func (TextField) Coerce(v any) (any, bool) {
	s, ok := stringValue(v)
	if !ok {
		return nil, false
	}
	return s, true
}

var numberPattern = regexp.MustCompile(`-?\d+\.?\d*`)

// Coerce parses the first numeric substring.
func (NumberField) Coerce(v any) (any, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		m := numberPattern.FindString(n)
		if m == "" {
			return nil, false
		}
		f, err := strconv.ParseFloat(strings.TrimSuffix(m, "."), 64)
		if err != nil {
			return nil, false
		}
		return f, true
	}
	return nil, false
}

var datePatterns = []struct {
	re    *regexp.Regexp
	order [3]int // indexes of year, month, day in the submatches
}{
	{regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`), [3]int{1, 2, 3}},
	{regexp.MustCompile(`(\d{2})\.(\d{2})\.(\d{4})`), [3]int{3, 2, 1}},
	{regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`), [3]int{3, 2, 1}},
	{regexp.MustCompile(`(\d{2})/(\d{2})/(\d{4})`), [3]int{3, 1, 2}},
}

// NormalizeDate returns s as YYYY-MM-DD, trying ISO, DD.MM.YYYY, D.M.YYYY and MM/DD/YYYY in that order.
func NormalizeDate(s string) (string, bool) {
	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		year, month, day := m[p.order[0]], m[p.order[1]], m[p.order[2]]
		return year + "-" + pad2(month) + "-" + pad2(day), true
	}
	return "", false
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// Coerce normalizes the date or drops it.
func (DateField) Coerce(v any) (any, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	return NormalizeDate(s)
}

var truthy = map[string]bool{"true": true, "1": true, "yes": true, "ja": true, "wahr": true}

// Coerce maps truthy strings to true and everything else to false.
func (CheckboxField) Coerce(v any) (any, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case float64:
		return b != 0, true
	case string:
		return truthy[strings.ToLower(strings.TrimSpace(b))], true
	}
	return false, true
}

// Coerce keeps exact options, then tries case-insensitive containment in both directions,
// and falls back to the raw value.
func (f SelectField) Coerce(v any) (any, bool) {
	s, ok := stringValue(v)
	if !ok {
		return nil, false
	}
	for _, opt := range f.Options {
		if opt == s {
			return opt, true
		}
	}
	lower := strings.ToLower(s)
	for _, opt := range f.Options {
		o := strings.ToLower(strings.TrimSpace(opt))
		if o == "" {
			continue
		}
		if strings.Contains(o, lower) || strings.Contains(lower, o) {
			return opt, true
		}
	}
	return s, true
}

// stringValue renders v as a trimmed string; nil, empty and literal "null" are absent.
func stringValue(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		s = x
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(x)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return "", false
	}
	return s, true
}

// FieldFromPlaceholder builds the typed field for p. Unknown types become text fields.
func FieldFromPlaceholder(p models.Placeholder) Field {
	base := fieldBase{name: p.Name, description: p.Description, required: p.Required}
	switch p.Type {
	case models.FieldNumber:
		return NumberField{base}
	case models.FieldDate:
		return DateField{base}
	case models.FieldCheckbox:
		return CheckboxField{base}
	case models.FieldSelect:
		return SelectField{fieldBase: base, Options: p.Options}
	default:
		return TextField{base}
	}
}

// Schema is an ordered set of fields with unique names.
type Schema []Field

// SchemaFromPlaceholders builds a schema from a template's placeholders, excluding client fields.
func SchemaFromPlaceholders(ps []models.Placeholder) Schema {
	s := make(Schema, 0, len(ps))
	for _, p := range ps {
		if p.IsClientField {
			continue
		}
		s = append(s, FieldFromPlaceholder(p))
	}
	return s
}

// Lookup returns the field with the given name.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// Coerce validates raw values against the schema. Unknown keys, empty values and values
// failing type validation are dropped.
func (s Schema) Coerce(raw map[string]any) map[string]any {
	out := make(map[string]any)
	for name, v := range raw {
		f, ok := s.Lookup(name)
		if !ok || isEmpty(v) {
			continue
		}
		if cv, ok := f.Coerce(v); ok {
			out[name] = cv
		}
	}
	return out
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		t := strings.TrimSpace(x)
		return t == "" || strings.EqualFold(t, "null")
	}
	return false
}

// describe renders one prompt line per field.
func (s Schema) describe() string {
	var b strings.Builder
	for _, f := range s {
		fmt.Fprintf(&b, "- %s (%s)", f.Name(), f.Kind())
		if f.Required() {
			b.WriteString(" [REQUIRED]")
		}
		if f.Description() != "" {
			b.WriteString(": " + f.Description())
		}
		if sel, ok := f.(SelectField); ok && len(sel.Options) > 0 {
			b.WriteString(" options: " + strings.Join(sel.Options, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func textField(name string) Field { return TextField{fieldBase{name: name}} }
func dateField(name string) Field { return DateField{fieldBase{name: name}} }
