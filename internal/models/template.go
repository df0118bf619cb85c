package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Placeholder field types.
const (
	FieldText     = "text"
	FieldNumber   = "number"
	FieldDate     = "date"
	FieldCheckbox = "checkbox"
	FieldSelect   = "select"
)

// Placeholder is a named, typed slot in a template.
type Placeholder struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Required      bool     `json:"required"`
	Description   string   `json:"description,omitempty"`
	Options       []string `json:"options,omitempty"`
	IsClientField bool     `json:"isClientField"`
}

// Template is a fillable document (DOCX or XLSX) with its placeholder schema.
type Template struct {
	ID           int64         `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	DocumentType string        `json:"document_type,omitempty"`
	FilePath     string        `json:"file_path,omitempty"`
	Placeholders []Placeholder `json:"placeholders"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// PlaceholderNames returns the names of the first n placeholders (all when n <= 0).
func (t *Template) PlaceholderNames(n int) []string {
	names := make([]string, 0, len(t.Placeholders))
	for i, p := range t.Placeholders {
		if n > 0 && i >= n {
			break
		}
		names = append(names, p.Name)
	}
	return names
}

const placeholderSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["name", "type"],
    "properties": {
      "name": {"type": "string", "minLength": 1},
      "type": {"enum": ["text", "number", "date", "checkbox", "select"]},
      "required": {"type": "boolean"},
      "description": {"type": "string"},
      "options": {"type": "array", "items": {"type": "string", "minLength": 1}},
      "isClientField": {"type": "boolean"}
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func placeholderValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("placeholders.json", strings.NewReader(placeholderSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("placeholders.json")
	})
	return compiledSchema, schemaErr
}

// ParsePlaceholders validates raw JSON against the placeholder schema and decodes it.
// Names must be unique and select fields must declare options. Empty input yields no placeholders.
func ParsePlaceholders(data []byte) ([]Placeholder, error) {
	if len(strings.TrimSpace(string(data))) == 0 || string(data) == "null" {
		return nil, nil
	}
	schema, err := placeholderValidator()
	if err != nil {
		return nil, err
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid placeholders json: %w", err)
	}
	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("placeholders do not match schema: %w", err)
	}
	var out []Placeholder
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode placeholders: %w", err)
	}
	seen := make(map[string]bool, len(out))
	for _, p := range out {
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate placeholder name %q", p.Name)
		}
		seen[p.Name] = true
		if p.Type == FieldSelect && len(p.Options) == 0 {
			return nil, fmt.Errorf("select placeholder %q has no options", p.Name)
		}
	}
	return out, nil
}

// MarshalPlaceholders encodes placeholders after validating them with ParsePlaceholders.
func MarshalPlaceholders(ps []Placeholder) ([]byte, error) {
	if ps == nil {
		ps = []Placeholder{}
	}
	data, err := json.Marshal(ps)
	if err != nil {
		return nil, err
	}
	if _, err := ParsePlaceholders(data); err != nil {
		return nil, err
	}
	return data, nil
}
