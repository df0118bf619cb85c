// Package selection picks the best-fitting template for a set of documents.
package selection

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/llm"
	"github.com/hyperjump/taxdesk/internal/models"
	"github.com/hyperjump/taxdesk/pkg/utils"
)

// Selection methods.
const (
	MethodNone     = "none"
	MethodSingle   = "single"
	MethodAI       = "ai"
	MethodFallback = "fallback"
)

// Selection is the chosen template. Template is nil when there were no templates.
type Selection struct {
	Template       *models.Template `json:"selected_template"`
	Confidence     float64          `json:"confidence"`
	Reason         string           `json:"selection_reason"`
	MatchingFields []string         `json:"matching_fields,omitempty"`
	Method         string           `json:"method"`
}

// Request carries the inputs of one selection.
type Request struct {
	Text      string
	Hints     []string
	Templates []models.Template
	// AIAvailable is the result of the run's availability probe.
	AIAvailable bool
	Model       string
}

// Selector asks the model first and falls back to the template with the most placeholders.
type Selector struct {
	llm          llm.Completer
	textChars    int
	maxKeyFields int
	logger       *zap.Logger
}

// New returns a Selector. textChars bounds the document excerpt and maxKeyFields the
// placeholder names listed per template.
func New(c llm.Completer, textChars, maxKeyFields int, logger *zap.Logger) *Selector {
	if textChars <= 0 {
		textChars = 2000
	}
	if maxKeyFields <= 0 {
		maxKeyFields = 10
	}
	return &Selector{llm: c, textChars: textChars, maxKeyFields: maxKeyFields, logger: utils.OrNop(logger)}
}

// Select chooses a template. It never fails; AI errors degrade to the fallback.
func (s *Selector) Select(ctx context.Context, req Request) Selection {
	switch len(req.Templates) {
	case 0:
		s.logger.Warn("no templates available")
		return Selection{Confidence: 0, Reason: "no templates available", Method: MethodNone}
	case 1:
		t := req.Templates[0]
		return Selection{Template: &t, Confidence: 1.0, Reason: "only option", Method: MethodSingle}
	}

	if req.AIAvailable && s.llm != nil {
		if sel, ok := s.selectWithAI(ctx, req); ok {
			return sel
		}
	}
	return Fallback(req.Templates)
}

// Fallback picks the template with the most placeholders; ties keep the earlier template.
func Fallback(templates []models.Template) Selection {
	if len(templates) == 0 {
		return Selection{Reason: "no templates available", Method: MethodNone}
	}
	best := 0
	for i := range templates {
		if len(templates[i].Placeholders) > len(templates[best].Placeholders) {
			best = i
		}
	}
	t := templates[best]
	return Selection{
		Template:   &t,
		Confidence: 0.5,
		Reason:     "fallback: template with most placeholders",
		Method:     MethodFallback,
	}
}

type templateDescription struct {
	Index            int      `json:"index"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	PlaceholderCount int      `json:"placeholder_count"`
	KeyFields        []string `json:"key_fields"`
}

type aiChoice struct {
	Index          *int     `json:"selected_template_index"`
	Confidence     *float64 `json:"confidence"`
	Reasoning      string   `json:"reasoning"`
	MatchingFields []string `json:"matching_fields"`
}

const selectSystemPrompt = "You are an expert at matching documents with appropriate templates for legal and business document generation."

func (s *Selector) selectWithAI(ctx context.Context, req Request) (Selection, bool) {
	descs := make([]templateDescription, len(req.Templates))
	for i, t := range req.Templates {
		name := t.Title
		if name == "" {
			name = fmt.Sprintf("Template %d", t.ID)
		}
		desc := t.Description
		if desc == "" {
			desc = "Keine Beschreibung"
		}
		descs[i] = templateDescription{
			Index:            i,
			Name:             name,
			Description:      desc,
			PlaceholderCount: len(t.Placeholders),
			KeyFields:        t.PlaceholderNames(s.maxKeyFields),
		}
	}
	catalog, err := json.MarshalIndent(descs, "", "  ")
	if err != nil {
		return Selection{}, false
	}
	hints := "None detected"
	if len(req.Hints) > 0 {
		hints = strings.Join(req.Hints, ", ")
	}

	prompt := fmt.Sprintf(`
Analyze the following document content and select the most appropriate template.

DOCUMENT TYPE HINTS: %s

AVAILABLE TEMPLATES:
%s

DOCUMENT CONTENT (first %d chars):
%s

Select the template that best matches the document content and purpose.
Consider:
1. Document type and legal area
2. Required fields and placeholders
3. Template description relevance
4. Field names that appear in the document

Return ONLY a JSON object:
{
  "selected_template_index": 0,
  "confidence": 0.85,
  "reasoning": "Why this template was selected",
  "matching_fields": ["field1", "field2"]
}
`, hints, catalog, s.textChars, utils.Head(req.Text, s.textChars))

	resp, err := s.llm.Generate(ctx, llm.Request{
		Model:       req.Model,
		Prompt:      prompt,
		System:      selectSystemPrompt,
		Temperature: 0.2,
		MaxTokens:   300,
	})
	if err != nil {
		s.logger.Warn("AI template selection failed", zap.Error(err))
		return Selection{}, false
	}
	choice, err := llm.DecodeJSONObject[aiChoice](resp)
	if err != nil {
		s.logger.Warn("unparseable template selection", zap.Error(err))
		s.logger.Debug("raw template selection", zap.String("response", resp))
		return Selection{}, false
	}
	if choice.Index == nil || *choice.Index < 0 || *choice.Index >= len(req.Templates) {
		s.logger.Warn("AI template index out of range", zap.Any("index", choice.Index), zap.Int("templates", len(req.Templates)))
		return Selection{}, false
	}

	conf := 0.5
	if choice.Confidence != nil {
		conf = min(max(*choice.Confidence, 0), 1)
	}
	reason := choice.Reasoning
	if reason == "" {
		reason = "AI selection"
	}
	t := req.Templates[*choice.Index]
	s.logger.Info("AI selected template", zap.Int64("template_id", t.ID), zap.Float64("confidence", conf))
	return Selection{
		Template:       &t,
		Confidence:     conf,
		Reason:         reason,
		MatchingFields: choice.MatchingFields,
		Method:         MethodAI,
	}, true
}
