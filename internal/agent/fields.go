package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/extraction"
	"github.com/hyperjump/taxdesk/internal/matching"
	"github.com/hyperjump/taxdesk/internal/models"
	"github.com/hyperjump/taxdesk/internal/storage"
)

// TemplateRef summarizes the template used for extraction.
type TemplateRef struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	PlaceholderCount int    `json:"placeholder_count"`
}

func refOf(t *models.Template) *TemplateRef {
	return &TemplateRef{ID: t.ID, Name: t.Title, PlaceholderCount: len(t.Placeholders)}
}

// FieldsResult is returned by ExtractAllFields and ExtractWorkOrderFields.
type FieldsResult struct {
	Outcome
	Template        *TemplateRef       `json:"template,omitempty"`
	ClientMatch     *ClientMatch       `json:"client_matching,omitempty"`
	FieldExtraction *extraction.Result `json:"field_extraction,omitempty"`
	AllFields       map[string]any     `json:"all_fields,omitempty"`
	WorkOrderID     int64              `json:"work_order_id,omitempty"`
	Documents       []DocumentRef      `json:"processed_documents,omitempty"`
	Metadata        *Metadata          `json:"document_analysis,omitempty"`
}

// DocumentRef identifies a stored document used as extraction input.
type DocumentRef struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	TextLength int    `json:"text_length"`
}

// ExtractAllFields extracts the client match and the template fields for uploads against the
// given template.
func (a *Agent) ExtractAllFields(ctx context.Context, uploads []Upload, templateID int64, prefs Preferences) FieldsResult {
	start := a.now()
	if len(uploads) == 0 {
		return FieldsResult{Outcome: failure(eris.Wrap(ErrInput, "no documents provided"))}
	}
	if templateID <= 0 {
		return FieldsResult{Outcome: failure(eris.Wrap(ErrInput, "template_id is required"))}
	}
	tpl, err := a.getTemplate(ctx, templateID)
	if err != nil {
		return FieldsResult{Outcome: failure(err)}
	}

	ai := a.aiAvailable(ctx)
	c, err := a.extractText(ctx, uploads, ai, prefs)
	if err != nil {
		return FieldsResult{Outcome: failure(err)}
	}
	match, err := a.matchClient(ctx, c.combined, ai, prefs)
	if err != nil {
		return FieldsResult{Outcome: failure(err)}
	}
	fields := a.extractFields(ctx, c.combined, tpl, ai, prefs)

	return FieldsResult{
		Outcome:         ok(),
		Template:        refOf(tpl),
		ClientMatch:     match,
		FieldExtraction: &fields,
		AllFields:       mergeFields(match.ClientFields, fields.ExtractedValues),
		Metadata:        a.metadata(c, start, nil),
	}
}

// ExtractWorkOrderFields extracts template fields from the documents already stored for a
// work order. The work order's client supplies the client fields.
func (a *Agent) ExtractWorkOrderFields(ctx context.Context, workOrderID, templateID int64, prefs Preferences) FieldsResult {
	if templateID <= 0 {
		return FieldsResult{Outcome: failure(eris.Wrap(ErrInput, "template_id is required"))}
	}
	order, err := a.deps.Repo.GetWorkOrder(ctx, workOrderID)
	if err != nil {
		return FieldsResult{Outcome: failure(lookupErr(err, "work order %d", workOrderID))}
	}
	tpl, err := a.getTemplate(ctx, templateID)
	if err != nil {
		return FieldsResult{Outcome: failure(err)}
	}

	res := FieldsResult{Outcome: ok(), Template: refOf(tpl), WorkOrderID: order.ID}
	if len(tpl.Placeholders) == 0 {
		res.FieldExtraction = &extraction.Result{ExtractedValues: map[string]any{}, Confidence: 1.0,
			Message: "no placeholders defined in template"}
		return res
	}

	docs, err := a.deps.Repo.DocumentsForWorkOrder(ctx, order.ID)
	if err != nil {
		return FieldsResult{Outcome: failure(eris.Wrapf(ErrPersistence, "list documents: %v", err))}
	}
	if len(docs) == 0 {
		res.FieldExtraction = &extraction.Result{ExtractedValues: map[string]any{},
			Message: "no documents found in this work order"}
		return res
	}

	if !a.aiAvailable(ctx) {
		return FieldsResult{Outcome: failure(eris.Wrap(ErrAIUnavailable, "AI service is not reachable"))}
	}

	var parts []string
	for _, d := range docs {
		text := a.storedText(ctx, d)
		if strings.TrimSpace(text) == "" {
			a.logger.Warn("no text content for stored document", zap.Int64("document_id", d.ID))
			continue
		}
		parts = append(parts, fmt.Sprintf("--- Dokument: %s ---\n%s", d.Title, text))
		res.Documents = append(res.Documents, DocumentRef{ID: d.ID, Name: d.Title, TextLength: len([]rune(text))})
	}
	if len(parts) == 0 {
		res.FieldExtraction = &extraction.Result{ExtractedValues: map[string]any{},
			Message: "no readable text content found in work order documents"}
		return res
	}

	fields := a.extractFields(ctx, strings.Join(parts, "\n\n"), tpl, true, prefs)
	res.FieldExtraction = &fields

	clientFields := map[string]any{}
	if client, err := a.deps.Repo.GetClient(ctx, order.ClientID); err == nil {
		clientFields = matching.ClientFields(client)
	} else {
		a.logger.Warn("work order client not loaded", zap.Int64("client_id", order.ClientID), zap.Error(err))
	}
	res.AllFields = mergeFields(clientFields, fields.ExtractedValues)
	return res
}

// storedText returns a document's stored text, re-extracting from its file when none was kept.
func (a *Agent) storedText(ctx context.Context, d *models.Document) string {
	if strings.TrimSpace(d.Content) != "" || d.FilePath == "" || a.deps.Files == nil {
		return d.Content
	}
	data, err := a.deps.Files.Read(d.FilePath)
	if err != nil {
		a.logger.Warn("document file not readable", zap.String("path", d.FilePath), zap.Error(err))
		return ""
	}
	text, err := a.deps.Text.ExtractFile(ctx, d.FilePath, data)
	if err != nil {
		a.logger.Warn("text extraction failed", zap.String("path", d.FilePath), zap.Error(err))
		return ""
	}
	return text
}

func (a *Agent) getTemplate(ctx context.Context, id int64) (*models.Template, error) {
	tpl, err := a.deps.Repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "template %d", id)
	}
	return tpl, nil
}

// lookupErr maps a repository lookup error to ErrNotFound or ErrPersistence.
func lookupErr(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, storage.ErrNotFound) {
		return eris.Wrap(ErrNotFound, what)
	}
	return eris.Wrapf(ErrPersistence, "%s: %v", what, err)
}
