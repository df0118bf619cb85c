package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/extraction"
	"github.com/hyperjump/taxdesk/internal/matching"
	"github.com/hyperjump/taxdesk/internal/models"
	"github.com/hyperjump/taxdesk/internal/selection"
	"github.com/hyperjump/taxdesk/pkg/utils"
)

const previewChars = 200

// DocumentSummary describes one readable input document.
type DocumentSummary struct {
	Filename       string  `json:"filename"`
	TextLength     int     `json:"text_length"`
	ContentPreview string  `json:"content_preview"`
	AISummary      string  `json:"ai_summary,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
}

// ClientMatch is the outcome of the MatchClient stage. Client is the best scoring client even at
// zero confidence; Matched and ClientFields are set only when its confidence exceeds
// agent.min_match_confidence.
type ClientMatch struct {
	Client            *models.Client    `json:"client_match"`
	Matched           bool              `json:"matched"`
	Confidence        float64           `json:"match_confidence"`
	Reasons           []string          `json:"match_reasons"`
	Candidate         *models.Candidate `json:"extracted_client_info,omitempty"`
	ClientFields      map[string]any    `json:"client_fields"`
	DocumentTypeHints []string          `json:"document_type_hints"`
	AIAvailable       bool              `json:"ai_available"`
	Message           string            `json:"message,omitempty"`
	Error             string            `json:"error,omitempty"`
}

// Generation is the outcome of the GenerateArtifact stage.
type Generation struct {
	Success      bool     `json:"success"`
	Error        string   `json:"error,omitempty"`
	TemplateName string   `json:"template_name,omitempty"`
	FieldCount   int      `json:"field_count"`
	Filename     string   `json:"filename,omitempty"`
	MimeType     string   `json:"mime_type,omitempty"`
	Filled       []string `json:"filled_fields,omitempty"`
	Content      []byte   `json:"content,omitempty"`
}

// Metadata describes a pipeline run.
type Metadata struct {
	ProcessedDocuments []DocumentSummary `json:"processed_documents"`
	TotalTextLength    int               `json:"total_text_length"`
	ProcessingTime     time.Time         `json:"processing_time"`
	DurationMS         int64             `json:"duration_ms"`
	WorkOrderID        *int64            `json:"work_order_id"`
}

// ProcessResult is returned by Process.
type ProcessResult struct {
	Outcome
	ClientMatch        *ClientMatch         `json:"client_match,omitempty"`
	TemplateSelection  *selection.Selection `json:"template_selection,omitempty"`
	FieldExtraction    *extraction.Result   `json:"field_extraction,omitempty"`
	DocumentGeneration *Generation          `json:"document_generation,omitempty"`
	AllFields          map[string]any       `json:"all_fields,omitempty"`
	Metadata           *Metadata            `json:"metadata,omitempty"`
}

// MatchPreview is returned by PreviewMatch.
type MatchPreview struct {
	Outcome
	ClientMatch *ClientMatch `json:"client_matching,omitempty"`
	Metadata    *Metadata    `json:"document_analysis,omitempty"`
}

// TemplateSuggestion is returned by SuggestTemplate.
type TemplateSuggestion struct {
	Outcome
	TemplateSelection *selection.Selection `json:"template_suggestion,omitempty"`
	DocumentTypeHints []string             `json:"document_type_hints"`
	Metadata          *Metadata            `json:"document_analysis,omitempty"`
}

// textDoc is the extracted text of one upload.
type textDoc struct {
	upload *Upload
	text   string
}

// corpus is the output of the ExtractText stage.
type corpus struct {
	combined  string
	docs      []textDoc // one per upload, text may be empty
	summaries []DocumentSummary
}

// Process runs the full pipeline. It never fails with an uncaught error: every failure is
// reported in the result's Outcome.
func (a *Agent) Process(ctx context.Context, uploads []Upload, workOrderID *int64, prefs Preferences) ProcessResult {
	res, _ := a.process(ctx, uploads, workOrderID, prefs)
	return res
}

func (a *Agent) process(ctx context.Context, uploads []Upload, workOrderID *int64, prefs Preferences) (ProcessResult, *corpus) {
	start := a.now()
	a.logger.Info("starting document processing", zap.Int("files", len(uploads)))
	if len(uploads) == 0 {
		return ProcessResult{Outcome: failure(eris.Wrap(ErrInput, "no documents provided"))}, nil
	}

	ai := a.aiAvailable(ctx)
	c, err := a.extractText(ctx, uploads, ai, prefs)
	if err != nil {
		return ProcessResult{Outcome: failure(err)}, nil
	}

	match, err := a.matchClient(ctx, c.combined, ai, prefs)
	if err != nil {
		return ProcessResult{Outcome: failure(err)}, c
	}

	sel, err := a.selectTemplate(ctx, c.combined, match.DocumentTypeHints, ai, prefs)
	if err != nil {
		return ProcessResult{Outcome: failure(err)}, c
	}

	res := ProcessResult{Outcome: ok(), ClientMatch: match, TemplateSelection: &sel}
	if sel.Template != nil {
		fields := a.extractFields(ctx, c.combined, sel.Template, ai, prefs)
		res.FieldExtraction = &fields
		res.AllFields = mergeFields(match.ClientFields, fields.ExtractedValues)
		res.DocumentGeneration = a.generate(ctx, sel.Template, res.AllFields)
	} else {
		res.FieldExtraction = &extraction.Result{
			ExtractedValues: map[string]any{},
			Message:         "no template selected",
		}
		res.AllFields = mergeFields(match.ClientFields, nil)
		res.DocumentGeneration = &Generation{Error: "no template available for document generation"}
	}
	res.Metadata = a.metadata(c, start, workOrderID)

	a.logger.Info("document processing finished",
		zap.Float64("match_confidence", match.Confidence),
		zap.String("template_method", sel.Method),
		zap.Int("fields", len(res.AllFields)),
		zap.Bool("generated", res.DocumentGeneration.Success))
	return res, c
}

// PreviewMatch runs only the ExtractText and MatchClient stages.
func (a *Agent) PreviewMatch(ctx context.Context, uploads []Upload, prefs Preferences) MatchPreview {
	start := a.now()
	if len(uploads) == 0 {
		return MatchPreview{Outcome: failure(eris.Wrap(ErrInput, "no documents provided"))}
	}
	ai := a.aiAvailable(ctx)
	c, err := a.extractText(ctx, uploads, ai, prefs)
	if err != nil {
		return MatchPreview{Outcome: failure(err)}
	}
	match, err := a.matchClient(ctx, c.combined, ai, prefs)
	if err != nil {
		return MatchPreview{Outcome: failure(err)}
	}
	return MatchPreview{Outcome: ok(), ClientMatch: match, Metadata: a.metadata(c, start, nil)}
}

// SuggestTemplate extracts text, collects document type hints when AI is available and
// selects a template.
func (a *Agent) SuggestTemplate(ctx context.Context, uploads []Upload, prefs Preferences) TemplateSuggestion {
	start := a.now()
	if len(uploads) == 0 {
		return TemplateSuggestion{Outcome: failure(eris.Wrap(ErrInput, "no documents provided"))}
	}
	ai := a.aiAvailable(ctx)
	c, err := a.extractText(ctx, uploads, ai, prefs)
	if err != nil {
		return TemplateSuggestion{Outcome: failure(err)}
	}

	hints := []string{}
	if ai {
		cand, err := a.deps.Extractor.ExtractCandidate(ctx, c.combined, prefs.options()...)
		if err != nil {
			a.logger.Warn("could not extract document type hints", zap.Error(err))
		} else if len(cand.DocumentTypeHints) > 0 {
			hints = cand.DocumentTypeHints
		}
	}

	sel, err := a.selectTemplate(ctx, c.combined, hints, ai, prefs)
	if err != nil {
		return TemplateSuggestion{Outcome: failure(err)}
	}
	return TemplateSuggestion{
		Outcome:           ok(),
		TemplateSelection: &sel,
		DocumentTypeHints: hints,
		Metadata:          a.metadata(c, start, nil),
	}
}

// extractText runs the text-extraction collaborator over every upload. Unreadable documents
// are skipped; ErrNoReadableContent is returned when none yields text.
func (a *Agent) extractText(ctx context.Context, uploads []Upload, ai bool, prefs Preferences) (*corpus, error) {
	c := &corpus{docs: make([]textDoc, 0, len(uploads))}
	var parts []string
	summaries := ai && a.cfg.SummariesOrDefault()

	for i := range uploads {
		u := &uploads[i]
		if u.Filename == "" {
			continue
		}
		text, err := a.deps.Text.ExtractFile(ctx, u.Filename, u.Content)
		if err != nil {
			a.logger.Warn("text extraction failed", zap.String("file", u.Filename), zap.Error(err))
		}
		c.docs = append(c.docs, textDoc{upload: u, text: text})
		if strings.TrimSpace(text) == "" {
			a.logger.Warn("no text content extracted", zap.String("file", u.Filename))
			continue
		}

		sum := DocumentSummary{
			Filename:       u.Filename,
			TextLength:     len([]rune(text)),
			ContentPreview: utils.Truncate(text, previewChars),
		}
		if summaries {
			s := a.deps.Extractor.Summarize(ctx, text, prefs.options()...)
			sum.AISummary, sum.Confidence = s.Summary, s.Confidence
		}
		parts = append(parts, fmt.Sprintf("--- Dokument: %s ---\n%s", u.Filename, text))
		c.summaries = append(c.summaries, sum)
		a.logger.Debug("extracted text", zap.String("file", u.Filename), zap.Int("chars", sum.TextLength))
	}

	if len(parts) == 0 {
		return nil, eris.Wrap(ErrNoReadableContent, "no readable text content found in any uploaded document")
	}
	c.combined = strings.Join(parts, "\n\n")
	return c, nil
}

// matchClient extracts a candidate and matches it against every stored client. Without AI the
// stage reports confidence 0 and the pipeline continues.
func (a *Agent) matchClient(ctx context.Context, text string, ai bool, prefs Preferences) (*ClientMatch, error) {
	m := &ClientMatch{
		Reasons:           []string{},
		ClientFields:      map[string]any{},
		DocumentTypeHints: []string{},
		AIAvailable:       ai,
	}
	if !ai {
		m.Error = ErrAIUnavailable.Error()
		return m, nil
	}

	cand, err := a.deps.Extractor.ExtractCandidate(ctx, text, prefs.options()...)
	if err != nil {
		a.logger.Warn("client information extraction failed", zap.Error(err))
		m.Error = err.Error()
	}
	m.Candidate = &cand
	if len(cand.DocumentTypeHints) > 0 {
		m.DocumentTypeHints = cand.DocumentTypeHints
	}

	stored, err := a.deps.Repo.ListClients(ctx)
	if err != nil {
		return nil, eris.Wrapf(ErrPersistence, "list clients: %v", err)
	}
	if len(stored) == 0 {
		a.logger.Warn("no existing clients in database")
		m.Message = "no existing clients found in database"
		return m, nil
	}

	clients := make([]models.Client, len(stored))
	for i, c := range stored {
		clients[i] = *c
	}
	best := a.deps.Matcher.Match(cand, clients)
	m.Client, m.Confidence, m.Reasons = best.Client, best.Confidence, best.Reasons
	if best.Client == nil || best.Confidence <= a.cfg.MinMatchConfidence {
		a.logger.Info("no client matched", zap.String("result", best.String()))
		m.Message = "no client matched"
		return m, nil
	}
	m.Matched = true
	m.ClientFields = matching.ClientFields(best.Client)
	a.logger.Info("client matched", zap.String("result", best.String()))
	return m, nil
}

func (a *Agent) selectTemplate(ctx context.Context, text string, hints []string, ai bool, prefs Preferences) (selection.Selection, error) {
	stored, err := a.deps.Repo.ListTemplates(ctx)
	if err != nil {
		return selection.Selection{}, eris.Wrapf(ErrPersistence, "list templates: %v", err)
	}
	templates := make([]models.Template, len(stored))
	for i, t := range stored {
		templates[i] = *t
	}
	sel := a.deps.Selector.Select(ctx, selection.Request{
		Text:        text,
		Hints:       hints,
		Templates:   templates,
		AIAvailable: ai,
		Model:       prefs.PreferredTextModel,
	})
	a.logger.Info("template selected",
		zap.String("method", sel.Method),
		zap.Float64("confidence", sel.Confidence),
		zap.String("reason", sel.Reason))
	return sel, nil
}

// extractFields runs the Structured Extractor over the template's non-client placeholders.
func (a *Agent) extractFields(ctx context.Context, text string, tpl *models.Template, ai bool, prefs Preferences) extraction.Result {
	schema := extraction.SchemaFromPlaceholders(tpl.Placeholders)
	if len(schema) > 0 && !ai {
		return extraction.Result{
			ExtractedValues: map[string]any{},
			Errors:          []string{ErrAIUnavailable.Error()},
		}
	}
	res := a.deps.Extractor.Extract(ctx, text, schema, prefs.options()...)
	a.logger.Info("extracted template fields",
		zap.Int64("template_id", tpl.ID),
		zap.Int("fields", len(res.ExtractedValues)),
		zap.Float64("confidence", res.Confidence))
	return res
}

func (a *Agent) generate(ctx context.Context, tpl *models.Template, values map[string]any) *Generation {
	g := &Generation{TemplateName: tpl.Title, FieldCount: len(values)}
	if a.deps.Renderer == nil {
		g.Error = "document generation is not configured"
		return g
	}
	art, err := a.deps.Renderer.Render(ctx, tpl, values)
	if err != nil {
		a.logger.Error("document generation failed", zap.Int64("template_id", tpl.ID), zap.Error(err))
		g.Error = "document generation failed: " + err.Error()
		return g
	}
	g.Success = true
	g.Filename, g.MimeType, g.Filled, g.Content = art.Filename, art.MimeType, art.Filled, art.Data
	return g
}

// mergeFields returns {client fields..., extracted fields...}; extracted values win on collision.
func mergeFields(client, extracted map[string]any) map[string]any {
	out := make(map[string]any, len(client)+len(extracted))
	for k, v := range client {
		out[k] = v
	}
	for k, v := range extracted {
		out[k] = v
	}
	return out
}

func (a *Agent) metadata(c *corpus, start time.Time, workOrderID *int64) *Metadata {
	now := a.now()
	return &Metadata{
		ProcessedDocuments: c.summaries,
		TotalTextLength:    len([]rune(c.combined)),
		ProcessingTime:     now.UTC(),
		DurationMS:         now.Sub(start).Milliseconds(),
		WorkOrderID:        workOrderID,
	}
}
