package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/llm"
	"github.com/hyperjump/taxdesk/pkg/utils"
)

// DefaultMaxChars is the document prefix embedded in extraction prompts.
const DefaultMaxChars = 4000

const extractSystemPrompt = "You are an expert document analyst specializing in extracting specific information from legal and business documents. Your task is to identify and extract only the requested information with high accuracy."

// Result is the outcome of one extraction. Values only hold fields the model populated
// and that passed type validation.
type Result struct {
	ExtractedValues map[string]any `json:"extracted_values"`
	Confidence      float64        `json:"confidence"`
	Notes           string         `json:"notes,omitempty"`
	Message         string         `json:"message,omitempty"`
	Errors          []string       `json:"errors,omitempty"`
	RawResponse     string         `json:"raw_response,omitempty"`
	Model           string         `json:"ai_model,omitempty"`
}

// Limits bounds how much text goes into each prompt.
type Limits struct {
	MaxChars         int
	SummaryChars     int
	SummaryMaxLength int
}

// Extractor runs schema-driven and candidate extraction plus summaries.
type Extractor struct {
	llm    llm.Completer
	limits Limits
	logger *zap.Logger
}

// New returns an Extractor. Zero limits take their defaults.
func New(c llm.Completer, limits Limits, logger *zap.Logger) *Extractor {
	if limits.MaxChars <= 0 {
		limits.MaxChars = DefaultMaxChars
	}
	if limits.SummaryChars <= 0 {
		limits.SummaryChars = 3000
	}
	if limits.SummaryMaxLength <= 0 {
		limits.SummaryMaxLength = 300
	}
	return &Extractor{llm: c, limits: limits, logger: utils.OrNop(logger)}
}

type callOptions struct {
	model       string
	temperature float64
	maxTokens   int
}

// Option adjusts a single extraction call.
type Option func(*callOptions)

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(o *callOptions) { o.model = model }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *callOptions) { o.temperature = t }
}

func buildOptions(temperature float64, maxTokens int, opts []Option) callOptions {
	o := callOptions{temperature: temperature, maxTokens: maxTokens}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (e *Extractor) modelName(o callOptions) string {
	if o.model != "" {
		return o.model
	}
	return e.llm.Model()
}

// Extract asks the model for the schema's fields. It never fails: completion and parse
// errors are reported in Result.Errors with zero confidence.
func (e *Extractor) Extract(ctx context.Context, documentText string, schema Schema, opts ...Option) Result {
	o := buildOptions(0.1, 1000, opts)
	if len(schema) == 0 {
		return Result{ExtractedValues: map[string]any{}, Confidence: 1.0, Message: "no non-client fields to extract"}
	}
	if strings.TrimSpace(documentText) == "" {
		return Result{ExtractedValues: map[string]any{}, Confidence: 0, Message: "no document text"}
	}

	prompt := fmt.Sprintf(`
Analyze the following document and extract ONLY the requested information.
Return the results in valid JSON format.

FIELDS TO EXTRACT:
%s
DOCUMENT TEXT:
%s

INSTRUCTIONS:
1. Extract only the specific fields listed above
2. Do NOT extract client/customer information (names, addresses, contact details)
3. Return values in the correct data type (string, number, date, boolean)
4. Use null for missing or unclear information
5. For dates, use YYYY-MM-DD format
6. Be conservative - only extract information you are confident about

Return ONLY a JSON object in this format:
{
  "extracted_values": {
    "field_name": "extracted_value",
    ...
  },
  "confidence": 0.85,
  "notes": "Any relevant observations"
}
`, schema.describe(), utils.Head(documentText, e.limits.MaxChars))

	model := e.modelName(o)
	resp, err := e.llm.Generate(ctx, llm.Request{
		Model:       o.model,
		Prompt:      prompt,
		System:      extractSystemPrompt,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		e.logger.Warn("field extraction failed", zap.Error(err))
		return Result{ExtractedValues: map[string]any{}, Confidence: 0, Errors: []string{err.Error()}, Model: model}
	}

	raw, err := llm.DecodeJSONObject[map[string]any](resp)
	if err != nil {
		e.logger.Warn("unparseable extraction response", zap.Error(err))
		e.logger.Debug("raw extraction response", zap.String("response", resp))
		return Result{
			ExtractedValues: map[string]any{},
			Confidence:      0,
			Errors:          []string{llm.ErrMalformedResponse.Error()},
			RawResponse:     resp,
			Model:           model,
		}
	}

	values, ok := raw["extracted_values"].(map[string]any)
	if !ok {
		// Some models answer with the flat field object.
		values = raw
	}
	res := Result{
		ExtractedValues: schema.Coerce(values),
		Confidence:      confidenceOf(raw, 0.5),
		Model:           model,
	}
	if notes, ok := raw["notes"].(string); ok {
		res.Notes = notes
	}
	e.logger.Info("extracted fields",
		zap.Int("schema_fields", len(schema)),
		zap.Int("extracted", len(res.ExtractedValues)),
		zap.Float64("confidence", res.Confidence))
	return res
}

// confidenceOf reads "confidence" clamped to [0,1], or def when absent.
func confidenceOf(raw map[string]any, def float64) float64 {
	c, ok := raw["confidence"].(float64)
	if !ok {
		return def
	}
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

// IsUnavailable reports whether err means the inference endpoint could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, llm.ErrServiceUnavailable)
}
