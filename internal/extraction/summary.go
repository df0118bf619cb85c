package extraction

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/llm"
	"github.com/hyperjump/taxdesk/pkg/utils"
)

// Summary is a short German summary of one document.
type Summary struct {
	Summary    string  `json:"summary"`
	WordCount  int     `json:"word_count"`
	Confidence float64 `json:"confidence"`
	Model      string  `json:"ai_model,omitempty"`
	Error      string  `json:"error,omitempty"`
}

const summarySystemPrompt = "You are an expert document analyst. Create concise, professional summaries of business and legal documents."

// Summarize generates a summary capped at the configured length. Failures are reported in
// Summary.Error with an empty summary.
func (e *Extractor) Summarize(ctx context.Context, documentText string, opts ...Option) Summary {
	if strings.TrimSpace(documentText) == "" {
		return Summary{}
	}
	o := buildOptions(0.3, 200, opts)
	maxLen := e.limits.SummaryMaxLength
	prompt := fmt.Sprintf(`
Summarize the following document in German. Focus on:
1. Document type and purpose
2. Key dates and deadlines
3. Important amounts or numbers
4. Main legal or business obligations
5. Critical information for processing

Keep the summary under %d characters and use professional language.

DOCUMENT:
%s

SUMMARY:
`, maxLen, utils.Head(documentText, e.limits.SummaryChars))

	resp, err := e.llm.Generate(ctx, llm.Request{
		Model:       o.model,
		Prompt:      prompt,
		System:      summarySystemPrompt,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		e.logger.Warn("summary failed", zap.Error(err))
		return Summary{Error: err.Error()}
	}
	summary := strings.TrimSpace(resp)
	conf := 0.4
	if len([]rune(summary)) > 50 {
		conf = 0.8
	}
	return Summary{
		Summary:    utils.Head(summary, maxLen),
		WordCount:  len(strings.Fields(documentText)),
		Confidence: conf,
		Model:      e.modelName(o),
	}
}
