package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/taxdesk/internal/agent"
	"github.com/hyperjump/taxdesk/internal/archive"
	"github.com/hyperjump/taxdesk/internal/models"
	"github.com/hyperjump/taxdesk/internal/selection"
)

func sampleResult() agent.ProcessResult {
	return agent.ProcessResult{
		Outcome: agent.Outcome{Success: true},
		ClientMatch: &agent.ClientMatch{
			Client:     &models.Client{ID: 2, Type: models.ClientNatural, FirstName: "Max", LastName: "Mustermann"},
			Matched:    true,
			Confidence: 0.7,
			Reasons:    []string{"tax number match"},
		},
		TemplateSelection: &selection.Selection{
			Template:   &models.Template{ID: 11, Title: "Einspruch"},
			Confidence: 0.9,
			Method:     "ai",
		},
		AllFields: map[string]any{"vorname": "Max", "betrag": 1234.5},
		DocumentGeneration: &agent.Generation{
			Success:  true,
			Filename: "Einspruch.docx",
			Content:  []byte("PK binary"),
			Filled:   []string{"betrag"},
		},
		Metadata: &agent.Metadata{ProcessedDocuments: []agent.DocumentSummary{{}}, TotalTextLength: 120},
	}
}

func TestWriteProcessResult_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteProcessResult(&buf, sampleResult(), OutputText))
	out := buf.String()
	for _, want := range []string{"Processed 1 documents", "Mustermann", "tax number match", "Template: Einspruch", "betrag:", "Generated: Einspruch.docx"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "betrag:"), strings.Index(out, "vorname:"), "fields are sorted")
}

func TestWriteProcessResult_JSONOmitsContent(t *testing.T) {
	res := sampleResult()
	var buf bytes.Buffer
	require.NoError(t, WriteProcessResult(&buf, res, OutputJSON))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	gen, ok := decoded["document_generation"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, gen, "content")
	assert.NotEmpty(t, res.DocumentGeneration.Content, "caller's result must not be modified")
}

func TestWriteProcessResult_Failure(t *testing.T) {
	var buf bytes.Buffer
	res := agent.ProcessResult{Outcome: agent.Outcome{Error: "no readable content", ErrorKind: agent.KindNoReadableContent}}
	require.NoError(t, WriteProcessResult(&buf, res, OutputText))
	assert.Contains(t, buf.String(), "[no_readable_content]")
}

func TestWriteMatchPreview_NoClient(t *testing.T) {
	var buf bytes.Buffer
	res := agent.MatchPreview{
		Outcome:     agent.Outcome{Success: true},
		ClientMatch: &agent.ClientMatch{Message: "no existing clients found in database"},
	}
	require.NoError(t, WriteMatchPreview(&buf, res, OutputText))
	assert.Contains(t, buf.String(), "Client: none (no existing clients found in database)")
}

func TestWriteMatchPreview_ZeroScoreIsNoMatch(t *testing.T) {
	var buf bytes.Buffer
	res := agent.MatchPreview{
		Outcome: agent.Outcome{Success: true},
		ClientMatch: &agent.ClientMatch{
			Client:  &models.Client{ID: 1, Type: models.ClientCompany, CompanyName: "Beispiel AG"},
			Message: "no client matched",
		},
	}
	require.NoError(t, WriteMatchPreview(&buf, res, OutputText))
	assert.Contains(t, buf.String(), "Client: none (no client matched)")
	assert.NotContains(t, buf.String(), "Beispiel AG")
}

func TestWriteHits(t *testing.T) {
	hits := []archive.Hit{{DocumentID: 3, Title: "bescheid.pdf", WorkOrderID: 7, Score: 1.25, Fragments: []string{"<mark>Nachzahlung</mark>"}}}
	var buf bytes.Buffer
	require.NoError(t, WriteHits(&buf, "nachzahlung", hits, OutputText))
	assert.Contains(t, buf.String(), "Found 1 documents")
	assert.Contains(t, buf.String(), "Work order 7")

	buf.Reset()
	require.NoError(t, WriteHits(&buf, "x", nil, OutputJSON))
	assert.Contains(t, buf.String(), `"results": []`, "empty results encode as []")
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
		} else {
			assert.NoError(t, err, tt.in)
		}
		assert.Equal(t, tt.want, got, tt.in)
	}
}
