// Package cli formats pipeline results for the taxdesk command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/taxdesk/internal/agent"
	"github.com/hyperjump/taxdesk/internal/archive"
	"github.com/hyperjump/taxdesk/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is indented JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat returns the format named by s. Unknown names are an error.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

const rule = "─────────────────────────────────────────────────────────"

// WriteProcessResult writes a full pipeline result. Generated file content is never printed.
func WriteProcessResult(w io.Writer, res agent.ProcessResult, format OutputFormat) error {
	if format == OutputJSON {
		if res.DocumentGeneration != nil {
			gen := *res.DocumentGeneration
			gen.Content = nil
			res.DocumentGeneration = &gen
		}
		return writeJSON(w, res)
	}
	if !res.Success {
		fmt.Fprintf(w, "Processing failed [%s]: %s\n", res.ErrorKind, res.Error)
		return nil
	}
	writeMetadata(w, res.Metadata)
	writeClientMatch(w, res.ClientMatch)

	fmt.Fprintln(w, rule)
	if sel := res.TemplateSelection; sel != nil && sel.Template != nil {
		fmt.Fprintf(w, "Template: %s (confidence %.2f, %s)\n", sel.Template.Title, sel.Confidence, sel.Method)
		if sel.Reason != "" {
			fmt.Fprintf(w, "Reason: %s\n", utils.Truncate(sel.Reason, 200))
		}
	} else {
		fmt.Fprintln(w, "Template: none")
	}
	if len(res.AllFields) > 0 {
		fmt.Fprintln(w, rule)
		writeFields(w, res.AllFields)
	}
	if gen := res.DocumentGeneration; gen != nil {
		fmt.Fprintln(w, rule)
		if gen.Success {
			fmt.Fprintf(w, "Generated: %s (%s, %d fields filled)\n", gen.Filename, gen.MimeType, len(gen.Filled))
		} else {
			fmt.Fprintf(w, "Generation: %s\n", gen.Error)
		}
	}
	return nil
}

// WriteMatchPreview writes the client-match stage on its own.
func WriteMatchPreview(w io.Writer, res agent.MatchPreview, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if !res.Success {
		fmt.Fprintf(w, "Matching failed [%s]: %s\n", res.ErrorKind, res.Error)
		return nil
	}
	writeMetadata(w, res.Metadata)
	writeClientMatch(w, res.ClientMatch)
	return nil
}

// WriteHits writes archive search hits.
func WriteHits(w io.Writer, query string, hits []archive.Hit, format OutputFormat) error {
	if format == OutputJSON {
		if hits == nil {
			hits = []archive.Hit{}
		}
		return writeJSON(w, map[string]interface{}{"query": query, "results": hits, "total": len(hits)})
	}
	fmt.Fprintf(w, "\nFound %d documents for %q\n\n", len(hits), query)
	for i, h := range hits {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "%d. %s | Score: %.4f | Document %d", i+1, h.Title, h.Score, h.DocumentID)
		if h.WorkOrderID != 0 {
			fmt.Fprintf(w, " | Work order %d", h.WorkOrderID)
		}
		fmt.Fprintln(w)
		for _, f := range h.Fragments {
			fmt.Fprintf(w, "  %s\n", utils.Truncate(f, 200))
		}
	}
	return nil
}

func writeMetadata(w io.Writer, m *agent.Metadata) {
	if m == nil {
		return
	}
	fmt.Fprintf(w, "\nProcessed %d documents (%d chars) in %dms\n", len(m.ProcessedDocuments), m.TotalTextLength, m.DurationMS)
}

func writeClientMatch(w io.Writer, m *agent.ClientMatch) {
	fmt.Fprintln(w, rule)
	if m == nil {
		fmt.Fprintln(w, "Client: not evaluated")
		return
	}
	if !m.Matched {
		msg := m.Message
		if msg == "" {
			msg = m.Error
		}
		if msg == "" {
			msg = "no match"
		}
		fmt.Fprintf(w, "Client: none (%s)\n", msg)
		return
	}
	fmt.Fprintf(w, "Client: %s (#%d, confidence %.2f)\n", m.Client.DisplayName(), m.Client.ID, m.Confidence)
	for _, r := range m.Reasons {
		fmt.Fprintf(w, "  - %s\n", r)
	}
}

// writeFields prints fields sorted by name.
func writeFields(w io.Writer, fields map[string]any) {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(w, "%-28s %v\n", k+":", fields[k])
	}
}
