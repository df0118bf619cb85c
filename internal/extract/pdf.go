package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

func (e *Extractor) extractPDF(ctx context.Context, content []byte) (string, error) {
	text, err := readPDF(content)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	if e.pdftotext == "" {
		return text, err
	}
	e.logger.Debug("falling back to pdftotext", zap.Error(err))
	return e.runPdfToText(ctx, content)
}

func readPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return strings.Join(pages, "\n"), nil
}

// runPdfToText pipes the PDF through `pdftotext -layout - -`.
func (e *Extractor) runPdfToText(ctx context.Context, content []byte) (string, error) {
	tmp, err := os.CreateTemp("", "taxdesk-*.pdf")
	if err != nil {
		return "", fmt.Errorf("pdftotext temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("pdftotext temp file: %w", err)
	}
	_ = tmp.Close()

	cmd := exec.CommandContext(ctx, e.pdftotext, "-layout", tmp.Name(), "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
