// Package extract turns uploaded office documents into plain text.
package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/pkg/utils"
)

// Extractor extracts plain text from PDF, office (DOCX, XLSX, PPTX, ODP, ODS) and text files.
type Extractor struct {
	pdftotext string
	logger    *zap.Logger
}

// NewExtractor returns an Extractor. pdftotextPath names the poppler binary used when the
// embedded PDF reader finds no text; it is ignored when the binary is not installed.
func NewExtractor(pdftotextPath string, logger *zap.Logger) *Extractor {
	e := &Extractor{logger: utils.OrNop(logger)}
	if pdftotextPath != "" {
		if p, err := exec.LookPath(pdftotextPath); err == nil {
			e.pdftotext = p
		}
	}
	return e
}

// Extract reads the file at path and returns its text.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(ctx, content, filepath.Ext(path))
}

// ExtractFile extracts text from an upload, choosing the format by the file name.
func (e *Extractor) ExtractFile(ctx context.Context, filename string, content []byte) (string, error) {
	text, err := e.ExtractBytes(ctx, content, filepath.Ext(filename))
	if err != nil {
		return "", fmt.Errorf("%s: %w", filename, err)
	}
	e.logger.Debug("extracted text", zap.String("file", filename), zap.Int("chars", len(text)))
	return text, nil
}

// ExtractBytes extracts text from content based on ext (with leading dot).
// Unknown extensions are read as text.
func (e *Extractor) ExtractBytes(ctx context.Context, content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return e.extractPDF(ctx, content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	case ".pptx":
		return extractPPTX(content)
	case ".odp":
		return extractOpenDocument(content, "ODP")
	case ".ods":
		return extractOpenDocument(content, "ODS")
	case ".doc", ".xls", ".ppt":
		return "", fmt.Errorf("legacy office format %s is not supported; convert to %sx first", ext, ext)
	default:
		return extractPlain(content), nil
	}
}
