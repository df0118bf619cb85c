package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Converter turns office documents into PDF with a headless LibreOffice.
type Converter struct {
	binPath string
	timeout time.Duration
}

// NewConverter returns a converter for the soffice binary at binPath, or nil when the
// binary cannot be found.
func NewConverter(binPath string) *Converter {
	if binPath == "" {
		return nil
	}
	p, err := exec.LookPath(binPath)
	if err != nil {
		return nil
	}
	return &Converter{binPath: p, timeout: 2 * time.Minute}
}

// ConvertToPDF converts data (named filename) and returns the PDF bytes.
// PDF input is returned unchanged.
func (c *Converter) ConvertToPDF(ctx context.Context, filename string, data []byte) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return data, nil
	}
	dir, err := os.MkdirTemp("", "taxdesk-convert-*")
	if err != nil {
		return nil, fmt.Errorf("convert: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(in, data, 0600); err != nil {
		return nil, fmt.Errorf("convert: write input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, c.binPath, "--headless", "--convert-to", "pdf", "--outdir", dir, in)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("convert: soffice failed for %s: %w: %s", filename, err, strings.TrimSpace(stderr.String()))
	}

	out := filepath.Join(dir, strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))+".pdf")
	pdf, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("convert: read output: %w", err)
	}
	return pdf, nil
}
