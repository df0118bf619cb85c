// Package render fills DOCX and XLSX templates with field values and optionally converts
// the result to PDF.
package render

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/models"
	"github.com/hyperjump/taxdesk/pkg/utils"
)

// Mime types of generated artifacts.
const (
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimePDF  = "application/pdf"
)

// Artifact is a generated document.
type Artifact struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
	// Filled lists the placeholders that received a value.
	Filled []string `json:"filled_fields"`
}

// FileReader loads stored template files by their stored path.
type FileReader interface {
	Read(name string) ([]byte, error)
}

// Renderer generates artifacts from templates.
type Renderer struct {
	files     FileReader
	converter *Converter
	logger    *zap.Logger
}

// NewRenderer returns a Renderer. A nil converter keeps the filled office format.
func NewRenderer(files FileReader, converter *Converter, logger *zap.Logger) *Renderer {
	return &Renderer{files: files, converter: converter, logger: utils.OrNop(logger)}
}

// Render fills tpl with values.
func (r *Renderer) Render(ctx context.Context, tpl *models.Template, values map[string]any) (*Artifact, error) {
	if tpl == nil {
		return nil, fmt.Errorf("no template provided for document generation")
	}
	if tpl.FilePath == "" {
		return nil, fmt.Errorf("template %d has no file", tpl.ID)
	}
	data, err := r.files.Read(tpl.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read template %d: %w", tpl.ID, err)
	}
	strValues := FormatValues(values)

	ext := strings.ToLower(filepath.Ext(tpl.FilePath))
	base := strings.TrimSuffix(filepath.Base(tpl.FilePath), filepath.Ext(tpl.FilePath))
	if tpl.Title != "" {
		base = tpl.Title
	}

	var art Artifact
	switch ext {
	case ".docx":
		out, filled, err := FillDOCX(data, strValues)
		if err != nil {
			return nil, err
		}
		art = Artifact{Data: out, MimeType: MimeDOCX, Filename: base + ".docx", Filled: filled}
	case ".xlsx":
		out, filled, err := FillXLSX(data, strValues)
		if err != nil {
			return nil, err
		}
		art = Artifact{Data: out, MimeType: MimeXLSX, Filename: base + ".xlsx", Filled: filled}
	default:
		return nil, fmt.Errorf("unsupported template format %q", ext)
	}

	if r.converter != nil {
		pdf, err := r.converter.ConvertToPDF(ctx, art.Filename, art.Data)
		if err != nil {
			r.logger.Warn("PDF conversion failed, returning office document", zap.Error(err))
		} else {
			art.Data, art.MimeType, art.Filename = pdf, MimePDF, base+".pdf"
		}
	}
	r.logger.Info("generated document",
		zap.Int64("template_id", tpl.ID),
		zap.String("filename", art.Filename),
		zap.Int("filled", len(art.Filled)))
	return &art, nil
}

// FormatValues renders values as template text. Booleans become "Ja"/"Nein".
func FormatValues(values map[string]any) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		switch x := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = x
		case bool:
			if x {
				out[k] = "Ja"
			} else {
				out[k] = "Nein"
			}
		case float64:
			out[k] = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			out[k] = fmt.Sprint(x)
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
