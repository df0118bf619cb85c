package render

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// placeholderRe matches {{ name }} even when Word split it across runs; the inner groups
// absorb the run markup.
var placeholderRe = regexp.MustCompile(`\{(?:<[^>]*>)*\{((?:[^{}<]|<[^>]*>)*?)\}(?:<[^>]*>)*\}`)

var tagRe = regexp.MustCompile(`<[^>]*>`)

// isWordTextPart reports whether a zip entry can carry placeholders.
func isWordTextPart(name string) bool {
	if !strings.HasPrefix(name, "word/") || !strings.HasSuffix(name, ".xml") {
		return false
	}
	base := strings.TrimPrefix(name, "word/")
	return base == "document.xml" ||
		strings.HasPrefix(base, "header") ||
		strings.HasPrefix(base, "footer") ||
		base == "footnotes.xml" || base == "endnotes.xml"
}

// FillDOCX replaces {{name}} placeholders in the document body, headers and footers.
// Unknown placeholders are left in place. It returns the new file and the filled names.
func FillDOCX(data []byte, values map[string]string) ([]byte, []string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("open DOCX: %w", err)
	}
	filled := map[string]bool{}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		if isWordTextPart(f.Name) {
			content = replaceInXML(content, values, filled)
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: f.Method, Modified: f.Modified})
		if err != nil {
			return nil, nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
		if _, err := w.Write(content); err != nil {
			return nil, nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, nil, fmt.Errorf("close DOCX: %w", err)
	}
	return buf.Bytes(), sortedKeys(filled), nil
}

func replaceInXML(content []byte, values map[string]string, filled map[string]bool) []byte {
	return placeholderRe.ReplaceAllFunc(content, func(m []byte) []byte {
		sub := placeholderRe.FindSubmatch(m)
		name := strings.TrimSpace(tagRe.ReplaceAllString(string(sub[1]), ""))
		v, ok := values[name]
		if !ok {
			return m
		}
		filled[name] = true
		return []byte(escapeXML(v))
	})
}

func escapeXML(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ReplaceText substitutes {{name}} placeholders in plain text.
func ReplaceText(s string, values map[string]string, filled map[string]bool) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := placeholderRe.FindStringSubmatch(m)
		name := strings.TrimSpace(sub[1])
		v, ok := values[name]
		if !ok {
			return m
		}
		if filled != nil {
			filled[name] = true
		}
		return v
	})
}
