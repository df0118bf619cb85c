package render

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/taxdesk/internal/models"
)

func buildDocx(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range parts {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readZipPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			b, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(b)
		}
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func TestFillDOCX(t *testing.T) {
	doc := `<w:document><w:body>` +
		`<w:p><w:r><w:t>Sehr geehrte/r {{client_name}},</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Betrag: {{</w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>amount</w:t></w:r><w:r><w:t>}} EUR</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{ unknown }}</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	data := buildDocx(t, map[string]string{
		"word/document.xml": doc,
		"word/header1.xml":  `<w:hdr><w:p><w:r><w:t>{{company}}</w:t></w:r></w:p></w:hdr>`,
		"word/styles.xml":   `<w:styles>{{client_name}}</w:styles>`,
	})

	out, filled, err := FillDOCX(data, map[string]string{
		"client_name": "Müller & Söhne",
		"amount":      "1200.5",
		"company":     "Kanzlei",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"amount", "client_name", "company"}, filled)

	body := readZipPart(t, out, "word/document.xml")
	assert.Contains(t, body, "Sehr geehrte/r Müller &amp; Söhne,")
	assert.Contains(t, body, "Betrag: 1200.5 EUR")
	assert.Contains(t, body, "{{ unknown }}")
	assert.Contains(t, readZipPart(t, out, "word/header1.xml"), "Kanzlei")
	assert.Contains(t, readZipPart(t, out, "word/styles.xml"), "{{client_name}}")
}

func TestFillDOCX_notZip(t *testing.T) {
	_, _, err := FillDOCX([]byte("nope"), nil)
	assert.Error(t, err)
}

func TestFillXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Mandant: {{client_name}}"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "{{year}}"))
	require.NoError(t, f.SetCellValue("Sheet1", "C3", "{{missing}}"))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	f.Close()

	out, filled, err := FillXLSX(buf.Bytes(), map[string]string{"client_name": "ACME", "year": "2024"})
	require.NoError(t, err)
	assert.Equal(t, []string{"client_name", "year"}, filled)

	res, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer res.Close()
	a1, _ := res.GetCellValue("Sheet1", "A1")
	b2, _ := res.GetCellValue("Sheet1", "B2")
	c3, _ := res.GetCellValue("Sheet1", "C3")
	assert.Equal(t, "Mandant: ACME", a1)
	assert.Equal(t, "2024", b2)
	assert.Equal(t, "{{missing}}", c3)
}

func TestFormatValues(t *testing.T) {
	got := FormatValues(map[string]any{"a": true, "b": false, "c": 42.5, "d": "x", "e": nil, "f": 3})
	assert.Equal(t, map[string]string{"a": "Ja", "b": "Nein", "c": "42.5", "d": "x", "e": "", "f": "3"}, got)
}

type memFiles map[string][]byte

func (m memFiles) Read(name string) ([]byte, error) {
	b, ok := m[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return b, nil
}

func TestRenderer_Render(t *testing.T) {
	files := memFiles{"tpl/vollmacht.docx": buildDocx(t, map[string]string{
		"word/document.xml": `<w:document><w:body><w:p><w:r><w:t>{{client_name}} {{signed}}</w:t></w:r></w:p></w:body></w:document>`,
	})}
	r := NewRenderer(files, nil, nil)

	art, err := r.Render(context.Background(), &models.Template{ID: 1, Title: "Vollmacht", FilePath: "tpl/vollmacht.docx"},
		map[string]any{"client_name": "Max", "signed": true})
	require.NoError(t, err)
	assert.Equal(t, MimeDOCX, art.MimeType)
	assert.Equal(t, "Vollmacht.docx", art.Filename)
	assert.Contains(t, readZipPart(t, art.Data, "word/document.xml"), "Max Ja")

	_, err = r.Render(context.Background(), nil, nil)
	assert.Error(t, err)
	_, err = r.Render(context.Background(), &models.Template{ID: 2, FilePath: "missing.docx"}, nil)
	assert.Error(t, err)
	files["x.pdf"] = []byte("%PDF")
	_, err = r.Render(context.Background(), &models.Template{ID: 3, FilePath: "x.pdf"}, nil)
	assert.Error(t, err)
}

func TestNewConverter_missingBinary(t *testing.T) {
	assert.Nil(t, NewConverter(""))
	assert.Nil(t, NewConverter("definitely-not-installed-soffice"))
}

func TestConverter_passesPDFThrough(t *testing.T) {
	c := &Converter{binPath: "unused"}
	out, err := c.ConvertToPDF(context.Background(), "a.PDF", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), out)
}
