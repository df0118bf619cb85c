package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

// docxWithBody returns a .docx zip whose word/document.xml wraps body.
func docxWithBody(body string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document ` + wordNS + `><w:body>` + body + `</w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func para(text string) string {
	return `<w:p w:rsidR="00AB"><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`
}

func TestExtractBytes_plain(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		ext  string
		want string
	}{
		{"utf8", []byte("Hello world\nLine 2"), ".txt", "Hello world\nLine 2"},
		{"bom", []byte("\xEF\xBB\xBFSteuer"), ".txt", "Steuer"},
		{"latin1", []byte("Gr\xfc\xdfe"), ".csv", "Grüße"},
	}
	e := NewExtractor("", nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractBytes(context.Background(), tt.data, tt.ext)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractBytes_legacyOffice(t *testing.T) {
	_, err := NewExtractor("", nil).ExtractBytes(context.Background(), []byte{0xD0, 0xCF}, ".doc")
	assert.Error(t, err)
}

func TestExtractBytes_docxParagraphs(t *testing.T) {
	body := para("Steuerbescheid 2024") +
		`<w:p><w:r><w:t>Betrag:</w:t></w:r><w:r><w:tab/><w:t>1.200 &amp; mehr</w:t></w:r></w:p>` +
		`<w:p></w:p>` +
		para("Ende")
	got, err := NewExtractor("", nil).ExtractBytes(context.Background(), docxWithBody(body), ".docx")
	require.NoError(t, err)
	assert.Equal(t, "Steuerbescheid 2024\nBetrag:\t1.200 & mehr\nEnde", got)
}

func TestExtractBytes_docxTable(t *testing.T) {
	body := para("Kopf") +
		`<w:tbl><w:tr><w:tc>` + para("Name") + `</w:tc><w:tc>` + para("Max") + `</w:tc></w:tr>` +
		`<w:tr><w:tc>` + para("Steuernummer") + `</w:tc><w:tc></w:tc><w:tc>` + para("143/123") + `</w:tc></w:tr></w:tbl>`
	got, err := NewExtractor("", nil).ExtractBytes(context.Background(), docxWithBody(body), ".docx")
	require.NoError(t, err)
	assert.Equal(t, "Kopf\nName | Max\nSteuernummer | 143/123", got)
}

func TestExtractBytes_docxContentTypes(t *testing.T) {
	tests := []struct {
		name     string
		override string
	}{
		{"part name first", `<Override PartName="/word/document2.xml" ContentType="` + docxMainContentType + `"/>`},
		{"content type first", `<Override ContentType="` + docxMainContentType + `" PartName="/word/document2.xml"/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := zip.NewWriter(&buf)
			ct, _ := w.Create(contentTypesPath)
			_, _ = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` + tt.override + `</Types>`))
			fw, _ := w.Create("word/document2.xml")
			_, _ = fw.Write([]byte(`<w:document ` + wordNS + `><w:body>` + para("from document2") + `</w:body></w:document>`))
			_ = w.Close()

			got, err := NewExtractor("", nil).ExtractBytes(context.Background(), buf.Bytes(), ".docx")
			require.NoError(t, err)
			assert.Equal(t, "from document2", got)
		})
	}
}

func TestExtractBytes_docxErrors(t *testing.T) {
	e := NewExtractor("", nil)
	_, err := e.ExtractBytes(context.Background(), []byte("not a zip"), ".docx")
	assert.Error(t, err, "non-zip docx")

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, _ = w.Create("other.xml")
	_ = w.Close()
	_, err = e.ExtractBytes(context.Background(), buf.Bytes(), ".docx")
	assert.Error(t, err, "docx without document part")
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Title"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Value 1"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "Value 2"))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	got, err := NewExtractor("", nil).ExtractBytes(context.Background(), buf.Bytes(), ".XLSX")
	require.NoError(t, err)
	assert.Equal(t, "Title\nValue 1\tValue 2", got)
}

func TestExtractBytes_excelMultipleSheets(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Einnahmen"))
	_, err := f.NewSheet("Ausgaben")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Ausgaben", "A1", "Miete"))
	var buf bytes.Buffer
	_, err = f.WriteTo(&buf)
	require.NoError(t, err)

	got, err := NewExtractor("", nil).ExtractBytes(context.Background(), buf.Bytes(), ".xlsx")
	require.NoError(t, err)
	assert.Equal(t, "# Sheet1\nEinnahmen\n# Ausgaben\nMiete", got)
}

func TestExtractBytes_invalidPDF(t *testing.T) {
	_, err := NewExtractor("", nil).ExtractBytes(context.Background(), []byte("%PDF-garbage"), ".pdf")
	assert.Error(t, err)
}

func TestExtract_file(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("File content"), 0600))

	got, err := NewExtractor("", nil).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "File content", got)

	_, err = NewExtractor("", nil).Extract(context.Background(), filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestExtractFile_errorNamesFile(t *testing.T) {
	_, err := NewExtractor("", nil).ExtractFile(context.Background(), "bescheid.docx", []byte("nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bescheid.docx")
}

func TestNewExtractor_missingPdftotext(t *testing.T) {
	e := NewExtractor("definitely-not-installed-pdftotext", nil)
	assert.Empty(t, e.pdftotext)
}
