package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
)

const pptxSlidePathPrefix = "ppt/slides/slide"

// extractPPTX returns the text of every slide in slide order, one line per paragraph.
func extractPPTX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract PPTX: not a zip: %w", err)
	}
	type slide struct {
		n    int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePathPrefix) || path.Ext(f.Name) != ".xml" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(f.Name, pptxSlidePathPrefix), ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, slide{n, f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var out []string
	for _, s := range slides {
		data, err := readEntry(s.file)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: read %s: %w", s.file.Name, err)
		}
		text, err := walkParagraphs(data, "t")
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %s: %w", s.file.Name, err)
		}
		if text != "" {
			out = append(out, text)
		}
	}
	return strings.Join(out, "\n"), nil
}

// extractOpenDocument returns the text of an ODP or ODS file from its content.xml.
// Spreadsheet rows become one line with cells joined by " | ".
func extractOpenDocument(content []byte, kind string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	data, err := readZipFile(zr, "content.xml")
	if err != nil {
		return "", fmt.Errorf("extract %s: read content.xml: %w", kind, err)
	}
	if data == nil {
		return "", fmt.Errorf("extract %s: content.xml not found", kind)
	}
	text, err := walkParagraphs(data, "")
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", kind, err)
	}
	return text, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// walkParagraphs collects paragraph text from DrawingML or OpenDocument XML. When textElem is
// set, only character data inside that element counts; otherwise all character data inside a
// paragraph does.
func walkParagraphs(data []byte, textElem string) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		lines  []string
		para   strings.Builder
		cells  []string
		depth  int // open paragraphs
		inText bool
		inRow  bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p", "h":
				depth++
			case "s", "tab", "line-break", "br":
				if depth > 0 {
					para.WriteByte(' ')
				}
			case "table-row":
				inRow = true
				cells = cells[:0]
			}
			if textElem != "" && t.Name.Local == textElem {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p", "h":
				depth--
				if depth > 0 {
					continue
				}
				s := strings.Join(strings.Fields(para.String()), " ")
				para.Reset()
				if s == "" {
					continue
				}
				if inRow {
					cells = append(cells, s)
				} else {
					lines = append(lines, s)
				}
			case "table-row":
				inRow = false
				if len(cells) > 0 {
					lines = append(lines, strings.Join(cells, " | "))
				}
			}
			if textElem != "" && t.Name.Local == textElem {
				inText = false
			}
		case xml.CharData:
			if depth > 0 && (textElem == "" || inText) {
				para.Write(t)
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}
