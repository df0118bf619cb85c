package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// FillXLSX replaces {{name}} placeholders in every cell of every sheet.
func FillXLSX(data []byte, values map[string]string) ([]byte, []string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("open XLSX: %w", err)
	}
	defer f.Close()

	filled := map[string]bool{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		for r, row := range rows {
			for c, cell := range row {
				if !strings.Contains(cell, "{{") {
					continue
				}
				replaced := ReplaceText(cell, values, filled)
				if replaced == cell {
					continue
				}
				name, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return nil, nil, err
				}
				if err := f.SetCellValue(sheet, name, replaced); err != nil {
					return nil, nil, fmt.Errorf("set %s!%s: %w", sheet, name, err)
				}
			}
		}
	}
	var out bytes.Buffer
	if _, err := f.WriteTo(&out); err != nil {
		return nil, nil, fmt.Errorf("write XLSX: %w", err)
	}
	return out.Bytes(), sortedKeys(filled), nil
}
