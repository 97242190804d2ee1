package acquire

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractXLSX reads every sheet of a workbook. Rows are kept intact for the
// table extractor and also flattened into tab-joined lines so the text
// extractors see the same content.
func extractXLSX(path string) (*Content, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	var tables [][]string

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			if isEmptyRow(row) {
				continue
			}
			tables = append(tables, row)
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
	}

	if b.Len() == 0 {
		return nil, ErrNoTextContent
	}
	return &Content{Text: b.String(), Tables: tables, Method: MethodXLSX}, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
