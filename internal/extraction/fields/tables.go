package fields

import (
	"strings"

	"github.com/findoc/findoc/internal/extraction"
	"github.com/findoc/findoc/internal/extraction/normalize"
)

// ExtractFromRows builds candidate securities from tabular data (spreadsheet
// sheets, CSV rows, OCR table output). A row qualifies when one of its cells
// is an ISIN; numeric cells in the same row fill quantity, price and value in
// column order, the longest non-numeric cell becomes the name.
func ExtractFromRows(rows [][]string) ([]extraction.Security, []extraction.Warning) {
	var securities []extraction.Security
	var warnings []extraction.Warning
	seen := make(map[string]bool)

	header := headerIndex(rows)

	for _, row := range rows {
		isin := ""
		for _, cell := range row {
			trimmed := strings.TrimSpace(cell)
			if isinPattern.MatchString(trimmed) && len(trimmed) == 12 {
				isin = trimmed
				break
			}
		}
		if isin == "" || seen[isin] {
			continue
		}
		seen[isin] = true

		sec := extraction.Security{
			ISIN:   isin,
			Source: extraction.SourceTable,
		}
		if !ValidChecksum(isin) {
			warnings = append(warnings, extraction.Warning{
				Code:    extraction.WarnBadChecksum,
				ISIN:    isin,
				Message: "ISIN " + isin + " fails its check digit",
			})
		}

		fillFromRow(&sec, row, header)

		if sec.Name == "" {
			sec.Name = "Unknown"
			warnings = append(warnings, defaultedWarning(isin, "name"))
		}
		if sec.Currency == "" {
			sec.Currency = "USD"
			warnings = append(warnings, defaultedWarning(isin, "currency"))
		}

		securities = append(securities, sec)
	}

	return securities, warnings
}

// headerIndex maps recognized column labels to their index using the first
// row that looks like a header. Returns nil when no header is found, in which
// case positional filling applies.
func headerIndex(rows [][]string) map[string]int {
	if len(rows) == 0 {
		return nil
	}
	labels := map[string]string{
		"name": "name", "security": "name", "description": "name", "instrument": "name",
		"quantity": "quantity", "qty": "quantity", "units": "quantity", "shares": "quantity", "nominal": "quantity",
		"price": "price", "rate": "price", "kurs": "price",
		"value": "value", "market value": "value", "amount": "value", "total": "value",
		"currency": "currency", "ccy": "currency", "curr": "currency",
	}

	for _, row := range rows[:min(len(rows), 3)] {
		idx := make(map[string]int)
		for i, cell := range row {
			key := strings.ToLower(strings.TrimSpace(cell))
			if field, ok := labels[key]; ok {
				if _, taken := idx[field]; !taken {
					idx[field] = i
				}
			}
		}
		if len(idx) >= 2 {
			return idx
		}
	}
	return nil
}

func fillFromRow(sec *extraction.Security, row []string, header map[string]int) {
	if header != nil {
		if i, ok := header["name"]; ok && i < len(row) {
			sec.Name = strings.TrimSpace(row[i])
		}
		if i, ok := header["quantity"]; ok && i < len(row) {
			sec.Quantity, _ = normalize.Number(row[i])
		}
		if i, ok := header["price"]; ok && i < len(row) {
			sec.Price, _ = normalize.Number(row[i])
		}
		if i, ok := header["value"]; ok && i < len(row) {
			sec.Value, _ = normalize.Number(row[i])
		}
		if i, ok := header["currency"]; ok && i < len(row) {
			if code := currencyCodeRegex.FindString(strings.ToUpper(row[i])); code != "" {
				sec.Currency = code
			}
		}
		if sec.Name != "" || sec.Quantity != 0 || sec.Value != 0 {
			return
		}
	}

	// Positional fallback: numbers fill quantity, price, value in order;
	// the longest textual cell is the name.
	var numbers []float64
	for _, cell := range row {
		trimmed := strings.TrimSpace(cell)
		if trimmed == "" || trimmed == sec.ISIN {
			continue
		}
		if code := currencyCodeRegex.FindString(trimmed); code == trimmed {
			sec.Currency = code
			continue
		}
		if n, err := normalize.Number(trimmed); err == nil {
			numbers = append(numbers, n)
			continue
		}
		if len(trimmed) > len(sec.Name) {
			sec.Name = trimmed
		}
	}
	if len(numbers) > 0 {
		sec.Quantity = numbers[0]
	}
	if len(numbers) > 1 {
		sec.Price = numbers[1]
	}
	if len(numbers) > 2 {
		sec.Value = numbers[2]
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
