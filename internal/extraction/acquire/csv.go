package acquire

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
)

// holdingRow matches the common header variants of exported holdings files.
// Files that don't fit this shape still acquire through the raw reader below.
type holdingRow struct {
	Name     string `csv:"name,omitempty"`
	Security string `csv:"security,omitempty"`
	ISIN     string `csv:"isin,omitempty"`
	Quantity string `csv:"quantity,omitempty"`
	Price    string `csv:"price,omitempty"`
	Value    string `csv:"value,omitempty"`
	Currency string `csv:"currency,omitempty"`
}

// extractCSV reads a CSV file into rows for the table extractor plus
// tab-joined text. Typed parsing via gocsv is attempted first for
// well-formed holdings exports; any failure falls back to raw records so an
// odd delimiter or header never blocks acquisition.
func extractCSV(path string) (*Content, error) {
	rows, err := typedCSVRows(path)
	if err != nil {
		rows, err = rawCSVRows(path)
		if err != nil {
			return nil, err
		}
	}
	if len(rows) == 0 {
		return nil, ErrNoTextContent
	}

	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	return &Content{Text: b.String(), Tables: rows, Method: MethodCSV}, nil
}

func typedCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	var parsed []holdingRow
	if err := gocsv.UnmarshalFile(f, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}

	rows := [][]string{{"name", "isin", "quantity", "price", "value", "currency"}}
	for _, r := range parsed {
		name := r.Name
		if name == "" {
			name = r.Security
		}
		if name == "" && r.ISIN == "" {
			continue
		}
		rows = append(rows, []string{name, r.ISIN, r.Quantity, r.Price, r.Value, r.Currency})
	}
	if len(rows) == 1 {
		return nil, fmt.Errorf("csv has no recognizable holdings columns")
	}
	return rows, nil
}

func rawCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}
