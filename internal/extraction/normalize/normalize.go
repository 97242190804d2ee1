// Package normalize parses the number formats that show up in financial
// statements: US thousands separators ("1,234.56"), Swiss apostrophes
// ("1'234.56"), embedded currency symbols and trailing codes.
package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrNotANumber = errors.New("not a number")

// currencyJunk covers symbols and separators stripped before parsing.
// Apostrophe variants cover the Swiss thousands separator in both its ASCII
// and typographic forms.
var currencyJunk = strings.NewReplacer(
	"$", "", "€", "", "£", "", "¥", "",
	"'", "", "’", "", "`", "",
	",", "",
	" ", "", " ", "",
)

// Decimal parses a raw numeric string into a decimal value.
func Decimal(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, ErrNotANumber
	}

	// Accounting negatives: (1,234.56)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = currencyJunk.Replace(s)
	s = strings.Trim(s, "-%")
	if s == "" {
		return decimal.Zero, ErrNotANumber
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotANumber, raw)
	}
	if negative || strings.HasPrefix(strings.TrimSpace(raw), "-") {
		d = d.Neg()
	}
	return d, nil
}

// Number parses a raw numeric string into a float64.
// Number("1,234.56") and Number("1'234.56") both return 1234.56.
func Number(raw string) (float64, error) {
	d, err := Decimal(raw)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}
