// Package fields implements the rule-based extractors: ISIN scanning with a
// context window around each match, labeled-number regexes for quantity,
// price and value, currency detection, and portfolio summary and asset
// allocation parsing.
package fields

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/findoc/findoc/internal/extraction"
	"github.com/findoc/findoc/internal/extraction/normalize"
)

// contextWindow is how far around an ISIN match the field regexes look.
const contextWindow = 200

const numberPattern = `-?[\d][\d',.\x{2019}]*`

// Ordered label alternatives per field. The first regex that matches inside
// the context window wins.
var (
	quantityRegexes = compileLabeled([]string{
		`quantity`, `qty`, `units`, `shares`, `nominal`, `anzahl`, `stück`,
	})
	priceRegexes = compileLabeled([]string{
		`price`, `market\s+price`, `rate`, `kurs`, `cours`,
	})
	valueRegexes = compileLabeled([]string{
		`market\s+value`, `value`, `amount`, `total`, `betrag`, `wert`,
	})

	currencyCodeRegex = regexp.MustCompile(`\b(USD|EUR|CHF|GBP|JPY|CAD|AUD|SEK|NOK|DKK|SGD|HKD|CNY)\b`)

	fieldLabelCut = regexp.MustCompile(`(?i)\b(quantity|qty|units|shares|nominal|price|rate|kurs|value|amount|total|currency|isin)\b`)

	mostlyNumeric = regexp.MustCompile(`^[\d\s.,'%/:()+-]*$`)

	// labelNumberStrip removes "label: number" pairs and currency codes so a
	// line full of field data does not pass for a security name.
	labelNumberStrip = regexp.MustCompile(`(?i)\b(quantity|qty|units|shares|nominal|price|rate|kurs|market\s+value|value|amount|total)\b\s*[:=]?\s*-?[\d][\d',.]*|\b(USD|EUR|CHF|GBP|JPY|CAD|AUD|SEK|NOK|DKK|SGD|HKD|CNY)\b`)
)

var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
}

func compileLabeled(labels []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(labels))
	for _, label := range labels {
		out = append(out, regexp.MustCompile(`(?i)\b`+label+`\b\s*[:=]?\s*(`+numberPattern+`)`))
	}
	return out
}

// ExtractSecurities scans text for ISINs and builds one candidate security
// per match from the surrounding context window. Missing fields take the
// documented defaults (0, "USD", "Unknown") and each defaulted field emits a
// warning so callers can tell a parsed zero from an absent one.
func ExtractSecurities(text string) ([]extraction.Security, []extraction.Warning) {
	matches := FindISINs(text)
	if len(matches) == 0 {
		return nil, nil
	}

	securities := make([]extraction.Security, 0, len(matches))
	var warnings []extraction.Warning
	seen := make(map[string]bool)

	for _, m := range matches {
		if seen[m.ISIN] {
			continue
		}
		seen[m.ISIN] = true

		start := m.Start - contextWindow
		if start < 0 {
			start = 0
		}
		end := m.End + contextWindow
		if end > len(text) {
			end = len(text)
		}
		window := text[start:end]

		sec := extraction.Security{
			ISIN:   m.ISIN,
			Source: extraction.SourceText,
		}

		if !ValidChecksum(m.ISIN) {
			warnings = append(warnings, extraction.Warning{
				Code:    extraction.WarnBadChecksum,
				ISIN:    m.ISIN,
				Message: fmt.Sprintf("ISIN %s fails its check digit", m.ISIN),
			})
		}

		sec.Name = extractName(text, m, start, end)
		if sec.Name == "" {
			sec.Name = "Unknown"
			warnings = append(warnings, defaultedWarning(m.ISIN, "name"))
		}

		var ok bool
		if sec.Quantity, ok = firstLabeledNumber(window, quantityRegexes); !ok {
			warnings = append(warnings, defaultedWarning(m.ISIN, "quantity"))
		}
		if sec.Price, ok = firstLabeledNumber(window, priceRegexes); !ok {
			warnings = append(warnings, defaultedWarning(m.ISIN, "price"))
		}
		if sec.Value, ok = firstLabeledNumber(window, valueRegexes); !ok {
			warnings = append(warnings, defaultedWarning(m.ISIN, "value"))
		}
		if sec.Currency, ok = detectCurrency(window); !ok {
			sec.Currency = "USD"
			warnings = append(warnings, defaultedWarning(m.ISIN, "currency"))
		}

		securities = append(securities, sec)
	}

	return securities, warnings
}

func defaultedWarning(isin, field string) extraction.Warning {
	return extraction.Warning{
		Code:    extraction.WarnDefaultedField,
		Field:   field,
		ISIN:    isin,
		Message: fmt.Sprintf("no %s found near ISIN %s, default applied", field, isin),
	}
}

func firstLabeledNumber(window string, regexes []*regexp.Regexp) (float64, bool) {
	for _, re := range regexes {
		if m := re.FindStringSubmatch(window); m != nil {
			if n, err := normalize.Number(m[1]); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func detectCurrency(window string) (string, bool) {
	if m := currencyCodeRegex.FindString(window); m != "" {
		return m, true
	}
	for _, cs := range currencySymbols {
		if strings.Contains(window, cs.symbol) {
			return cs.code, true
		}
	}
	return "", false
}

// extractName finds the security name for an ISIN match. The same-line
// remainder after the ISIN is tried first (statements often read
// "ISIN: XX000... - Some Name, Quantity: ..."), then the nearest line in the
// window that is not the ISIN line, not numeric noise, and at least ten
// characters long.
func extractName(text string, m ISINMatch, windowStart, windowEnd int) string {
	lineEnd := strings.IndexByte(text[m.End:], '\n')
	if lineEnd < 0 {
		lineEnd = len(text) - m.End
	}
	remainder := text[m.End : m.End+lineEnd]
	if name := nameFromRemainder(remainder); name != "" {
		return name
	}

	// Fall back to neighboring lines inside the window.
	lines := strings.Split(text[windowStart:windowEnd], "\n")

	best := ""
	bestDist := -1
	offset := windowStart
	for _, line := range lines {
		lineStart := offset
		offset += len(line) + 1

		trimmed := strings.TrimSpace(line)
		if len(trimmed) < 10 || strings.Contains(trimmed, m.ISIN) {
			continue
		}
		residue := strings.TrimSpace(labelNumberStrip.ReplaceAllString(trimmed, ""))
		if len(residue) < 10 || mostlyNumeric.MatchString(residue) {
			continue
		}
		dist := m.Start - lineStart
		if dist < 0 {
			dist = -dist
		}
		if bestDist == -1 || dist < bestDist {
			best = trimmed
			bestDist = dist
		}
	}
	return best
}

func nameFromRemainder(remainder string) string {
	s := strings.TrimLeft(remainder, " \t-–:,.")
	if loc := fieldLabelCut.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	s = strings.TrimRight(s, " \t-–:,")
	if countLetters(s) < 3 || mostlyNumeric.MatchString(s) {
		return ""
	}
	return s
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			n++
		}
	}
	return n
}
