package fields

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/findoc/findoc/internal/extraction"
	"github.com/findoc/findoc/internal/extraction/normalize"
)

var (
	totalValueRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)total\s+portfolio\s+value\s*[:=]?\s*(?:[A-Z]{3}\s*)?(` + numberPattern + `)`),
		regexp.MustCompile(`(?i)total\s+(?:assets|value)\s*[:=]?\s*(?:[A-Z]{3}\s*)?(` + numberPattern + `)`),
		regexp.MustCompile(`(?i)portfolio\s+total\s*[:=]?\s*(?:[A-Z]{3}\s*)?(` + numberPattern + `)`),
		regexp.MustCompile(`(?i)grand\s+total\s*[:=]?\s*(?:[A-Z]{3}\s*)?(` + numberPattern + `)`),
		regexp.MustCompile(`(?i)gesamtwert\s*[:=]?\s*(?:[A-Z]{3}\s*)?(` + numberPattern + `)`),
	}

	valuationDateRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)valuation\s+date\s*[:=]?\s*([\w./, -]+)`),
		regexp.MustCompile(`(?i)as\s+of\s*[:=]?\s*([\w./, -]+)`),
		regexp.MustCompile(`(?i)(?:per|stichtag)\s*[:=]?\s*([\d./-]+)`),
	}

	// Ordered date layouts tried against the captured date string.
	dateLayouts = []string{
		"2006-01-02",
		"02.01.2006",
		"02/01/2006",
		"01/02/2006",
		"January 2, 2006",
		"2 January 2006",
		"Jan 2, 2006",
	}

	allocationLabels = []struct {
		key     string
		aliases []string
	}{
		{"equity", []string{"equities", "equity", "stocks", "aktien"}},
		{"bond", []string{"bonds", "fixed income", "obligationen", "anleihen"}},
		{"cash", []string{"cash", "liquidity", "liquidität", "money market"}},
		{"real_estate", []string{"real estate", "immobilien", "property"}},
		{"alternatives", []string{"alternatives", "alternative investments", "hedge funds", "commodities"}},
		{"other", []string{"other", "others", "übrige"}},
	}
)

// ExtractSummary pulls document-level totals out of the text. Each field
// falls back to its default (0, "USD", nil date) with a warning when no
// labeled match is found.
func ExtractSummary(text string) (extraction.PortfolioSummary, []extraction.Warning) {
	var summary extraction.PortfolioSummary
	var warnings []extraction.Warning

	found := false
	for _, re := range totalValueRegexes {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, err := normalize.Number(m[1]); err == nil {
				summary.TotalValue = n
				found = true
				break
			}
		}
	}
	if !found {
		warnings = append(warnings, extraction.Warning{
			Code:    extraction.WarnDefaultedField,
			Field:   "total_value",
			Message: "no labeled portfolio total found",
		})
	}

	if code, ok := detectCurrency(text); ok {
		summary.Currency = code
	} else {
		summary.Currency = "USD"
		warnings = append(warnings, extraction.Warning{
			Code:    extraction.WarnDefaultedField,
			Field:   "currency",
			Message: "no currency detected, USD assumed",
		})
	}

	if d, ok := extractValuationDate(text); ok {
		summary.ValuationDate = &d
	}

	return summary, warnings
}

func extractValuationDate(text string) (time.Time, bool) {
	for _, re := range valuationDateRegexes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		// The loose capture can run past the date; try shrinking at
		// separators until a layout parses.
		for _, fragment := range dateFragments(candidate) {
			for _, layout := range dateLayouts {
				if d, err := time.Parse(layout, fragment); err == nil {
					return d, true
				}
			}
		}
	}
	return time.Time{}, false
}

func dateFragments(s string) []string {
	fragments := []string{s}
	if idx := strings.IndexByte(s, '\n'); idx > 0 {
		fragments = append(fragments, strings.TrimSpace(s[:idx]))
	}
	words := strings.Fields(s)
	for n := len(words); n >= 1; n-- {
		fragments = append(fragments, strings.Join(words[:n], " "))
	}
	return fragments
}

// ExtractAllocation parses asset-allocation buckets with value and optional
// percentage. Percentages are reported as found; a warning is emitted when
// they are present but far from summing to 100.
func ExtractAllocation(text string) (map[string]extraction.Allocation, []extraction.Warning) {
	lower := strings.ToLower(text)
	out := make(map[string]extraction.Allocation)
	var warnings []extraction.Warning

	for _, bucket := range allocationLabels {
		for _, alias := range bucket.aliases {
			re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(alias) +
				`\b\s*[:=]?\s*(?:[A-Z]{3}\s*)?(` + numberPattern + `)\s*(?:\(?\s*(` + numberPattern + `)\s*%\s*\)?)?`)
			m := re.FindStringSubmatch(lower)
			if m == nil {
				continue
			}
			value, err := normalize.Number(m[1])
			if err != nil {
				continue
			}
			alloc := extraction.Allocation{Value: value}
			if m[2] != "" {
				if pct, err := normalize.Number(m[2]); err == nil {
					alloc.Percentage = pct
				}
			}
			out[bucket.key] = alloc
			break
		}
	}

	if len(out) > 0 {
		sum := 0.0
		withPct := 0
		for _, a := range out {
			if a.Percentage != 0 {
				sum += a.Percentage
				withPct++
			}
		}
		if withPct == len(out) && withPct > 1 && math.Abs(sum-100) > 5 {
			warnings = append(warnings, extraction.Warning{
				Code:    extraction.WarnAllocationSum,
				Message: fmt.Sprintf("allocation percentages sum to %.1f", sum),
			})
		}
	}

	return out, warnings
}
