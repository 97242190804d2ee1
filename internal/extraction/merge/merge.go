// Package merge combines candidate security lists produced by the table,
// text and LLM extractors into one deduplicated holding list.
package merge

import (
	"fmt"
	"sort"

	"github.com/findoc/findoc/internal/extraction"
	"github.com/shopspring/decimal"
)

// valueTolerance is the relative tolerance for the value vs quantity*price
// cross-check. Disagreement beyond it is a warning, never a rejection.
var valueTolerance = decimal.NewFromFloat(0.01)

// sourcePriority orders per-field preference: table beats text beats llm.
var sourcePriority = map[extraction.Source]int{
	extraction.SourceTable: 3,
	extraction.SourceText:  2,
	extraction.SourceLLM:   1,
}

// Merge deduplicates candidates by ISIN and resolves each field from the
// highest-priority source that produced a non-default value. Records without
// an ISIN are kept as-is. The operation is idempotent: merging its own output
// returns the same list. Output ordering is deterministic, by descending
// value then ISIN then name.
func Merge(lists ...[]extraction.Security) ([]extraction.Security, []extraction.Warning) {
	byISIN := make(map[string]*extraction.Security)
	var order []string
	var noISIN []extraction.Security

	for _, list := range lists {
		for _, candidate := range list {
			if candidate.ISIN == "" {
				noISIN = append(noISIN, candidate)
				continue
			}
			existing, ok := byISIN[candidate.ISIN]
			if !ok {
				c := candidate
				byISIN[candidate.ISIN] = &c
				order = append(order, candidate.ISIN)
				continue
			}
			mergeInto(existing, candidate)
		}
	}

	merged := make([]extraction.Security, 0, len(order)+len(noISIN))
	for _, isin := range order {
		merged = append(merged, *byISIN[isin])
	}
	merged = append(merged, noISIN...)

	warnings := crossCheck(merged)

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Value != merged[j].Value {
			return merged[i].Value > merged[j].Value
		}
		if merged[i].ISIN != merged[j].ISIN {
			return merged[i].ISIN < merged[j].ISIN
		}
		return merged[i].Name < merged[j].Name
	})

	return merged, warnings
}

func mergeInto(dst *extraction.Security, src extraction.Security) {
	srcWins := sourcePriority[src.Source] > sourcePriority[dst.Source]

	dst.Name = pickString(dst.Name, src.Name, srcWins, isDefaultName)
	dst.Currency = pickString(dst.Currency, src.Currency, srcWins, func(s string) bool { return s == "" })
	dst.AssetClass = pickString(dst.AssetClass, src.AssetClass, srcWins, func(s string) bool { return s == "" })
	dst.Sector = pickString(dst.Sector, src.Sector, srcWins, func(s string) bool { return s == "" })
	dst.Region = pickString(dst.Region, src.Region, srcWins, func(s string) bool { return s == "" })

	dst.Quantity = pickNumber(dst.Quantity, src.Quantity, srcWins)
	dst.Price = pickNumber(dst.Price, src.Price, srcWins)
	dst.Value = pickNumber(dst.Value, src.Value, srcWins)
	dst.Weight = pickNumber(dst.Weight, src.Weight, srcWins)

	if srcWins {
		dst.Source = src.Source
	}
}

// pickString keeps the current value unless it is a default, or the incoming
// source outranks it and carries a non-default value.
func pickString(current, incoming string, srcWins bool, isDefault func(string) bool) string {
	if isDefault(incoming) {
		return current
	}
	if isDefault(current) || srcWins {
		return incoming
	}
	return current
}

func pickNumber(current, incoming float64, srcWins bool) float64 {
	if incoming == 0 {
		return current
	}
	if current == 0 || srcWins {
		return incoming
	}
	return current
}

func isDefaultName(s string) bool {
	return s == "" || s == "Unknown"
}

// crossCheck flags records whose value disagrees with quantity*price by more
// than the tolerance. Decimal math avoids float artifacts on the comparison.
func crossCheck(securities []extraction.Security) []extraction.Warning {
	var warnings []extraction.Warning
	for _, sec := range securities {
		if sec.Quantity == 0 || sec.Price == 0 || sec.Value == 0 {
			continue
		}
		expected := decimal.NewFromFloat(sec.Quantity).Mul(decimal.NewFromFloat(sec.Price))
		actual := decimal.NewFromFloat(sec.Value)
		if expected.IsZero() {
			continue
		}
		diff := actual.Sub(expected).Abs().Div(expected.Abs())
		if diff.GreaterThan(valueTolerance) {
			warnings = append(warnings, extraction.Warning{
				Code: extraction.WarnValueMismatch,
				ISIN: sec.ISIN,
				Message: fmt.Sprintf("value %.2f disagrees with quantity*price %s for %s",
					sec.Value, expected.StringFixed(2), sec.ISIN),
			})
		}
	}
	return warnings
}
