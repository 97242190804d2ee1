package fields

import (
	"testing"
	"time"

	"github.com/findoc/findoc/internal/extraction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSummary(t *testing.T) {
	text := `Portfolio Statement
Valuation Date: 2024-12-31
Total Portfolio Value: USD 1'250'000.00`

	summary, warnings := ExtractSummary(text)
	assert.Equal(t, 1250000.0, summary.TotalValue)
	assert.Equal(t, "USD", summary.Currency)
	require.NotNil(t, summary.ValuationDate)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), *summary.ValuationDate)
	assert.Empty(t, warnings)
}

func TestExtractSummary_EuropeanDate(t *testing.T) {
	summary, _ := ExtractSummary("Depotauszug per 31.12.2024\nGesamtwert: CHF 500'000")
	assert.Equal(t, 500000.0, summary.TotalValue)
	assert.Equal(t, "CHF", summary.Currency)
	require.NotNil(t, summary.ValuationDate)
	assert.Equal(t, 2024, summary.ValuationDate.Year())
	assert.Equal(t, time.December, summary.ValuationDate.Month())
}

func TestExtractSummary_DefaultsWithWarnings(t *testing.T) {
	summary, warnings := ExtractSummary("nothing financial here")
	assert.Zero(t, summary.TotalValue)
	assert.Equal(t, "USD", summary.Currency)
	assert.Nil(t, summary.ValuationDate)

	codes := make(map[string]int)
	for _, w := range warnings {
		codes[w.Code]++
	}
	assert.Equal(t, 2, codes[extraction.WarnDefaultedField])
}

func TestExtractAllocation(t *testing.T) {
	text := `Asset Allocation
Equities: 600'000 (60.0%)
Bonds: 300'000 (30.0%)
Cash: 100'000 (10.0%)`

	alloc, warnings := ExtractAllocation(text)
	require.Len(t, alloc, 3)
	assert.Empty(t, warnings)

	assert.Equal(t, 600000.0, alloc["equity"].Value)
	assert.Equal(t, 60.0, alloc["equity"].Percentage)
	assert.Equal(t, 300000.0, alloc["bond"].Value)
	assert.Equal(t, 100000.0, alloc["cash"].Value)
}

func TestExtractAllocation_PercentagesOffWarns(t *testing.T) {
	text := "Equities: 500 (50%)\nBonds: 300 (30%)"

	alloc, warnings := ExtractAllocation(text)
	require.Len(t, alloc, 2)
	require.Len(t, warnings, 1)
	assert.Equal(t, extraction.WarnAllocationSum, warnings[0].Code)
}

func TestExtractAllocation_Empty(t *testing.T) {
	alloc, warnings := ExtractAllocation("no allocation table")
	assert.Empty(t, alloc)
	assert.Empty(t, warnings)
}
