package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumber_ThousandsSeparators(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1,234.56", 1234.56},
		{"1'234.56", 1234.56},
		{"1’234.56", 1234.56},
		{"15,000.00", 15000},
		{"1'234'567.89", 1234567.89},
		{"100", 100},
		{"150.00", 150},
		{"0.5", 0.5},
	}

	for _, tt := range tests {
		got, err := Number(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestNumber_CurrencySymbols(t *testing.T) {
	got, err := Number("$1,500.25")
	require.NoError(t, err)
	assert.Equal(t, 1500.25, got)

	got, err = Number("€ 2'000.00")
	require.NoError(t, err)
	assert.Equal(t, 2000.0, got)
}

func TestNumber_Negatives(t *testing.T) {
	got, err := Number("-1,234.56")
	require.NoError(t, err)
	assert.Equal(t, -1234.56, got)

	got, err = Number("(1,234.56)")
	require.NoError(t, err)
	assert.Equal(t, -1234.56, got)
}

func TestNumber_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "12..34", "$"} {
		_, err := Number(in)
		assert.ErrorIs(t, err, ErrNotANumber, "input %q", in)
	}
}
