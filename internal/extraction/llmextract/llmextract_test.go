package llmextract

import (
	"strings"
	"testing"

	"github.com/findoc/findoc/internal/extraction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPayload = `{
  "securities": [
    {"name": "Apple Inc.", "isin": "US0378331005", "quantity": 100, "price": 150.0, "value": 15000.0, "currency": "USD"}
  ],
  "portfolio_summary": {"total_value": 15000.0, "currency": "USD", "valuation_date": "2024-12-31"},
  "asset_allocation": {"equity": {"value": 15000.0, "percentage": 100.0}}
}`

func TestParse_PlainJSON(t *testing.T) {
	resp, err := Parse(validPayload)
	require.NoError(t, err)
	require.Len(t, resp.Securities, 1)
	assert.Equal(t, "US0378331005", resp.Securities[0].ISIN)
	assert.Equal(t, 15000.0, resp.PortfolioSummary.TotalValue)
}

// Fenced output parses the same as plain output.
func TestParse_MarkdownFence(t *testing.T) {
	raw := "Here is the extracted data:\n```json\n" + validPayload + "\n```\nLet me know if you need more."

	resp, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, resp.Securities, 1)
	assert.Equal(t, "Apple Inc.", resp.Securities[0].Name)
}

func TestParse_FenceWithoutLanguageTag(t *testing.T) {
	raw := "```\n" + validPayload + "\n```"
	resp, err := Parse(raw)
	require.NoError(t, err)
	assert.Len(t, resp.Securities, 1)
}

func TestParse_BraceMatchingInProse(t *testing.T) {
	raw := "Sure! The result is " + validPayload + " as requested."
	resp, err := Parse(raw)
	require.NoError(t, err)
	assert.Len(t, resp.Securities, 1)
}

func TestParse_NestedBracesInStrings(t *testing.T) {
	raw := `prefix {"securities": [{"name": "Weird {Name} Co"}]} suffix`
	resp, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, resp.Securities, 1)
	assert.Equal(t, "Weird {Name} Co", resp.Securities[0].Name)
}

func TestParse_MalformedReturnsError(t *testing.T) {
	cases := []string{
		"",
		"I could not process this document.",
		"{\"securities\": [",
		"```json\nnot json at all\n```",
		`{"securities": "not an array"}`,
		`{"portfolio_summary": {}}`,
		`{"securities": [{"isin": "US0378331005"}]}`,
	}
	for _, raw := range cases {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrUnparsableResponse, "input %q", raw)
	}
}

func TestParse_InvalidISINRejectedBySchema(t *testing.T) {
	raw := `{"securities": [{"name": "Bad", "isin": "NOT-AN-ISIN"}]}`
	_, err := Parse(raw)
	assert.ErrorIs(t, err, ErrUnparsableResponse)
}

func TestDefaultResult(t *testing.T) {
	shell := DefaultResult()
	assert.Empty(t, shell.Securities)
	assert.Empty(t, shell.ToSecurities())
	assert.Empty(t, shell.AssetAllocation)
}

func TestToSecurities_TagsSource(t *testing.T) {
	resp, err := Parse(validPayload)
	require.NoError(t, err)

	secs := resp.ToSecurities()
	require.Len(t, secs, 1)
	assert.Equal(t, extraction.SourceLLM, secs[0].Source)
	assert.Equal(t, 100.0, secs[0].Quantity)
}

func TestBuildPrompt(t *testing.T) {
	meta := Meta{FileName: "statement.pdf", DocumentType: "portfolio_statement", FileSize: 4096}
	prompt := BuildPrompt(meta, strings.Repeat("x", 5000))

	assert.Contains(t, prompt, "statement.pdf")
	assert.Contains(t, prompt, "portfolio_statement")
	assert.Contains(t, prompt, `"securities"`)
	// Excerpt is capped.
	assert.Less(t, len(prompt), 5000)
}
