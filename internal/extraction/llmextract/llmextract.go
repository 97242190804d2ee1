// Package llmextract turns free-form model output into structured holdings.
// It builds the extraction prompt, locates the JSON payload in the response
// (markdown fence first, then brace matching), and validates it against a
// compiled JSON schema before accepting it.
package llmextract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/findoc/findoc/internal/extraction"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrUnparsableResponse reports model output from which no valid payload
// could be recovered. Callers decide whether to degrade to DefaultResult or
// fail the stage; parsing itself never defaults silently.
var ErrUnparsableResponse = errors.New("llm response is not parsable")

// promptExcerptLimit caps how much document text goes into the prompt.
const promptExcerptLimit = 2000

const responseSchema = `{
  "type": "object",
  "properties": {
    "securities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "isin": {"type": "string", "pattern": "^$|^[A-Z]{2}[A-Z0-9]{9}[0-9]$"},
          "quantity": {"type": "number"},
          "price": {"type": "number"},
          "value": {"type": "number"},
          "currency": {"type": "string"},
          "asset_class": {"type": "string"},
          "sector": {"type": "string"},
          "region": {"type": "string"}
        },
        "required": ["name"]
      }
    },
    "portfolio_summary": {
      "type": "object",
      "properties": {
        "total_value": {"type": "number"},
        "currency": {"type": "string"},
        "valuation_date": {"type": "string"}
      }
    },
    "asset_allocation": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "value": {"type": "number"},
          "percentage": {"type": "number"}
        }
      }
    }
  },
  "required": ["securities"]
}`

var compiledSchema = jsonschema.MustCompileString("extraction_response.json", responseSchema)

var fenceRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// Meta describes the document being extracted, interpolated into the prompt.
type Meta struct {
	FileName     string
	DocumentType string
	FileSize     int64
}

// Response is the payload shape the model is asked to produce.
type Response struct {
	Securities       []ResponseSecurity              `json:"securities"`
	PortfolioSummary ResponseSummary                 `json:"portfolio_summary"`
	AssetAllocation  map[string]extraction.Allocation `json:"asset_allocation"`
}

type ResponseSecurity struct {
	Name       string  `json:"name"`
	ISIN       string  `json:"isin"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	Value      float64 `json:"value"`
	Currency   string  `json:"currency"`
	AssetClass string  `json:"asset_class"`
	Sector     string  `json:"sector"`
	Region     string  `json:"region"`
}

type ResponseSummary struct {
	TotalValue    float64 `json:"total_value"`
	Currency      string  `json:"currency"`
	ValuationDate string  `json:"valuation_date"`
}

// BuildPrompt assembles the single extraction prompt: document metadata, an
// excerpt of the text, and the schema the response must satisfy.
func BuildPrompt(meta Meta, text string) string {
	excerpt := text
	if len(excerpt) > promptExcerptLimit {
		excerpt = excerpt[:promptExcerptLimit]
	}

	var b strings.Builder
	b.WriteString("Extract the securities and portfolio data from this financial document.\n\n")
	fmt.Fprintf(&b, "Document: %s\nType: %s\nSize: %d bytes\n\n", meta.FileName, meta.DocumentType, meta.FileSize)
	b.WriteString("Document text:\n")
	b.WriteString(excerpt)
	b.WriteString("\n\nRespond with JSON only, matching this schema exactly:\n")
	b.WriteString(responseSchema)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- isin must be a 12-character ISIN or an empty string\n")
	b.WriteString("- quantity, price and value are plain numbers without separators\n")
	b.WriteString("- currency is a 3-letter ISO code\n")
	b.WriteString("- omit securities you are not confident about rather than guessing\n")
	return b.String()
}

// Parse extracts, validates and converts the JSON payload from raw model
// output. On any failure it returns an error wrapping ErrUnparsableResponse.
func Parse(raw string) (*Response, error) {
	payload, err := locateJSON(raw)
	if err != nil {
		return nil, err
	}

	var generic interface{}
	if err := json.Unmarshal([]byte(payload), &generic); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrUnparsableResponse, err)
	}
	if err := compiledSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: schema validation: %v", ErrUnparsableResponse, err)
	}

	var resp Response
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsableResponse, err)
	}
	return &resp, nil
}

// locateJSON finds the JSON object in model output: fenced block first, then
// the first balanced brace pair.
func locateJSON(raw string) (string, error) {
	if m := fenceRegex.FindStringSubmatch(raw); m != nil {
		candidate := strings.TrimSpace(m[1])
		if candidate != "" {
			return candidate, nil
		}
	}

	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", fmt.Errorf("%w: no JSON object found", ErrUnparsableResponse)
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unbalanced JSON object", ErrUnparsableResponse)
}

// ToSecurities converts the validated response into pipeline records tagged
// with the llm source.
func (r *Response) ToSecurities() []extraction.Security {
	out := make([]extraction.Security, 0, len(r.Securities))
	for _, s := range r.Securities {
		out = append(out, extraction.Security{
			Name:       s.Name,
			ISIN:       s.ISIN,
			Quantity:   s.Quantity,
			Price:      s.Price,
			Value:      s.Value,
			Currency:   s.Currency,
			AssetClass: s.AssetClass,
			Sector:     s.Sector,
			Region:     s.Region,
			Source:     extraction.SourceLLM,
		})
	}
	return out
}

// DefaultResult is the empty shell used on the degraded path when a caller
// decides to continue after an unparsable response. It is always explicit:
// nothing in this package returns it on its own.
func DefaultResult() *Response {
	return &Response{
		Securities:      []ResponseSecurity{},
		AssetAllocation: map[string]extraction.Allocation{},
	}
}
