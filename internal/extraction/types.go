// Package extraction defines the shared types flowing through the document
// extraction pipeline: acquired content, candidate security records, and the
// per-stage outcome reporting used by the orchestrator.
package extraction

import "time"

// Source identifies which pipeline stage produced a security record.
// Merge priority is table > text > llm.
type Source string

const (
	SourceTable Source = "table"
	SourceText  Source = "text"
	SourceLLM   Source = "llm"
)

// Security is one extracted holding. It is a value object serialized into
// Document.extracted_data, not a table of its own.
type Security struct {
	Name       string  `json:"name"`
	ISIN       string  `json:"isin,omitempty"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	Value      float64 `json:"value"`
	Currency   string  `json:"currency"`
	Weight     float64 `json:"weight,omitempty"`
	AssetClass string  `json:"asset_class,omitempty"`
	Sector     string  `json:"sector,omitempty"`
	Region     string  `json:"region,omitempty"`
	Source     Source  `json:"source"`
}

// PortfolioSummary holds document-level aggregates.
type PortfolioSummary struct {
	TotalValue    float64    `json:"total_value"`
	Currency      string     `json:"currency"`
	ValuationDate *time.Time `json:"valuation_date,omitempty"`
}

// Allocation is one asset-allocation bucket (equity, bond, cash, ...).
type Allocation struct {
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

// Warning records a non-fatal extraction issue: a defaulted field, a failed
// ISIN checksum, a value that disagrees with quantity*price.
type Warning struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	ISIN    string `json:"isin,omitempty"`
	Message string `json:"message"`
}

// Warning codes emitted by the pipeline.
const (
	WarnDefaultedField   = "defaulted_field"
	WarnBadChecksum      = "isin_checksum_failed"
	WarnValueMismatch    = "value_quantity_price_mismatch"
	WarnAllocationSum    = "allocation_percentages_off"
	WarnLLMUnparsable    = "llm_response_unparsable"
	WarnOCRFallback      = "ocr_fallback_used"
	WarnNoSecuritiesRule = "no_securities_rule_based"
)

// Result is the complete output of the pipeline for one document. It is what
// gets persisted into Document.extracted_data.
type Result struct {
	DocumentType     string                `json:"document_type"`
	Securities       []Security            `json:"securities"`
	PortfolioSummary PortfolioSummary      `json:"portfolio_summary"`
	AssetAllocation  map[string]Allocation `json:"asset_allocation,omitempty"`
	Warnings         []Warning             `json:"warnings,omitempty"`
	ExtractionMethod string                `json:"extraction_method,omitempty"`
}

// OutcomeStatus tags how a pipeline stage finished.
type OutcomeStatus string

const (
	OutcomeOK      OutcomeStatus = "ok"
	OutcomePartial OutcomeStatus = "partial"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome is the explicit per-stage result. Stages never swallow failures
// into silent defaults: a degraded result is Partial with warnings, a broken
// stage is Failed with the error attached, and the caller decides what to do.
type Outcome struct {
	Stage    string        `json:"stage"`
	Status   OutcomeStatus `json:"status"`
	Warnings []Warning     `json:"warnings,omitempty"`
	Err      error         `json:"-"`
}

func Ok(stage string) Outcome {
	return Outcome{Stage: stage, Status: OutcomeOK}
}

func Partial(stage string, warnings []Warning) Outcome {
	if len(warnings) == 0 {
		return Ok(stage)
	}
	return Outcome{Stage: stage, Status: OutcomePartial, Warnings: warnings}
}

func Failed(stage string, err error) Outcome {
	return Outcome{Stage: stage, Status: OutcomeFailed, Err: err}
}

// Error returns the stage error message, empty for non-failed outcomes.
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
