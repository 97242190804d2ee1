// Package classify assigns a financial document type to extracted text.
// An optional LLM classifier is tried first; the Aho-Corasick keyword scorer
// is the always-available fallback and never fails.
package classify

import (
	"context"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"github.com/findoc/findoc/internal/infrastructure/database/models"
)

// labelOrder fixes tie-breaking: when two labels match the same number of
// distinct keywords, the earlier one wins.
var labelOrder = []models.DocumentType{
	models.DocTypePortfolioStatement,
	models.DocTypeTransactionStatement,
	models.DocTypePerformanceReport,
	models.DocTypeAccountStatement,
	models.DocTypeTaxDocument,
}

var labelKeywords = map[models.DocumentType][]string{
	models.DocTypePortfolioStatement: {
		"portfolio", "holdings", "positions", "asset allocation",
		"total portfolio value", "valuation", "securities account",
		"depot", "custody account",
	},
	models.DocTypeTransactionStatement: {
		"transaction", "trade date", "settlement date", "purchase",
		"sale", "order", "execution", "buy", "sell",
	},
	models.DocTypePerformanceReport: {
		"performance", "return", "benchmark", "ytd", "time-weighted",
		"annualized", "gain/loss", "since inception",
	},
	models.DocTypeAccountStatement: {
		"account statement", "opening balance", "closing balance",
		"iban", "account number", "debit", "credit", "interest",
	},
	models.DocTypeTaxDocument: {
		"tax", "withholding", "taxable income", "dividend income",
		"tax year", "fiscal year", "capital gains tax",
	},
}

// LabelClassifier is implemented by LLM-backed clients that return one label
// string for a document excerpt.
type LabelClassifier interface {
	ClassifyDocument(ctx context.Context, text string) (string, error)
}

// Classifier scores document text against per-label keyword sets.
type Classifier struct {
	matcher *ahocorasick.Matcher
	// index into the combined dictionary -> owning label
	labels []models.DocumentType
	llm    LabelClassifier
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLLM makes the classifier try the LLM first. An invalid label or a call
// failure falls back to the keyword scorer.
func WithLLM(llm LabelClassifier) Option {
	return func(c *Classifier) { c.llm = llm }
}

// New builds a classifier with the combined keyword dictionary compiled into
// a single Aho-Corasick matcher.
func New(opts ...Option) *Classifier {
	var dict []string
	var labels []models.DocumentType
	for _, label := range labelOrder {
		for _, kw := range labelKeywords[label] {
			dict = append(dict, strings.ToLower(kw))
			labels = append(labels, label)
		}
	}

	c := &Classifier{
		matcher: ahocorasick.NewStringMatcher(dict),
		labels:  labels,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns exactly one of the six document type labels. Text that
// matches no keywords classifies as unknown; the function is total and never
// returns an error.
func (c *Classifier) Classify(ctx context.Context, text string) models.DocumentType {
	if c.llm != nil {
		if label, err := c.llm.ClassifyDocument(ctx, text); err == nil {
			if dt, ok := parseLabel(label); ok {
				return dt
			}
		}
	}
	return c.classifyByKeywords(text)
}

func (c *Classifier) classifyByKeywords(text string) models.DocumentType {
	hits := c.matcher.Match([]byte(strings.ToLower(text)))

	counts := make(map[models.DocumentType]int)
	for _, idx := range hits {
		counts[c.labels[idx]]++
	}

	best := models.DocTypeUnknown
	bestCount := 0
	for _, label := range labelOrder {
		if counts[label] > bestCount {
			best = label
			bestCount = counts[label]
		}
	}
	return best
}

func parseLabel(s string) (models.DocumentType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.Trim(normalized, `"'.`)
	normalized = strings.ReplaceAll(normalized, " ", "_")
	for _, label := range labelOrder {
		if normalized == string(label) {
			return label, true
		}
	}
	if normalized == string(models.DocTypeUnknown) {
		return models.DocTypeUnknown, true
	}
	return "", false
}
