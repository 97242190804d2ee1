// Package acquire turns an uploaded file into plain text plus candidate
// table rows. PDFs go through embedded-text extraction with an OCR
// subprocess fallback for scanned documents, spreadsheets and CSVs keep
// their row structure, images go straight to OCR.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoTextContent     = errors.New("no text content extracted")
)

// Extraction methods recorded on the acquired content.
const (
	MethodPDFText = "pdf_text"
	MethodOCR     = "ocr"
	MethodXLSX    = "xlsx"
	MethodCSV     = "csv"
	MethodPlain   = "plain_text"
)

// Content is the acquisition output: the flattened text and, where the
// format has structure, the raw rows for the table extractor.
type Content struct {
	Text   string
	Tables [][]string
	Method string
}

// Extractor dispatches on file type. The OCR runner is optional; without it
// scanned PDFs and images fail with an explicit error instead of returning
// empty text.
type Extractor struct {
	ocr Runner
}

func NewExtractor(ocr Runner) *Extractor {
	return &Extractor{ocr: ocr}
}

// Extract reads the file at path and produces its content. contentType is
// the stored MIME type; the file extension is the fallback signal.
func (e *Extractor) Extract(ctx context.Context, path, contentType string) (*Content, error) {
	switch kind(path, contentType) {
	case "pdf":
		return e.extractPDF(ctx, path)
	case "xlsx":
		return extractXLSX(path)
	case "csv":
		return extractCSV(path)
	case "image":
		return e.runOCR(ctx, path)
	case "text":
		return extractPlainText(path)
	default:
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, filepath.Ext(path), contentType)
	}
}

func kind(path, contentType string) string {
	switch contentType {
	case "application/pdf":
		return "pdf"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/vnd.ms-excel":
		return "xlsx"
	case "text/csv":
		return "csv"
	case "text/plain":
		return "text"
	}
	if strings.HasPrefix(contentType, "image/") {
		return "image"
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "pdf"
	case ".xlsx", ".xls":
		return "xlsx"
	case ".csv":
		return "csv"
	case ".txt":
		return "text"
	case ".png", ".jpg", ".jpeg", ".tiff", ".tif":
		return "image"
	}
	return ""
}

// extractPDF tries embedded text first and falls back to OCR when the PDF
// carries none (scanned documents).
func (e *Extractor) extractPDF(ctx context.Context, path string) (*Content, error) {
	text, err := pdfText(path)
	if err == nil && strings.TrimSpace(text) != "" {
		return &Content{Text: text, Method: MethodPDFText}, nil
	}

	content, ocrErr := e.runOCR(ctx, path)
	if ocrErr != nil {
		if err != nil {
			return nil, fmt.Errorf("pdf text extraction failed (%v), ocr fallback failed: %w", err, ocrErr)
		}
		return nil, fmt.Errorf("pdf has no embedded text, ocr fallback failed: %w", ocrErr)
	}
	return content, nil
}

func (e *Extractor) runOCR(ctx context.Context, path string) (*Content, error) {
	if e.ocr == nil {
		return nil, errors.New("ocr is not configured")
	}
	result, err := e.ocr.Run(ctx, path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.Text) == "" && len(result.Tables) == 0 {
		return nil, ErrNoTextContent
	}

	content := &Content{Text: result.Text, Method: MethodOCR}
	for _, table := range result.Tables {
		content.Tables = append(content.Tables, table.Rows...)
	}
	return content, nil
}
