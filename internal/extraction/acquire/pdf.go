package acquire

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfText extracts the embedded plain text of a PDF. Scanned PDFs come back
// empty, which the caller treats as the signal to fall back to OCR.
func pdfText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	var b strings.Builder
	if _, err := io.Copy(&b, textReader); err != nil {
		return "", fmt.Errorf("failed to copy pdf text: %w", err)
	}
	return b.String(), nil
}

func extractPlainText(path string) (*Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return &Content{Text: string(data), Method: MethodPlain}, nil
}
