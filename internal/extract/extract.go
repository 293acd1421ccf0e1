// Package extract converts binary uploads into plain text for
// chunking. Only PDF is supported; other binary signatures are
// rejected upstream.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Common errors.
var (
	ErrNotPDF      = errors.New("data is not a PDF document")
	ErrEmptyResult = errors.New("no extractable text in document")
)

// pdfMagic is the signature every PDF starts with.
const pdfMagic = "%PDF"

// IsPDF reports whether the data carries a PDF signature.
func IsPDF(data []byte) bool {
	return len(data) >= len(pdfMagic) && string(data[:len(pdfMagic)]) == pdfMagic
}

// PDFText extracts the plain text of a PDF document. Malformed input
// returns an error; image-only documents return ErrEmptyResult.
func PDFText(data []byte) (text string, err error) {
	if !IsPDF(data) {
		return "", ErrNotPDF
	}

	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parsing pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}

	out := strings.TrimSpace(buf.String())
	if out == "" {
		return "", ErrEmptyResult
	}
	return out, nil
}
