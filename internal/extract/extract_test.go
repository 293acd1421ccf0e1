package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF([]byte("%PDF-1.7\n...")))
	assert.False(t, IsPDF([]byte("plain text")))
	assert.False(t, IsPDF([]byte("%PD")))
	assert.False(t, IsPDF(nil))
}

func TestPDFTextRejectsNonPDF(t *testing.T) {
	_, err := PDFText([]byte("just some notes"))
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestPDFTextMalformed(t *testing.T) {
	// Valid signature, garbage body. Must error, not panic.
	_, err := PDFText([]byte("%PDF-1.4\nthis is not a real pdf body"))
	assert.Error(t, err)
}
