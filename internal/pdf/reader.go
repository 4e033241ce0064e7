package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	pdferrors "github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/errors"
)

// Reader extracts plain page text, the input for field suggestions
type Reader struct {
	maxTextSize int
}

// NewReader creates a new page text reader
func NewReader() *Reader {
	return &Reader{
		maxTextSize: 1024 * 1024, // 1MB of text per page
	}
}

// PageText returns the plain text of a zero-based page
func (r *Reader) PageText(data []byte, pageIndex int) (text string, err error) {
	// The text extractor panics on some malformed content streams.
	defer func() {
		if rec := recover(); rec != nil {
			err = pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeMalformedSourceDocument,
				"failed to extract page text", fmt.Sprint(rec)).WithPage(pageIndex + 1)
		}
	}()

	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", pdferrors.WrapError(pdferrors.ErrorTypeMalformedSourceDocument, "failed to open PDF", err)
	}

	if pageIndex < 0 || pageIndex >= pdfReader.NumPage() {
		return "", pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypePageOutOfRange, "page index out of range",
			fmt.Sprintf("%d (document has %d pages)", pageIndex, pdfReader.NumPage())).WithPage(pageIndex + 1)
	}

	page := pdfReader.Page(pageIndex + 1)
	if page.V.IsNull() {
		return "", nil
	}

	content, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from page %d: %w", pageIndex+1, err)
	}

	return strings.TrimSpace(truncateText(content, r.maxTextSize)), nil
}

// truncateText cuts s to at most maxBytes bytes without splitting a UTF-8 sequence
func truncateText(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
