// Package pdf extracts per-page text from PDF files.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	pdfreader "github.com/ledongthuc/pdf"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// magic is the header every PDF file starts with.
var magic = []byte("%PDF-")

// IsPDF reports whether data starts with the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}

// Extractor reads the text layer of each page.
// Pages without a text layer (scanned images) yield empty text.
type Extractor struct{}

// New creates a new PDF extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the normalised text of every page in order.
func (e *Extractor) Extract(ctx context.Context, data []byte) (pages []domain.Page, err error) {
	if !IsPDF(data) {
		return nil, fmt.Errorf("%w: missing PDF header", domain.ErrUnreadablePDF)
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", domain.ErrUnreadablePDF, r)
		}
	}()

	reader, err := pdfreader.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreadablePDF, err)
	}

	total := reader.NumPage()
	logger.Debug("pdf: %d pages, %d bytes", total, len(data))
	if total == 0 {
		return nil, domain.ErrEmptyDocument
	}

	pages = make([]domain.Page, 0, total)
	blank := 0
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := pageText(reader.Page(i))
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", domain.ErrUnreadablePDF, i, err)
		}

		page := domain.Page{Number: i, Text: Normalise(text)}
		if page.IsBlank() {
			logger.Debug("pdf: page %d has no text layer", i)
			blank++
		}
		pages = append(pages, page)
	}

	if blank == total {
		return nil, domain.ErrEmptyDocument
	}
	return pages, nil
}

// pageText returns the plain text of a page, or "" when it has no content stream.
func pageText(page pdfreader.Page) (string, error) {
	if page.V.IsNull() || page.V.Key("Contents").IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// Normalise canonicalises line endings and trailing whitespace so that
// chunk boundaries do not depend on the producer of the PDF.
func Normalise(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\f\v")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
