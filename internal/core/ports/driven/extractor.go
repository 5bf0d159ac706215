package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// Extractor turns raw PDF bytes into per-page text.
type Extractor interface {
	// Extract returns one Page per PDF page, in order and 1-based.
	// Pages without a text layer are returned with empty text.
	// Returns domain.ErrUnreadablePDF when the bytes cannot be parsed
	// and domain.ErrEmptyDocument when no page carries text.
	Extract(ctx context.Context, data []byte) ([]domain.Page, error)
}
