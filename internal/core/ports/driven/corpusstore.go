package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// CorpusStore persists the lifecycle of uploaded documents.
type CorpusStore interface {
	// Save creates or replaces a document record.
	Save(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by filename.
	// Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, filename string) (*domain.Document, error)

	// List returns every document ordered by ingestion time.
	List(ctx context.Context) ([]domain.Document, error)

	// SetStatus updates the status and reason of a document.
	// Returns domain.ErrNotFound if absent.
	SetStatus(ctx context.Context, filename string, status domain.DocumentStatus, reason string) error

	// Delete removes a document record.
	// Returns domain.ErrNotFound if absent.
	Delete(ctx context.Context, filename string) error
}
