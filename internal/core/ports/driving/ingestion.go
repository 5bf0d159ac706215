package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// IngestionService adds documents to and removes documents from the corpus.
type IngestionService interface {
	// Ingest extracts, chunks, embeds and indexes a PDF as one atomic unit.
	// On failure nothing of the document remains in the index and the
	// returned error is a *domain.IngestError matching domain.ErrIngestionFailed.
	Ingest(ctx context.Context, filename string, data []byte) (*domain.Document, error)

	// Reingest replaces a document with a fresh ingestion of data.
	Reingest(ctx context.Context, filename string, data []byte) (*domain.Document, error)

	// Remove deletes a document and all of its index entries.
	Remove(ctx context.Context, filename string) error
}
