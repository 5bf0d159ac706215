package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// CorpusService lists the documents known to the corpus.
type CorpusService interface {
	// List returns every document with its ingestion status.
	List(ctx context.Context) ([]domain.Document, error)

	// Get retrieves a document by filename.
	Get(ctx context.Context, filename string) (*domain.Document, error)
}
