package services

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ensure CorpusService implements the interface.
var _ driving.CorpusService = (*CorpusService)(nil)

// CorpusService exposes read-only access to the document list.
type CorpusService struct {
	store driven.CorpusStore
}

// NewCorpusService creates a new corpus service.
func NewCorpusService(store driven.CorpusStore) *CorpusService {
	return &CorpusService{store: store}
}

// List returns every document with its ingestion status.
func (s *CorpusService) List(ctx context.Context) ([]domain.Document, error) {
	docs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return docs, nil
}

// Get retrieves a document by filename.
func (s *CorpusService) Get(ctx context.Context, filename string) (*domain.Document, error) {
	return s.store.Get(ctx, filename)
}
