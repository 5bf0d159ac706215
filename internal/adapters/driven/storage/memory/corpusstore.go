package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure CorpusStore implements the interface.
var _ driven.CorpusStore = (*CorpusStore)(nil)

// CorpusStore is an in-memory implementation of driven.CorpusStore.
type CorpusStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	now       func() time.Time
}

// NewCorpusStore creates a new in-memory corpus store.
func NewCorpusStore() *CorpusStore {
	return &CorpusStore{
		documents: make(map[string]domain.Document),
		now:       time.Now,
	}
}

// Save creates or replaces a document record.
func (s *CorpusStore) Save(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.Filename] = *doc
	return nil
}

// Get retrieves a document by filename.
func (s *CorpusStore) Get(_ context.Context, filename string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[filename]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// List returns every document ordered by ingestion time, then filename.
func (s *CorpusStore) List(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc)
	}
	slices.SortFunc(docs, func(a, b domain.Document) int {
		if c := a.IngestedAt.Compare(b.IngestedAt); c != 0 {
			return c
		}
		if a.Filename < b.Filename {
			return -1
		}
		if a.Filename > b.Filename {
			return 1
		}
		return 0
	})
	return docs, nil
}

// SetStatus updates the status and reason of a document.
func (s *CorpusStore) SetStatus(_ context.Context, filename string, status domain.DocumentStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[filename]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = status
	doc.Reason = reason
	doc.UpdatedAt = s.now()
	s.documents[filename] = doc
	return nil
}

// Delete removes a document record.
func (s *CorpusStore) Delete(_ context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[filename]; !ok {
		return domain.ErrNotFound
	}
	delete(s.documents, filename)
	return nil
}
