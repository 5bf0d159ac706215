package api

import (
	"context"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ensure mocks implement interfaces.
var (
	_ driving.IngestionService = (*mockIngestionService)(nil)
	_ driving.QueryService     = (*mockQueryService)(nil)
	_ driving.CorpusService    = (*mockCorpusService)(nil)
)

type mockIngestionService struct {
	mu        sync.Mutex
	doc       *domain.Document
	err       error
	removeErr error
	ingested  map[string][]byte
	removed   []string
}

func (m *mockIngestionService) Ingest(_ context.Context, filename string, data []byte) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ingested == nil {
		m.ingested = make(map[string][]byte)
	}
	m.ingested[filename] = data
	if m.err != nil {
		return &domain.Document{Filename: filename, Status: domain.DocumentFailed}, m.err
	}
	if m.doc != nil {
		return m.doc, nil
	}
	return &domain.Document{Filename: filename, Status: domain.DocumentProcessed, PageCount: 1, ChunkCount: 1}, nil
}

func (m *mockIngestionService) Reingest(ctx context.Context, filename string, data []byte) (*domain.Document, error) {
	return m.Ingest(ctx, filename, data)
}

func (m *mockIngestionService) Remove(_ context.Context, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, filename)
	return m.removeErr
}

type mockQueryService struct {
	result   *domain.QueryResult
	err      error
	question string
}

func (m *mockQueryService) Ask(_ context.Context, question string) (*domain.QueryResult, error) {
	m.question = question
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockCorpusService struct {
	docs []domain.Document
	err  error
}

func (m *mockCorpusService) List(_ context.Context) ([]domain.Document, error) {
	return m.docs, m.err
}

func (m *mockCorpusService) Get(_ context.Context, filename string) (*domain.Document, error) {
	for i := range m.docs {
		if m.docs[i].Filename == filename {
			return &m.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}
