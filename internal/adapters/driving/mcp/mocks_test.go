package mcp

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ensure mocks implement interfaces.
var (
	_ driving.QueryService  = (*mockQueryService)(nil)
	_ driving.CorpusService = (*mockCorpusService)(nil)
)

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
	if m.result == nil {
		return &domain.QueryResult{}, nil
	}
	return m.result, nil
}

type mockCorpusService struct {
	docs []domain.Document
	err  error
}

func (m *mockCorpusService) List(_ context.Context) ([]domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.docs, nil
}

func (m *mockCorpusService) Get(_ context.Context, filename string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.docs {
		if m.docs[i].Filename == filename {
			return &m.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}
