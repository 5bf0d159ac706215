package cli

import (
	"context"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ensure mocks implement interfaces.
var (
	_ driving.SettingsService  = (*mockSettingsService)(nil)
	_ driving.IngestionService = (*mockIngestionService)(nil)
	_ driving.QueryService     = (*mockQueryService)(nil)
	_ driving.CorpusService    = (*mockCorpusService)(nil)
)

type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
	pingErr     error
	saved       []string
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings()}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.Embedding.Provider = provider
	m.settings.Embedding.Model = model
	m.settings.Embedding.APIKey = apiKey
	m.saved = append(m.saved, "embedding")
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.LLM.Provider = provider
	m.settings.LLM.Model = model
	m.settings.LLM.APIKey = apiKey
	m.saved = append(m.saved, "llm")
	return nil
}

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return m.pingErr }

func (m *mockSettingsService) ValidateLLMConfig() error { return m.pingErr }

type mockIngestionService struct {
	failures   map[string]error
	ingested   []string
	reingested []string
	removed    []string
	removeErr  error
}

func (m *mockIngestionService) Ingest(_ context.Context, filename string, _ []byte) (*domain.Document, error) {
	if err := m.failures[filename]; err != nil {
		return nil, err
	}
	m.ingested = append(m.ingested, filename)
	return &domain.Document{Filename: filename, Status: domain.DocumentProcessed, PageCount: 2, ChunkCount: 5}, nil
}

func (m *mockIngestionService) Reingest(_ context.Context, filename string, _ []byte) (*domain.Document, error) {
	m.reingested = append(m.reingested, filename)
	return &domain.Document{Filename: filename, Status: domain.DocumentProcessed, PageCount: 2, ChunkCount: 5}, nil
}

func (m *mockIngestionService) Remove(_ context.Context, filename string) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removed = append(m.removed, filename)
	return nil
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
}

func (m *mockCorpusService) List(_ context.Context) ([]domain.Document, error) {
	return m.docs, nil
}

func (m *mockCorpusService) Get(_ context.Context, filename string) (*domain.Document, error) {
	for i := range m.docs {
		if m.docs[i].Filename == filename {
			return &m.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	settings  *mockSettingsService
	ingestion *mockIngestionService
	query     *mockQueryService
	corpus    *mockCorpusService
}

// setupTestServices installs mock services and returns a cleanup function
// restoring the previous ones.
func setupTestServices() (*testServices, func()) {
	oldSettings, oldIngestion, oldQuery, oldCorpus := settingsService, ingestionService, queryService, corpusService

	ts := &testServices{
		settings:  newMockSettingsService(),
		ingestion: &mockIngestionService{},
		query: &mockQueryService{result: &domain.QueryResult{
			Answer:  "The sky is blue.",
			Sources: []domain.Citation{{Filename: "sky.pdf", Page: 1}, {Filename: "sky.pdf", Page: 4}},
		}},
		corpus: &mockCorpusService{docs: []domain.Document{
			{
				Filename:   "sky.pdf",
				Status:     domain.DocumentProcessed,
				PageCount:  4,
				ChunkCount: 6,
				IngestedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			},
			{
				Filename: "broken.pdf",
				Status:   domain.DocumentFailed,
				Reason:   "unreadable PDF",
			},
		}},
	}

	settingsService = ts.settings
	ingestionService = ts.ingestion
	queryService = ts.query
	corpusService = ts.corpus

	return ts, func() {
		settingsService, ingestionService, queryService, corpusService = oldSettings, oldIngestion, oldQuery, oldCorpus
	}
}
