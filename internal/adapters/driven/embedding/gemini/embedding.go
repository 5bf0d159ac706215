// Package gemini provides an embedding service adapter using the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel        = "text-embedding-004"
	DefaultMaxBatchSize = 100
)

// Known dimensions for Gemini embedding models.
var modelDimensions = map[string]int{
	"text-embedding-004":   768,
	"gemini-embedding-001": 3072,
}

// Config holds configuration for the Gemini embedding service.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-004).
	Model string

	// MaxBatchSize caps inputs per request (default: 100).
	MaxBatchSize int

	// HTTPClient overrides the transport.
	HTTPClient *http.Client
}

// EmbeddingService generates embeddings using the Gemini API.
type EmbeddingService struct {
	client       *genai.Client
	model        string
	dimensions   int
	maxBatchSize int
}

// NewEmbeddingService creates a new Gemini embedding service.
func NewEmbeddingService(ctx context.Context, cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini: API key is required", domain.ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxBatchSize <= 0 || cfg.MaxBatchSize > DefaultMaxBatchSize {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}

	client, err := NewClient(ctx, cfg.APIKey, cfg.BaseURL, cfg.HTTPClient)
	if err != nil {
		return nil, err
	}

	return &EmbeddingService{
		client:       client,
		model:        cfg.Model,
		dimensions:   modelDimensions[cfg.Model],
		maxBatchSize: cfg.MaxBatchSize,
	}, nil
}

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, apiKey, baseURL string, httpClient *http.Client) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}
	return client, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates one embedding per text in a single request.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: gemini: batch of %d exceeds limit %d",
			domain.ErrInvalidInput, len(texts), s.maxBatchSize)
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := s.client.Models.EmbedContent(ctx, s.model, contents, nil)
	if err != nil {
		return nil, ClassifyError(err, domain.ErrEmbeddingService)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("%w: gemini: got %d embeddings for %d inputs",
			domain.ErrEmbeddingService, got, len(texts))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("%w: gemini: empty embedding at %d", domain.ErrEmbeddingService, i)
		}
		out[i] = e.Values
	}
	return out, nil
}

// ClassifyError wraps a Gemini API failure with the given kind, adding
// domain.ErrRateLimited for quota rejections.
func ClassifyError(err error, kind error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) &&
		(apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED") {
		return fmt.Errorf("%w: %w: gemini: %w", kind, domain.ErrRateLimited, err)
	}
	return fmt.Errorf("%w: gemini: %w", kind, err)
}

// MaxBatchSize returns the largest batch sent in one request.
func (s *EmbeddingService) MaxBatchSize() int {
	return s.maxBatchSize
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates the API key by fetching the model metadata.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.client.Models.Get(ctx, s.model, nil); err != nil {
		return ClassifyError(err, domain.ErrEmbeddingService)
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
