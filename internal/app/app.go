// Package app wires the driven adapters and core services together.
//
// Settings are resolved from ~/.docqa/config.toml and the environment, the
// configured providers are connected and validated, and the metadata store,
// vector index and services are built on top of them. Driving adapters
// (CLI, HTTP, MCP, inbox watcher) only see the resulting App.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/docqa/internal/adapters/driven/ai"
	"github.com/custodia-labs/docqa/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/core/services"
	"github.com/custodia-labs/docqa/internal/extractors/pdf"
	"github.com/custodia-labs/docqa/internal/logger"
	"github.com/custodia-labs/docqa/internal/postprocessors/chunker"
)

// DefaultConfigDir returns ~/.docqa.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".docqa"), nil
}

// NewSettingsService creates the settings service over config.toml in configDir.
// An empty configDir uses DefaultConfigDir.
func NewSettingsService(configDir string) (*services.SettingsService, error) {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	return services.NewSettingsService(store, ai.NewConfigValidator()), nil
}

// App holds the services exposed to driving adapters.
type App struct {
	Settings  *domain.AppSettings
	Ingestion *services.IngestionService
	Query     *services.QueryService
	Corpus    *services.CorpusService

	// Warnings lists non-fatal problems found while connecting providers.
	Warnings []string

	store *sqlite.Store
	ai    *ai.InitResult
}

// Build connects the configured providers and builds the services.
// configDir holds config.toml, prompts/ and data/; empty means ~/.docqa.
func Build(ctx context.Context, configDir string, settingsSvc driving.SettingsService) (*App, error) {
	if configDir == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}

	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	a := &App{Settings: settings, ai: &ai.InitResult{}}
	if err := a.connect(ctx, configDir); err != nil {
		a.Close()
		return nil, err
	}
	a.buildServices()

	n, err := recoverInterrupted(ctx, a.store, a.Ingestion)
	if err != nil {
		logger.Warn("Startup recovery failed: %v", err)
	} else if n > 0 {
		a.Warnings = append(a.Warnings,
			fmt.Sprintf("%d interrupted ingestions were marked failed", n))
	}

	return a, nil
}

// recoverInterrupted fails pending documents left by a crash. A pending
// document may belong to a live ingestion in another process, so recovery
// only runs when no other process has the data directory open.
func recoverInterrupted(ctx context.Context, store *sqlite.Store, ingestion *services.IngestionService) (int, error) {
	var n int
	ran, err := store.Exclusive(func() error {
		var rerr error
		n, rerr = ingestion.Recover(ctx)
		return rerr
	})
	if !ran && err == nil {
		logger.Debug("Data directory in use by another process, skipping recovery")
	}
	return n, err
}

// connect opens providers, the metadata store and the vector index.
func (a *App) connect(ctx context.Context, configDir string) error {
	s := a.Settings

	embedding, err := ai.CreateAndValidateEmbeddingService(ctx, &s.Embedding)
	switch {
	case err != nil && errors.Is(err, domain.ErrInvalidInput):
		return err
	case err != nil:
		// Queries and uploads report the outage; listing still works.
		a.Warnings = append(a.Warnings, err.Error())
	default:
		a.ai.EmbeddingService = embedding
	}

	llm, err := ai.CreateAndValidateLLMService(ctx, &s.LLM)
	if err != nil {
		a.Warnings = append(a.Warnings, err.Error())
	} else {
		a.ai.LLMService = llm
	}

	prompts, err := file.NewPromptStore(filepath.Join(configDir, "prompts"))
	if err != nil {
		a.Warnings = append(a.Warnings, fmt.Sprintf("prompt templates: %v", err))
	} else {
		a.ai.PromptStore = prompts
	}

	store, err := sqlite.NewStore(filepath.Join(configDir, "data"))
	if err != nil {
		return fmt.Errorf("opening metadata store: %w", err)
	}
	a.store = store

	index, err := ai.CreateVectorIndex(ctx, s.Index, store)
	if err != nil {
		return fmt.Errorf("opening %s vector index: %w", s.Index.Backend, err)
	}
	a.ai.VectorIndex = index

	return nil
}

// buildServices assembles the core services from the connected adapters.
func (a *App) buildServices() {
	s := a.Settings
	retry := services.RetryPolicyFromSettings(s.Retry)
	corpus := a.store.CorpusStore()

	embedder := services.NewEmbedder(a.ai.EmbeddingService, retry)

	chunks := chunker.New(
		chunker.WithChunkSize(s.Chunking.Size),
		chunker.WithOverlap(s.Chunking.Overlap),
		chunker.WithMaxChunkSize(s.Embedding.InputLimit()),
	)
	if chunks.Size() < s.Chunking.Size {
		a.Warnings = append(a.Warnings, fmt.Sprintf(
			"chunking.size %d capped at %d, the input limit of %s",
			s.Chunking.Size, chunks.Size(), s.Embedding.Model))
	}

	a.Ingestion = services.NewIngestionService(pdf.New(), chunks, embedder, a.ai.VectorIndex, corpus)
	a.Ingestion.SetTimeout(s.Timeouts.Ingest)

	retriever := services.NewRetriever(embedder, a.ai.VectorIndex, corpus)
	retriever.Configure(s.Retrieval)

	answerer := services.NewAnswerer(a.ai.LLMService, retry)
	answerer.SetGenerateOptions(driven.GenerateOptions{
		MaxTokens:   s.LLM.MaxTokens,
		Temperature: s.LLM.Temperature,
	})
	answerer.SetMaxContextChunks(s.Retrieval.MaxContextChunks)
	if a.ai.PromptStore != nil {
		answerer.SetPromptStore(a.ai.PromptStore)
	}

	a.Query = services.NewQueryService(retriever, answerer)
	a.Query.SetTimeout(s.Timeouts.Query)

	a.Corpus = services.NewCorpusService(corpus)
}

// Close releases providers, the index and the metadata store.
func (a *App) Close() {
	if a.ai != nil {
		a.ai.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn("Closing metadata store: %v", err)
		}
	}
}
