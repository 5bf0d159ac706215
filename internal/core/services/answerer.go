package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// DefaultMaxContextChunks bounds how many chunks are placed in a prompt.
const DefaultMaxContextChunks = 5

// Ensure Answerer can receive custom prompts.
var _ driven.PromptStoreAware = (*Answerer)(nil)

// Answerer turns a question and its retrieved chunks into a grounded answer.
type Answerer struct {
	llm       driven.LLMService
	retry     RetryPolicy
	opts      driven.GenerateOptions
	maxChunks int

	mu      sync.RWMutex
	prompts driven.PromptStore
}

// NewAnswerer creates an answerer over the given LLM service.
func NewAnswerer(llm driven.LLMService, retry RetryPolicy) *Answerer {
	return &Answerer{
		llm:       llm,
		retry:     retry,
		maxChunks: DefaultMaxContextChunks,
		opts:      driven.GenerateOptions{MaxTokens: 1024, Temperature: 0.2},
	}
}

// SetPromptStore sets the prompt store for loading the answer template.
func (a *Answerer) SetPromptStore(store driven.PromptStore) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompts = store
}

// SetGenerateOptions overrides the generation options.
func (a *Answerer) SetGenerateOptions(opts driven.GenerateOptions) {
	a.opts = opts
}

// SetMaxContextChunks bounds the number of chunks placed in a prompt.
func (a *Answerer) SetMaxContextChunks(n int) {
	if n > 0 {
		a.maxChunks = n
	}
}

// Answer synthesises an answer from the ranked chunks.
// With no chunks it returns domain.InsufficientContextAnswer without calling the model.
// Citations are derived from the chunks placed in the prompt, never from the answer text.
func (a *Answerer) Answer(ctx context.Context, question string, chunks []domain.ScoredChunk) (*domain.QueryResult, error) {
	if len(chunks) == 0 {
		logger.Debug("No relevant chunks, skipping generation")
		return InsufficientContext(), nil
	}
	if a.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if len(chunks) > a.maxChunks {
		chunks = chunks[:a.maxChunks]
	}

	prompt := BuildPrompt(a.template(), question, chunks)
	logger.Debug("Prompt: %d chunks, %d bytes", len(chunks), len(prompt))

	var answer string
	err := a.retry.Do(ctx, "generate", func(ctx context.Context) error {
		out, err := a.llm.Generate(ctx, prompt, a.opts)
		if err != nil {
			return err
		}
		answer = strings.TrimSpace(out)
		if answer == "" {
			return fmt.Errorf("%w: empty answer from %s", domain.ErrGeneration, a.llm.ModelName())
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrGeneration) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", domain.ErrGeneration, err)
		}
		return nil, err
	}

	return &domain.QueryResult{
		Answer:  answer,
		Sources: Citations(chunks),
	}, nil
}

// InsufficientContext returns the fixed answer used when nothing relevant is indexed.
func InsufficientContext() *domain.QueryResult {
	return &domain.QueryResult{
		Answer:       domain.InsufficientContextAnswer,
		Sources:      []domain.Citation{},
		Insufficient: true,
	}
}

func (a *Answerer) template() string {
	a.mu.RLock()
	store := a.prompts
	a.mu.RUnlock()

	if store == nil {
		return DefaultAnswerPrompt
	}
	tmpl, err := store.Load(driven.PromptAnswer)
	if err != nil || strings.TrimSpace(tmpl) == "" {
		if err != nil {
			logger.Warn("Failed to load answer prompt, using default: %v", err)
		}
		return DefaultAnswerPrompt
	}
	return tmpl
}
