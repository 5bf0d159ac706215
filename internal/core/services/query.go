package services

import (
	"context"
	"strings"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// DefaultQueryTimeout bounds a whole question.
const DefaultQueryTimeout = 60 * time.Second

// QueryService answers questions by retrieving chunks and passing them to the answerer.
type QueryService struct {
	retriever *Retriever
	answerer  *Answerer
	timeout   time.Duration
}

// NewQueryService creates a new query service.
func NewQueryService(retriever *Retriever, answerer *Answerer) *QueryService {
	return &QueryService{
		retriever: retriever,
		answerer:  answerer,
		timeout:   DefaultQueryTimeout,
	}
}

// SetTimeout sets the per-question timeout. Zero disables it.
func (s *QueryService) SetTimeout(d time.Duration) {
	s.timeout = d
}

// Ask answers a question over the corpus.
func (s *QueryService) Ask(ctx context.Context, question string) (*domain.QueryResult, error) {
	logger.Section("Query")
	logger.Debug("Question: %q", question)

	if strings.TrimSpace(question) == "" {
		return nil, &domain.QueryError{Stage: domain.StageValidate, Err: domain.ErrInvalidInput}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	chunks, err := s.retriever.Retrieve(ctx, question, 0)
	if err != nil {
		logger.Warn("Retrieval failed: %v", err)
		return nil, &domain.QueryError{Stage: domain.StageRetrieve, Err: err}
	}
	logger.Debug("Retrieved %d chunks above the similarity floor", len(chunks))

	result, err := s.answerer.Answer(ctx, question, chunks)
	if err != nil {
		logger.Warn("Generation failed: %v", err)
		return nil, &domain.QueryError{Stage: domain.StageGenerate, Err: err}
	}

	logger.Info("Answered with %d sources", len(result.Sources))
	return result, nil
}
