package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrLLMUnavailable", ErrLLMUnavailable},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrUnreadablePDF", ErrUnreadablePDF},
		{"ErrEmptyDocument", ErrEmptyDocument},
		{"ErrEmbeddingService", ErrEmbeddingService},
		{"ErrRateLimited", ErrRateLimited},
		{"ErrGeneration", ErrGeneration},
		{"ErrDimensionMismatch", ErrDimensionMismatch},
		{"ErrIngestionFailed", ErrIngestionFailed},
		{"ErrQueryFailed", ErrQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

// TestErrors_Unique tests that no two sentinels match each other
func TestErrors_Unique(t *testing.T) {
	all := []error{
		ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrLLMUnavailable,
		ErrEmbeddingUnavailable, ErrUnreadablePDF, ErrEmptyDocument,
		ErrEmbeddingService, ErrRateLimited, ErrGeneration,
		ErrDimensionMismatch, ErrIngestionFailed, ErrQueryFailed,
	}
	for i, a := range all {
		for j, b := range all {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"rate limited", ErrRateLimited, true},
		{"wrapped rate limited", fmt.Errorf("openai: %w", ErrRateLimited), true},
		{"embedding service", fmt.Errorf("ollama: %w", ErrEmbeddingService), true},
		{"generation", fmt.Errorf("anthropic: %w", ErrGeneration), true},
		{"dimension mismatch", ErrDimensionMismatch, false},
		{"dimension mismatch wrapping provider error",
			fmt.Errorf("%w: %w", ErrDimensionMismatch, ErrEmbeddingService), false},
		{"unreadable pdf", ErrUnreadablePDF, false},
		{"context canceled", context.Canceled, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIngestError(t *testing.T) {
	err := &IngestError{Filename: "report.pdf", Stage: StageEmbed, Err: ErrRateLimited}

	assert.ErrorIs(t, err, ErrIngestionFailed)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.NotErrorIs(t, err, ErrQueryFailed)
	assert.Equal(t, "ingest report.pdf: embed: rate limited", err.Error())

	var target *IngestError
	wrapped := fmt.Errorf("upload: %w", err)
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, StageEmbed, target.Stage)
}

func TestQueryError(t *testing.T) {
	err := &QueryError{Stage: StageGenerate, Err: fmt.Errorf("gemini: %w", ErrGeneration)}

	assert.ErrorIs(t, err, ErrQueryFailed)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.NotErrorIs(t, err, ErrIngestionFailed)
	assert.Contains(t, err.Error(), "query: generate")
}
