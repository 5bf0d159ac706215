package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Extraction Errors.

	// ErrUnreadablePDF indicates the file is not a PDF, is corrupt, or is encrypted.
	ErrUnreadablePDF = errors.New("unreadable PDF")

	// ErrEmptyDocument indicates the PDF parsed but carries no text on any page.
	ErrEmptyDocument = errors.New("document contains no extractable text")

	// Provider Errors.

	// ErrEmbeddingService indicates a transport, auth or status failure from the
	// embedding provider. Transient by default.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrRateLimited indicates the provider rejected the request for quota reasons.
	ErrRateLimited = errors.New("rate limited")

	// ErrGeneration indicates the generative provider failed to produce an answer.
	ErrGeneration = errors.New("generation error")

	// Index Errors.

	// ErrDimensionMismatch indicates a vector whose length or embedding model
	// differs from the one the index was built with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// Terminal Errors.

	// ErrIngestionFailed is the terminal error of a failed ingestion.
	ErrIngestionFailed = errors.New("ingestion failed")

	// ErrQueryFailed is the terminal error of a failed query.
	ErrQueryFailed = errors.New("query failed")
)

// IsRetryable reports whether err is a transient provider failure worth retrying.
// Context cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDimensionMismatch) || errors.Is(err, ErrInvalidInput) {
		return false
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrEmbeddingService) ||
		errors.Is(err, ErrGeneration)
}

// Ingestion stages reported by IngestError.
const (
	StageValidate = "validate"
	StageExtract  = "extract"
	StageChunk    = "chunk"
	StageEmbed    = "embed"
	StageIndex    = "index"
	StageRecord   = "record"
)

// Query stages reported by QueryError.
const (
	StageRetrieve = "retrieve"
	StageGenerate = "generate"
)

// IngestError describes why a document could not be ingested.
// It matches both ErrIngestionFailed and its underlying cause.
type IngestError struct {
	Filename string
	Stage    string
	Err      error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s: %s: %v", e.Filename, e.Stage, e.Err)
}

// Unwrap exposes both the terminal sentinel and the cause to errors.Is.
func (e *IngestError) Unwrap() []error {
	return []error{ErrIngestionFailed, e.Err}
}

// QueryError describes why a question could not be answered.
// It matches both ErrQueryFailed and its underlying cause.
type QueryError struct {
	Stage string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query: %s: %v", e.Stage, e.Err)
}

// Unwrap exposes both the terminal sentinel and the cause to errors.Is.
func (e *QueryError) Unwrap() []error {
	return []error{ErrQueryFailed, e.Err}
}
