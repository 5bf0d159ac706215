// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Implementations classify failures: quota rejections wrap domain.ErrRateLimited,
// every other provider failure wraps domain.ErrEmbeddingService. They never retry;
// retries are composed by the caller.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (all-minilm, nomic-embed-text)
//   - Gemini (text-embedding-004)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates one embedding per input, in input order.
	// Callers must not pass more than MaxBatchSize texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// MaxBatchSize returns the largest batch the provider accepts in one request.
	MaxBatchSize() int

	// Dimensions returns the embedding vector size (e.g., 384, 1536, 3072).
	// Zero means unknown until the first embedding is produced.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
