package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// DefaultEmbedConcurrency is the number of batches embedded in parallel.
const DefaultEmbedConcurrency = 2

// Embedder embeds texts in provider-sized batches, retrying each batch.
type Embedder struct {
	service     driven.EmbeddingService
	retry       RetryPolicy
	concurrency int
}

// NewEmbedder creates an embedder over the given service.
func NewEmbedder(service driven.EmbeddingService, retry RetryPolicy) *Embedder {
	return &Embedder{
		service:     service,
		retry:       retry,
		concurrency: DefaultEmbedConcurrency,
	}
}

// SetConcurrency sets how many batches are in flight at once.
func (e *Embedder) SetConcurrency(n int) {
	if n > 0 {
		e.concurrency = n
	}
}

// ModelName returns the embedding model name, or "" without a service.
func (e *Embedder) ModelName() string {
	if e.service == nil {
		return ""
	}
	return e.service.ModelName()
}

// EmbedAll returns one vector per text, in input order.
func (e *Embedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if e.service == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if len(texts) == 0 {
		return nil, nil
	}

	size := e.service.MaxBatchSize()
	if size <= 0 {
		size = len(texts)
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		g.Go(func() error {
			batch := texts[start:end]
			var out [][]float32
			err := e.retry.Do(gctx, "embed batch", func(ctx context.Context) error {
				var err error
				out, err = e.service.EmbedBatch(ctx, batch)
				return err
			})
			if err != nil {
				return err
			}
			if len(out) != len(batch) {
				return fmt.Errorf("%w: got %d embeddings for %d texts",
					domain.ErrEmbeddingService, len(out), len(batch))
			}
			copy(vectors[start:end], out)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Debug("Embedded %d texts in batches of %d", len(texts), size)
	return vectors, nil
}

// EmbedOne embeds a single text with retries.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if e.service == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	var vec []float32
	err := e.retry.Do(ctx, "embed", func(ctx context.Context) error {
		var err error
		vec, err = e.service.Embed(ctx, text)
		return err
	})
	return vec, err
}
