package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// VectorIndex stores chunk embeddings and answers exact nearest-neighbour queries.
//
// The first accepted entry fixes the index dimension and embedding model.
// Later entries or queries that disagree are rejected with
// domain.ErrDimensionMismatch. Search is exhaustive; results are ordered
// by distance, ties broken by insertion order.
type VectorIndex interface {
	// Upsert inserts or replaces entries keyed by chunk ID.
	// A rejected batch leaves the index unchanged.
	Upsert(ctx context.Context, entries []domain.IndexEntry) error

	// Search returns the k nearest chunks to the query vector,
	// most similar first. An empty index yields an empty result.
	Search(ctx context.Context, query []float32, k int) ([]domain.ScoredChunk, error)

	// Remove deletes every entry belonging to the document and
	// returns how many were deleted.
	Remove(ctx context.Context, filename string) (int, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Dimensions returns the established dimension, or 0 for an empty index.
	Dimensions() int

	// Close releases resources.
	Close() error
}
