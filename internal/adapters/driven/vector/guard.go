// Package vector holds helpers shared by the VectorIndex adapters.
//
// Adapters:
//   - memory: exact in-process index
//   - pgvector: PostgreSQL with the pgvector extension
//   - chroma: Chroma server collection
//
// The persistent SQLite index lives with the rest of the SQLite storage.
package vector

import (
	"fmt"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// Guard tracks the dimension and embedding model an index was built with
// and rejects entries or queries that disagree.
type Guard struct {
	mu    sync.RWMutex
	dim   int
	model string
}

// NewGuard creates a guard, optionally seeded with persisted state.
func NewGuard(dim int, model string) *Guard {
	return &Guard{dim: dim, model: model}
}

// Check validates a batch without changing the guard. It returns the
// dimension and model the batch would establish.
func (g *Guard) Check(entries []domain.IndexEntry) (int, string, error) {
	g.mu.RLock()
	dim, model := g.dim, g.model
	g.mu.RUnlock()

	for _, e := range entries {
		if len(e.Embedding) == 0 {
			return 0, "", fmt.Errorf("%w: empty embedding for %s", domain.ErrDimensionMismatch, e.Chunk.ID)
		}
		if dim == 0 {
			dim, model = len(e.Embedding), e.Model
		}
		if len(e.Embedding) != dim {
			return 0, "", fmt.Errorf("%w: %s has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, e.Chunk.ID, len(e.Embedding), dim)
		}
		if e.Model != model {
			return 0, "", fmt.Errorf("%w: %s was embedded with %q, index uses %q",
				domain.ErrDimensionMismatch, e.Chunk.ID, e.Model, model)
		}
	}
	return dim, model, nil
}

// Commit records the dimension and model established by a successful write.
func (g *Guard) Commit(dim int, model string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dim, g.model = dim, model
}

// Reset forgets the established dimension and model, for an emptied index.
func (g *Guard) Reset() {
	g.Commit(0, "")
}

// CheckQuery validates a query vector. An empty index accepts any query.
func (g *Guard) CheckQuery(query []float32) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.dim != 0 && len(query) != g.dim {
		return fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), g.dim)
	}
	return nil
}

// Dimensions returns the established dimension, or 0.
func (g *Guard) Dimensions() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dim
}

// Model returns the established embedding model, or "".
func (g *Guard) Model() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.model
}

// Similarity converts a distance into a similarity where higher is better.
// Cosine distance maps to cosine similarity; L2 distance maps into (0, 1].
func Similarity(metric domain.DistanceMetric, distance float64) float64 {
	if metric == domain.DistanceL2 {
		return 1 / (1 + distance)
	}
	return 1 - distance
}
