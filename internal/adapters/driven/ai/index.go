package ai

import (
	"context"
	"fmt"

	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docqa/internal/adapters/driven/vector/chroma"
	"github.com/custodia-labs/docqa/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/docqa/internal/adapters/driven/vector/pgvector"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// CreateVectorIndex opens the vector index selected by settings.
// The sqlite backend shares the metadata store and requires it to be non-nil.
func CreateVectorIndex(
	ctx context.Context, settings domain.IndexSettings, store *sqlite.Store,
) (driven.VectorIndex, error) {
	metric := settings.Metric
	if metric == "" {
		metric = domain.DistanceCosine
	}
	if !metric.IsValid() {
		return nil, fmt.Errorf("%w: unknown distance metric %q", domain.ErrInvalidInput, metric)
	}

	switch settings.Backend {
	case domain.IndexBackendSQLite, "":
		if store == nil {
			return nil, fmt.Errorf("%w: sqlite index requires a metadata store", domain.ErrInvalidInput)
		}
		idx, err := store.VectorIndex(metric)
		if err != nil {
			return nil, err
		}
		return idx, nil

	case domain.IndexBackendMemory:
		return memory.New(metric), nil

	case domain.IndexBackendPgvector:
		if settings.DSN == "" {
			return nil, fmt.Errorf("%w: pgvector index requires index.dsn", domain.ErrInvalidInput)
		}
		idx, err := pgvector.Open(ctx, settings.DSN, settings.Collection, metric)
		if err != nil {
			return nil, err
		}
		return idx, nil

	case domain.IndexBackendChroma:
		if settings.URL == "" {
			return nil, fmt.Errorf("%w: chroma index requires index.url", domain.ErrInvalidInput)
		}
		idx, err := chroma.Open(ctx, settings.URL, settings.Collection, metric)
		if err != nil {
			return nil, err
		}
		return idx, nil

	default:
		return nil, fmt.Errorf("%w: unsupported index backend: %s", domain.ErrInvalidInput, settings.Backend)
	}
}
