package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// QueryService answers questions over the corpus.
type QueryService interface {
	// Ask returns a grounded answer with page citations.
	// When nothing relevant is indexed the answer is
	// domain.InsufficientContextAnswer with no sources.
	// Failures are *domain.QueryError values matching domain.ErrQueryFailed.
	Ask(ctx context.Context, question string) (*domain.QueryResult, error)
}
