package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Retrieval defaults.
const (
	DefaultTopK          = 3
	DefaultMinSimilarity = 0.25
)

// Retriever finds the chunks most relevant to a question.
type Retriever struct {
	embedder      *Embedder
	index         driven.VectorIndex
	corpus        driven.CorpusStore
	topK          int
	minSimilarity float64
}

// NewRetriever creates a retriever. The corpus store is optional; when set,
// hits from documents that are not processed are dropped.
func NewRetriever(embedder *Embedder, index driven.VectorIndex, corpus driven.CorpusStore) *Retriever {
	return &Retriever{
		embedder:      embedder,
		index:         index,
		corpus:        corpus,
		topK:          DefaultTopK,
		minSimilarity: DefaultMinSimilarity,
	}
}

// Configure applies retrieval settings. Non-positive values keep defaults;
// a negative similarity floor disables the floor.
func (r *Retriever) Configure(s domain.RetrievalSettings) {
	if s.TopK > 0 {
		r.topK = s.TopK
	}
	if s.MinSimilarity != 0 {
		r.minSimilarity = s.MinSimilarity
	}
}

// TopK returns the default number of chunks fetched.
func (r *Retriever) TopK() int {
	return r.topK
}

// Retrieve embeds the question and returns up to k chunks above the
// similarity floor, most similar first. k <= 0 uses the configured TopK.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]domain.ScoredChunk, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return []domain.ScoredChunk{}, nil
	}
	if k <= 0 {
		k = r.topK
	}

	vec, err := r.embedder.EmbedOne(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	// Hits from documents that are not processed are dropped after the
	// search, so the search widens until k survive or the index runs out.
	status := make(map[string]bool)
	for fetch := k; ; fetch *= 2 {
		hits, err := r.index.Search(ctx, vec, fetch)
		if err != nil {
			return nil, fmt.Errorf("search index: %w", err)
		}
		logger.Debug("Index returned %d hits for k=%d", len(hits), fetch)

		out, floorReached := r.filter(ctx, hits, k, status)
		if len(out) == k || floorReached || len(hits) < fetch {
			return out, nil
		}
	}
}

// filter keeps up to k hits above the similarity floor whose documents
// are queryable. It reports whether a hit below the floor was reached;
// hits are sorted, so no later hit can pass.
func (r *Retriever) filter(
	ctx context.Context, hits []domain.ScoredChunk, k int, status map[string]bool,
) ([]domain.ScoredChunk, bool) {
	out := make([]domain.ScoredChunk, 0, min(k, len(hits)))
	for _, hit := range hits {
		if len(out) == k {
			break
		}
		if hit.Score < r.minSimilarity {
			logger.Debug("Dropping %s: similarity %.3f below floor %.3f", hit.Chunk.ID, hit.Score, r.minSimilarity)
			return out, true
		}
		if r.corpus != nil {
			ok, seen := status[hit.Chunk.Filename]
			if !seen {
				ok = r.queryable(ctx, hit.Chunk.Filename)
				status[hit.Chunk.Filename] = ok
			}
			if !ok {
				logger.Debug("Dropping %s: document not processed", hit.Chunk.ID)
				continue
			}
		}
		out = append(out, hit)
	}
	return out, false
}

func (r *Retriever) queryable(ctx context.Context, filename string) bool {
	doc, err := r.corpus.Get(ctx, filename)
	if err != nil {
		return false
	}
	return doc.IsQueryable()
}
