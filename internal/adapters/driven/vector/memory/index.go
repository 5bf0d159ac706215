// Package memory provides an exact, in-process VectorIndex.
//
// Search scans every entry, so results are exact and reproducible. The scan
// is O(n·d) and targets corpora of tens of documents and thousands of chunks.
package memory

import (
	"context"
	"math"
	"slices"
	"sync"

	"github.com/viant/vec/search"

	"github.com/custodia-labs/docqa/internal/adapters/driven/vector"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

type entry struct {
	chunk domain.Chunk
	vec   search.Float32s
	seq   uint64
}

// Index is an exact nearest-neighbour index held in memory.
// Reads take a shared lock so searches run concurrently with each other.
type Index struct {
	mu      sync.RWMutex
	metric  domain.DistanceMetric
	guard   *vector.Guard
	entries []*entry
	byID    map[string]*entry
	nextSeq uint64
}

// New creates an empty index using the given metric (cosine when empty).
func New(metric domain.DistanceMetric) *Index {
	if !metric.IsValid() {
		metric = domain.DistanceCosine
	}
	return &Index{
		metric: metric,
		guard:  vector.NewGuard(0, ""),
		byID:   make(map[string]*entry),
	}
}

// Metric returns the distance metric.
func (i *Index) Metric() domain.DistanceMetric {
	return i.metric
}

// Check validates a batch against the index without applying it.
func (i *Index) Check(entries []domain.IndexEntry) error {
	_, _, err := i.guard.Check(entries)
	return err
}

// Model returns the embedding model the index was built with.
func (i *Index) Model() string {
	return i.guard.Model()
}

// Upsert inserts or replaces entries. A replaced entry keeps its insertion order.
func (i *Index) Upsert(_ context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	dim, model, err := i.guard.Check(entries)
	if err != nil {
		return err
	}

	for _, e := range entries {
		vec := slices.Clone(e.Embedding)
		if existing, ok := i.byID[e.Chunk.ID]; ok {
			existing.chunk = e.Chunk
			existing.vec = vec
			continue
		}
		ent := &entry{chunk: e.Chunk, vec: vec, seq: i.nextSeq}
		i.nextSeq++
		i.entries = append(i.entries, ent)
		i.byID[e.Chunk.ID] = ent
	}
	i.guard.Commit(dim, model)
	return nil
}

// Search returns the k nearest entries, most similar first.
// Equal distances are ordered by insertion.
func (i *Index) Search(ctx context.Context, query []float32, k int) ([]domain.ScoredChunk, error) {
	if err := i.guard.CheckQuery(query); err != nil {
		return nil, err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if k <= 0 || len(i.entries) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	type hit struct {
		ent      *entry
		distance float64
	}
	q := search.Float32s(query)
	hits := make([]hit, 0, len(i.entries))
	for n, ent := range i.entries {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		hits = append(hits, hit{ent: ent, distance: i.distance(q, ent)})
	}

	slices.SortStableFunc(hits, func(a, b hit) int {
		switch {
		case a.distance < b.distance:
			return -1
		case a.distance > b.distance:
			return 1
		}
		if a.ent.seq < b.ent.seq {
			return -1
		}
		if a.ent.seq > b.ent.seq {
			return 1
		}
		return 0
	})

	k = min(k, len(hits))
	out := make([]domain.ScoredChunk, k)
	for n := range k {
		out[n] = domain.ScoredChunk{
			Chunk: hits[n].ent.chunk,
			Score: vector.Similarity(i.metric, hits[n].distance),
		}
	}
	return out, nil
}

// distance compares the query with an entry. Zero vectors are maximally distant.
func (i *Index) distance(q search.Float32s, ent *entry) float64 {
	if i.metric == domain.DistanceL2 {
		return float64(q.EuclideanDistance(ent.vec))
	}
	d := float64(q.CosineDistance(ent.vec))
	if math.IsNaN(d) {
		return 1
	}
	return d
}

// Remove deletes every entry of the document. Emptying the index
// releases its dimension and model.
func (i *Index) Remove(_ context.Context, filename string) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	kept := i.entries[:0]
	removed := 0
	for _, ent := range i.entries {
		if ent.chunk.Filename == filename {
			delete(i.byID, ent.chunk.ID)
			removed++
			continue
		}
		kept = append(kept, ent)
	}
	clear(i.entries[len(kept):])
	i.entries = kept

	if len(i.entries) == 0 {
		i.guard.Reset()
	}
	return removed, nil
}

// Count returns the number of stored entries.
func (i *Index) Count(_ context.Context) (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries), nil
}

// Dimensions returns the established dimension, or 0 for an empty index.
func (i *Index) Dimensions() int {
	return i.guard.Dimensions()
}

// Close releases resources.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries = nil
	i.byID = make(map[string]*entry)
	return nil
}
