// Package chroma provides a VectorIndex backed by a Chroma server collection.
//
// Chroma ranks with an HNSW graph, so results are approximate for large
// collections and ties are not ordered by insertion. Use the sqlite or
// memory backends where exact, reproducible ranking matters.
package chroma

import (
	"context"
	"fmt"
	"sync"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"

	"github.com/custodia-labs/docqa/internal/adapters/driven/vector"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "pdf_documents"

// Metadata keys stored with every record.
const (
	keyFilename   = "filename"
	keyPage       = "page"
	keySequence   = "sequence"
	keyStart      = "start"
	keyEnd        = "end"
	keyModel      = "model"
	keyDimensions = "dimensions"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index stores entries in a Chroma collection.
type Index struct {
	client     chromago.Client
	collection chromago.Collection
	metric     domain.DistanceMetric
	guard      *vector.Guard

	writeMu sync.Mutex
}

// Open connects to the Chroma server at baseURL and gets or creates the collection.
func Open(ctx context.Context, baseURL, collection string, metric domain.DistanceMetric) (*Index, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: chroma URL is required", domain.ErrInvalidInput)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	if !metric.IsValid() {
		metric = domain.DistanceCosine
	}

	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("creating chroma client: %w", err)
	}

	coll, err := client.GetOrCreateCollection(ctx, collection,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("hnsw:space", hnswSpace(metric)),
				chromago.NewStringAttribute("created_by", "docqa"),
			),
		),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("opening chroma collection %s: %w", collection, err)
	}

	idx := &Index{
		client:     client,
		collection: coll,
		metric:     metric,
		guard:      vector.NewGuard(0, ""),
	}
	if err := idx.restore(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return idx, nil
}

// hnswSpace maps the metric to the Chroma space name.
func hnswSpace(metric domain.DistanceMetric) string {
	if metric == domain.DistanceL2 {
		return "l2"
	}
	return "cosine"
}

// restore seeds the guard from any stored record.
func (i *Index) restore(ctx context.Context) error {
	result, err := i.collection.Get(ctx, chromago.WithLimitGet(1))
	if err != nil {
		return fmt.Errorf("reading chroma collection: %w", err)
	}
	metas := result.GetMetadatas()
	if len(metas) == 0 || metas[0] == nil {
		return nil
	}
	dim, _ := metas[0].GetInt(keyDimensions)
	model, _ := metas[0].GetString(keyModel)
	if dim > 0 {
		i.guard.Commit(int(dim), model)
	}
	return nil
}

// Upsert inserts or replaces entries.
func (i *Index) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	dim, model, err := i.guard.Check(entries)
	if err != nil {
		return err
	}

	ids := make([]chromago.DocumentID, len(entries))
	texts := make([]string, len(entries))
	vecs := make([]embeddings.Embedding, len(entries))
	metas := make([]chromago.DocumentMetadata, len(entries))
	for n, e := range entries {
		c := e.Chunk
		ids[n] = chromago.DocumentID(c.ID)
		texts[n] = c.Text
		vecs[n] = embeddings.NewEmbeddingFromFloat32(e.Embedding)
		metas[n] = chromago.NewDocumentMetadata(
			chromago.NewStringAttribute(keyFilename, c.Filename),
			chromago.NewIntAttribute(keyPage, int64(c.Page)),
			chromago.NewIntAttribute(keySequence, int64(c.Sequence)),
			chromago.NewIntAttribute(keyStart, int64(c.Start)),
			chromago.NewIntAttribute(keyEnd, int64(c.End)),
			chromago.NewStringAttribute(keyModel, e.Model),
			chromago.NewIntAttribute(keyDimensions, int64(len(e.Embedding))),
		)
	}

	if err := i.collection.Upsert(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(vecs...),
		chromago.WithMetadatas(metas...),
	); err != nil {
		return fmt.Errorf("saving chunks to chroma: %w", err)
	}

	i.guard.Commit(dim, model)
	return nil
}

// Search returns the k nearest chunks, most similar first.
func (i *Index) Search(ctx context.Context, query []float32, k int) ([]domain.ScoredChunk, error) {
	if err := i.guard.CheckQuery(query); err != nil {
		return nil, err
	}
	if k <= 0 || i.guard.Dimensions() == 0 {
		return []domain.ScoredChunk{}, nil
	}

	result, err := i.collection.Query(ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(query)),
		chromago.WithNResults(k),
	)
	if err != nil {
		return nil, fmt.Errorf("querying chroma: %w", err)
	}

	idGroups := result.GetIDGroups()
	if len(idGroups) == 0 {
		return []domain.ScoredChunk{}, nil
	}
	ids := idGroups[0]
	docs := firstGroup(result.GetDocumentsGroups())
	metas := firstGroup(result.GetMetadatasGroups())
	distances := firstGroup(result.GetDistancesGroups())

	out := make([]domain.ScoredChunk, 0, len(ids))
	for n, id := range ids {
		c := domain.Chunk{ID: string(id)}
		if n < len(docs) && docs[n] != nil {
			c.Text = docs[n].ContentString()
		}
		if n < len(metas) && metas[n] != nil {
			decodeMetadata(metas[n], &c)
		}
		var distance float64
		if n < len(distances) {
			distance = float64(distances[n])
		}
		out = append(out, domain.ScoredChunk{Chunk: c, Score: vector.Similarity(i.metric, distance)})
	}
	return out, nil
}

func firstGroup[G ~[]E, E any](groups []G) G {
	if len(groups) == 0 {
		return nil
	}
	return groups[0]
}

func decodeMetadata(meta chromago.DocumentMetadata, c *domain.Chunk) {
	c.Filename, _ = meta.GetString(keyFilename)
	if v, ok := meta.GetInt(keyPage); ok {
		c.Page = int(v)
	}
	if v, ok := meta.GetInt(keySequence); ok {
		c.Sequence = int(v)
	}
	if v, ok := meta.GetInt(keyStart); ok {
		c.Start = int(v)
	}
	if v, ok := meta.GetInt(keyEnd); ok {
		c.End = int(v)
	}
}

// Remove deletes every entry of the document.
func (i *Index) Remove(ctx context.Context, filename string) (int, error) {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	existing, err := i.collection.Get(ctx, chromago.WithWhereGet(chromago.EqString(keyFilename, filename)))
	if err != nil {
		return 0, fmt.Errorf("reading chunks from chroma: %w", err)
	}
	removed := len(existing.GetIDs())
	if removed == 0 {
		return 0, nil
	}

	if err := i.collection.Delete(ctx, chromago.WithWhereDelete(chromago.EqString(keyFilename, filename))); err != nil {
		return 0, fmt.Errorf("deleting chunks from chroma: %w", err)
	}

	remaining, err := i.Count(ctx)
	if err != nil {
		return 0, err
	}
	if remaining == 0 {
		i.guard.Reset()
	}
	return removed, nil
}

// Count returns the number of stored entries.
func (i *Index) Count(ctx context.Context) (int, error) {
	n, err := i.collection.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting chroma collection: %w", err)
	}
	return int(n), nil
}

// Dimensions returns the established dimension, or 0 for an empty index.
func (i *Index) Dimensions() int {
	return i.guard.Dimensions()
}

// Close closes the Chroma client.
func (i *Index) Close() error {
	return i.client.Close()
}
