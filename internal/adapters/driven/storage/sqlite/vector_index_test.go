package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func testEntry(filename string, page, seq int, model string, vec ...float32) domain.IndexEntry {
	return domain.IndexEntry{
		Chunk: domain.Chunk{
			ID:       domain.ChunkID(filename, page, seq),
			Filename: filename,
			Page:     page,
			Sequence: seq,
			Text:     "text of " + filename,
			Start:    seq * 10,
			End:      seq*10 + 10,
		},
		Embedding: vec,
		Model:     model,
	}
}

func TestVectorIndex_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	idx, err := store.VectorIndex(domain.DistanceCosine)
	require.NoError(t, err)

	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		testEntry("a.pdf", 1, 0, "m", 1, 0),
		testEntry("b.pdf", 1, 0, "m", 1, 0),
		testEntry("c.pdf", 2, 1, "m", 0, 1),
	}))
	require.NoError(t, idx.Close())
	require.NoError(t, store.Close())

	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()
	idx, err = store.VectorIndex(domain.DistanceCosine)
	require.NoError(t, err)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 2, idx.Dimensions())
	assert.Equal(t, "m", idx.Model())

	hits, err := idx.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	// Equal distances keep insertion order after reload.
	assert.Equal(t, "a.pdf", hits[0].Chunk.Filename)
	assert.Equal(t, "b.pdf", hits[1].Chunk.Filename)
	assert.Equal(t, "c.pdf", hits[2].Chunk.Filename)
	assert.Equal(t, 2, hits[2].Chunk.Page)
	assert.Equal(t, 1, hits[2].Chunk.Sequence)
	assert.Equal(t, 10, hits[2].Chunk.Start)
	assert.Equal(t, 20, hits[2].Chunk.End)
}

func TestVectorIndex_RejectedBatchNotPersisted(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupTestStore(t)
	defer cleanup()

	idx, err := store.VectorIndex(domain.DistanceCosine)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{testEntry("a.pdf", 1, 0, "m", 1, 0)}))

	err = idx.Upsert(ctx, []domain.IndexEntry{
		testEntry("b.pdf", 1, 0, "m", 1, 0),
		testEntry("b.pdf", 1, 1, "m", 1, 0, 0),
	})
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)

	var rows int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&rows))
	assert.Equal(t, 1, rows)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVectorIndex_ModelDriftRejected(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupTestStore(t)
	defer cleanup()

	idx, err := store.VectorIndex(domain.DistanceCosine)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{testEntry("a.pdf", 1, 0, "old", 1, 0)}))

	err = idx.Upsert(ctx, []domain.IndexEntry{testEntry("b.pdf", 1, 0, "new", 1, 0)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestVectorIndex_UpsertReplacesRow(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupTestStore(t)
	defer cleanup()

	idx, err := store.VectorIndex(domain.DistanceCosine)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{testEntry("a.pdf", 1, 0, "m", 1, 0)}))

	updated := testEntry("a.pdf", 1, 0, "m", 0, 1)
	updated.Chunk.Text = "updated"
	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{updated}))

	var rows int
	var content string
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*), MAX(content) FROM chunks").Scan(&rows, &content))
	assert.Equal(t, 1, rows)
	assert.Equal(t, "updated", content)
}

func TestVectorIndex_RemoveClearsMetaWhenEmpty(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupTestStore(t)
	defer cleanup()

	idx, err := store.VectorIndex(domain.DistanceCosine)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		testEntry("a.pdf", 1, 0, "m", 1, 0),
		testEntry("a.pdf", 1, 1, "m", 1, 0),
		testEntry("b.pdf", 1, 0, "m", 0, 1),
	}))

	removed, err := idx.Remove(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	countMeta := `SELECT COUNT(*) FROM index_meta WHERE key IN ('dimensions', 'model')`
	var meta int
	require.NoError(t, store.db.QueryRow(countMeta).Scan(&meta))
	assert.Equal(t, 2, meta)

	removed, err = idx.Remove(ctx, "b.pdf")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	require.NoError(t, store.db.QueryRow(countMeta).Scan(&meta))
	assert.Equal(t, 0, meta)
	assert.Equal(t, 0, idx.Dimensions())

	// A new model is accepted once the index is empty.
	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{testEntry("c.pdf", 1, 0, "new", 1, 2, 3)}))
	assert.Equal(t, 3, idx.Dimensions())
}

func TestVectorIndex_InconsistentMetaOnLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	idx, err := store.VectorIndex(domain.DistanceCosine)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{testEntry("a.pdf", 1, 0, "m", 1, 0)}))

	_, err = store.db.Exec("UPDATE index_meta SET value = '768' WHERE key = 'dimensions'")
	require.NoError(t, err)

	_, err = store.VectorIndex(domain.DistanceCosine)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	require.NoError(t, store.Close())
}

func TestVectorIndex_SeesWritesFromAnotherStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	storeA, err := NewStore(dir)
	require.NoError(t, err)
	defer storeA.Close()
	storeB, err := NewStore(dir)
	require.NoError(t, err)
	defer storeB.Close()

	idxA, err := storeA.VectorIndex(domain.DistanceCosine)
	require.NoError(t, err)
	idxB, err := storeB.VectorIndex(domain.DistanceCosine)
	require.NoError(t, err)

	require.NoError(t, idxA.Upsert(ctx, []domain.IndexEntry{
		testEntry("a.pdf", 1, 0, "m", 1, 0),
		testEntry("a.pdf", 2, 1, "m", 0, 1),
	}))

	count, err := idxB.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	hits, err := idxB.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a.pdf", hits[0].Chunk.Filename)

	// Writes from both sides interleave without losing either.
	require.NoError(t, idxB.Upsert(ctx, []domain.IndexEntry{testEntry("b.pdf", 1, 0, "m", 1, 1)}))
	require.NoError(t, idxA.Upsert(ctx, []domain.IndexEntry{testEntry("c.pdf", 1, 0, "m", 1, 1)}))

	for name, idx := range map[string]*VectorIndex{"a": idxA, "b": idxB} {
		count, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, count, "store %s", name)
	}

	removed, err := idxB.Remove(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	count, err = idxA.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	hits, err = idxA.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "a.pdf", h.Chunk.Filename)
	}
}
