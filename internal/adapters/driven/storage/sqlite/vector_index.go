package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/docqa/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// ==================== Vector Index ====================

const (
	metaDimensions = "dimensions"
	metaModel      = "model"

	// metaGeneration counts committed writes. A process that sees a
	// different value than the one its memory copy was loaded at reloads.
	metaGeneration = "generation"

	// loadBatchSize bounds how many rows are handed to the memory index at once.
	loadBatchSize = 512
)

// VectorIndex persists entries in SQLite and serves searches from an
// exact in-memory copy. The copy is reloaded when another process
// sharing the database commits a write.
type VectorIndex struct {
	store  *Store
	metric domain.DistanceMetric
	mem    atomic.Pointer[memory.Index]
	gen    atomic.Int64

	// writeMu serialises reloads with validation, the database write and the memory apply.
	writeMu sync.Mutex
}

var _ driven.VectorIndex = (*VectorIndex)(nil)

func openVectorIndex(s *Store, metric domain.DistanceMetric) (*VectorIndex, error) {
	idx := &VectorIndex{store: s, metric: metric}
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()
	if err := idx.reload(context.Background()); err != nil {
		return nil, err
	}
	return idx, nil
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// refresh reloads the memory copy if the database moved on without it.
func (v *VectorIndex) refresh(ctx context.Context) error {
	gen, err := readGeneration(ctx, v.store.db)
	if err != nil {
		return err
	}
	if gen == v.gen.Load() {
		return nil
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	return v.refreshLocked(ctx)
}

func (v *VectorIndex) refreshLocked(ctx context.Context) error {
	gen, err := readGeneration(ctx, v.store.db)
	if err != nil {
		return err
	}
	if gen == v.gen.Load() && v.mem.Load() != nil {
		return nil
	}
	return v.reload(ctx)
}

// reload replays persisted entries in insertion order into a fresh
// memory index and swaps it in. Callers hold writeMu.
func (v *VectorIndex) reload(ctx context.Context) error {
	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read only

	gen, err := readGeneration(ctx, tx)
	if err != nil {
		return err
	}

	mem := memory.New(v.metric)
	if err := loadChunks(ctx, tx, mem); err != nil {
		return err
	}
	if err := checkMeta(ctx, tx, mem); err != nil {
		return err
	}

	v.mem.Store(mem)
	v.gen.Store(gen)
	return nil
}

func loadChunks(ctx context.Context, tx *sql.Tx, mem *memory.Index) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, filename, page, sequence, content, start_offset, end_offset, embedding, model
		FROM chunks ORDER BY seq
	`)
	if err != nil {
		return fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	batch := make([]domain.IndexEntry, 0, loadBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := mem.Upsert(ctx, batch); err != nil {
			return fmt.Errorf("loading chunks: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for rows.Next() {
		var e domain.IndexEntry
		var blob []byte
		if err := rows.Scan(&e.Chunk.ID, &e.Chunk.Filename, &e.Chunk.Page, &e.Chunk.Sequence,
			&e.Chunk.Text, &e.Chunk.Start, &e.Chunk.End, &blob, &e.Model); err != nil {
			return fmt.Errorf("scanning chunk: %w", err)
		}
		e.Embedding = bytesToFloat32Slice(blob)
		batch = append(batch, e)
		if len(batch) == loadBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating chunks: %w", err)
	}
	return flush()
}

// checkMeta verifies the loaded entries agree with the recorded dimension and model.
func checkMeta(ctx context.Context, q queryRower, mem *memory.Index) error {
	dimText, err := readMeta(ctx, q, metaDimensions)
	if err != nil || dimText == "" {
		return err
	}
	dim, err := strconv.Atoi(dimText)
	if err != nil {
		return fmt.Errorf("parsing index dimensions %q: %w", dimText, err)
	}
	model, err := readMeta(ctx, q, metaModel)
	if err != nil {
		return err
	}
	if mem.Dimensions() != 0 && (dim != mem.Dimensions() || model != mem.Model()) {
		return fmt.Errorf("%w: stored entries use %d dimensions from %q, index records %d from %q",
			domain.ErrDimensionMismatch, mem.Dimensions(), mem.Model(), dim, model)
	}
	return nil
}

func readMeta(ctx context.Context, q queryRower, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading index meta %s: %w", key, err)
	}
	return value, nil
}

func readGeneration(ctx context.Context, q queryRower) (int64, error) {
	text, err := readMeta(ctx, q, metaGeneration)
	if err != nil || text == "" {
		return 0, err
	}
	gen, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing index generation %q: %w", text, err)
	}
	return gen, nil
}

// bumpGeneration increments the write counter inside tx and returns the new value.
func bumpGeneration(ctx context.Context, tx *sql.Tx) (int64, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO index_meta (key, value) VALUES (?, '1')
		ON CONFLICT(key) DO UPDATE SET value = CAST(value AS INTEGER) + 1
	`, metaGeneration)
	if err != nil {
		return 0, fmt.Errorf("advancing index generation: %w", err)
	}
	return readGeneration(ctx, tx)
}

// applyLocked brings the memory copy in line after a commit that moved
// the generation to next. If another process committed in between, the
// whole copy is reloaded instead of applying the change locally.
func (v *VectorIndex) applyLocked(ctx context.Context, next int64, apply func(*memory.Index) error) error {
	if next-1 != v.gen.Load() {
		return v.reload(ctx)
	}
	if err := apply(v.mem.Load()); err != nil {
		return err
	}
	v.gen.Store(next)
	return nil
}

// Upsert inserts or replaces entries. The batch is written in one
// transaction; a rejected or failed batch leaves disk and memory unchanged.
func (v *VectorIndex) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	if err := v.refreshLocked(ctx); err != nil {
		return err
	}
	if err := v.mem.Load().Check(entries); err != nil {
		return err
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, filename, page, sequence, content, start_offset, end_offset, embedding, model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			page = excluded.page,
			sequence = excluded.sequence,
			content = excluded.content,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			embedding = excluded.embedding,
			model = excluded.model
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		c := e.Chunk
		if _, err := stmt.ExecContext(ctx, c.ID, c.Filename, c.Page, c.Sequence, c.Text,
			c.Start, c.End, float32SliceToBytes(e.Embedding), e.Model); err != nil {
			return fmt.Errorf("saving chunk %s: %w", c.ID, err)
		}
	}

	first := entries[0]
	if err := setMeta(ctx, tx, metaDimensions, strconv.Itoa(len(first.Embedding))); err != nil {
		return err
	}
	if err := setMeta(ctx, tx, metaModel, first.Model); err != nil {
		return err
	}
	next, err := bumpGeneration(ctx, tx)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}

	return v.applyLocked(ctx, next, func(mem *memory.Index) error {
		return mem.Upsert(ctx, entries)
	})
}

func setMeta(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO index_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("saving index meta %s: %w", key, err)
	}
	return nil
}

// Search returns the k nearest chunks, most similar first.
func (v *VectorIndex) Search(ctx context.Context, query []float32, k int) ([]domain.ScoredChunk, error) {
	if err := v.refresh(ctx); err != nil {
		return nil, err
	}
	return v.mem.Load().Search(ctx, query, k)
}

// Remove deletes every entry of the document. Emptying the index clears
// its recorded dimension and model.
func (v *VectorIndex) Remove(ctx context.Context, filename string) (int, error) {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	if err := v.refreshLocked(ctx); err != nil {
		return 0, err
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE filename = ?`, filename)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted chunks: %w", err)
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&remaining); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM index_meta WHERE key IN (?, ?)`,
			metaDimensions, metaModel); err != nil {
			return 0, fmt.Errorf("clearing index meta: %w", err)
		}
	}
	next, err := bumpGeneration(ctx, tx)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing removal: %w", err)
	}

	err = v.applyLocked(ctx, next, func(mem *memory.Index) error {
		_, err := mem.Remove(ctx, filename)
		return err
	})
	return int(deleted), err
}

// Count returns the number of stored entries.
func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	if err := v.refresh(ctx); err != nil {
		return 0, err
	}
	return v.mem.Load().Count(ctx)
}

// Dimensions returns the established dimension, or 0 for an empty index.
func (v *VectorIndex) Dimensions() int {
	return v.mem.Load().Dimensions()
}

// Model returns the embedding model the index was built with.
func (v *VectorIndex) Model() string {
	return v.mem.Load().Model()
}

// Close releases the in-memory copy. The database is closed by the Store.
func (v *VectorIndex) Close() error {
	return v.mem.Load().Close()
}
