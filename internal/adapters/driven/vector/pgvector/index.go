// Package pgvector provides a VectorIndex backed by PostgreSQL with the
// pgvector extension.
//
// Search uses a sequential scan ordered by distance, so results are exact.
// No approximate index is created on the embedding column.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/docqa/internal/adapters/driven/vector"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "pdf_documents"

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index stores entries in a PostgreSQL table.
type Index struct {
	pool   *pgxpool.Pool
	table  string
	metric domain.DistanceMetric
	guard  *vector.Guard

	// writeMu serialises validation with the write it guards.
	writeMu sync.Mutex
}

// Open connects to PostgreSQL, ensures the extension and table exist,
// and restores the dimension and model of any stored entries.
func Open(ctx context.Context, dsn, table string, metric domain.DistanceMetric) (*Index, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: pgvector DSN is required", domain.ErrInvalidInput)
	}
	if table == "" {
		table = DefaultTable
	}
	if !metric.IsValid() {
		metric = domain.DistanceCosine
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing pgvector DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	idx := &Index{
		pool:   pool,
		table:  pgx.Identifier{table}.Sanitize(),
		metric: metric,
		guard:  vector.NewGuard(0, ""),
	}
	if err := idx.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return idx, nil
}

func (i *Index) init(ctx context.Context) error {
	if _, err := i.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}

	_, err := i.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+i.table+` (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			filename TEXT NOT NULL,
			page INTEGER NOT NULL,
			sequence INTEGER NOT NULL,
			content TEXT NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset INTEGER NOT NULL,
			embedding vector NOT NULL,
			model TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("creating table: %w", err)
	}

	var dim int
	var model string
	err = i.pool.QueryRow(ctx,
		`SELECT vector_dims(embedding), model FROM `+i.table+` ORDER BY seq LIMIT 1`,
	).Scan(&dim, &model)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading index dimensions: %w", err)
	}
	i.guard.Commit(dim, model)
	return nil
}

// Upsert inserts or replaces entries in one transaction.
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

	tx, err := i.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	batch := &pgx.Batch{}
	for _, e := range entries {
		c := e.Chunk
		batch.Queue(`
			INSERT INTO `+i.table+` (id, filename, page, sequence, content, start_offset, end_offset, embedding, model)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				filename = EXCLUDED.filename,
				page = EXCLUDED.page,
				sequence = EXCLUDED.sequence,
				content = EXCLUDED.content,
				start_offset = EXCLUDED.start_offset,
				end_offset = EXCLUDED.end_offset,
				embedding = EXCLUDED.embedding,
				model = EXCLUDED.model`,
			c.ID, c.Filename, c.Page, c.Sequence, c.Text, c.Start, c.End, pgv.NewVector(e.Embedding), e.Model)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("saving chunks: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
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

	rows, err := i.pool.Query(ctx, `
		SELECT id, filename, page, sequence, content, start_offset, end_offset,
			embedding `+distanceOperator(i.metric)+` $1 AS distance
		FROM `+i.table+`
		ORDER BY distance, seq
		LIMIT $2`, pgv.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	results := make([]domain.ScoredChunk, 0, k)
	for rows.Next() {
		var c domain.Chunk
		var distance float64
		if err := rows.Scan(&c.ID, &c.Filename, &c.Page, &c.Sequence, &c.Text,
			&c.Start, &c.End, &distance); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		results = append(results, domain.ScoredChunk{
			Chunk: c,
			Score: vector.Similarity(i.metric, distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return results, nil
}

// distanceOperator returns the pgvector operator for the metric.
func distanceOperator(metric domain.DistanceMetric) string {
	if metric == domain.DistanceL2 {
		return "<->"
	}
	return "<=>"
}

// Remove deletes every entry of the document.
func (i *Index) Remove(ctx context.Context, filename string) (int, error) {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	tag, err := i.pool.Exec(ctx, `DELETE FROM `+i.table+` WHERE filename = $1`, filename)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks: %w", err)
	}

	remaining, err := i.Count(ctx)
	if err != nil {
		return 0, err
	}
	if remaining == 0 {
		i.guard.Reset()
	}
	return int(tag.RowsAffected()), nil
}

// Count returns the number of stored entries.
func (i *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := i.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+i.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Dimensions returns the established dimension, or 0 for an empty index.
func (i *Index) Dimensions() int {
	return i.guard.Dimensions()
}

// Close closes the connection pool.
func (i *Index) Close() error {
	i.pool.Close()
	return nil
}
