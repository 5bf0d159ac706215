package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// ==================== Corpus Store ====================

// corpusStore implements driven.CorpusStore.
type corpusStore struct {
	store *Store
}

var _ driven.CorpusStore = (*corpusStore)(nil)

const documentColumns = `filename, page_count, chunk_count, status, reason, ingested_at, updated_at`

// Save creates or replaces a document record.
func (s *corpusStore) Save(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	ingestedAt := doc.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = now
	}
	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			page_count = excluded.page_count,
			chunk_count = excluded.chunk_count,
			status = excluded.status,
			reason = excluded.reason,
			ingested_at = excluded.ingested_at,
			updated_at = excluded.updated_at
	`, doc.Filename, doc.PageCount, doc.ChunkCount, string(doc.Status), doc.Reason,
		ingestedAt.UTC(), updatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// Get retrieves a document by filename.
func (s *corpusStore) Get(ctx context.Context, filename string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE filename = ?`, filename)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns every document ordered by ingestion time, then filename.
func (s *corpusStore) List(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY ingested_at, filename`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// SetStatus updates the status and reason of a document.
func (s *corpusStore) SetStatus(
	ctx context.Context, filename string, status domain.DocumentStatus, reason string,
) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, reason = ?, updated_at = ? WHERE filename = ?
	`, string(status), reason, time.Now().UTC(), filename)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	return requireAffected(result)
}

// Delete removes a document record.
func (s *corpusStore) Delete(ctx context.Context, filename string) error {
	result, err := s.store.db.ExecContext(ctx, `DELETE FROM documents WHERE filename = ?`, filename)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return requireAffected(result)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument scans a single document row.
func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	if err := row.Scan(&doc.Filename, &doc.PageCount, &doc.ChunkCount, &status,
		&doc.Reason, &doc.IngestedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
