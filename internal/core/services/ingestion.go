package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// DefaultIngestTimeout bounds a whole ingestion.
const DefaultIngestTimeout = 5 * time.Minute

// rollbackTimeout bounds cleanup after a failed ingestion.
const rollbackTimeout = 30 * time.Second

// IngestionService runs the extract, chunk, embed and index pipeline.
// A document is either fully indexed and processed, or has no index
// entries and is marked failed.
type IngestionService struct {
	extractor driven.Extractor
	chunker   driven.Chunker
	embedder  *Embedder
	index     driven.VectorIndex
	corpus    driven.CorpusStore
	timeout   time.Duration
	locks     keyedMutex
	now       func() time.Time
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(
	extractor driven.Extractor,
	chunker driven.Chunker,
	embedder *Embedder,
	index driven.VectorIndex,
	corpus driven.CorpusStore,
) *IngestionService {
	return &IngestionService{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		corpus:    corpus,
		timeout:   DefaultIngestTimeout,
		now:       time.Now,
	}
}

// SetTimeout sets the per-document timeout. Zero disables it.
func (s *IngestionService) SetTimeout(d time.Duration) {
	s.timeout = d
}

// Ingest adds a PDF to the corpus.
func (s *IngestionService) Ingest(ctx context.Context, filename string, data []byte) (*domain.Document, error) {
	name, err := domain.ValidateFilename(filename)
	if err != nil {
		return nil, &domain.IngestError{Filename: filename, Stage: domain.StageValidate, Err: err}
	}

	unlock := s.locks.Lock(name)
	defer unlock()

	return s.ingestLocked(ctx, name, data)
}

// Reingest removes any existing copy of the document and ingests data in its place.
func (s *IngestionService) Reingest(ctx context.Context, filename string, data []byte) (*domain.Document, error) {
	name, err := domain.ValidateFilename(filename)
	if err != nil {
		return nil, &domain.IngestError{Filename: filename, Stage: domain.StageValidate, Err: err}
	}

	unlock := s.locks.Lock(name)
	defer unlock()

	if err := s.removeLocked(ctx, name); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.IngestError{Filename: name, Stage: domain.StageRecord, Err: err}
	}
	return s.ingestLocked(ctx, name, data)
}

// Remove deletes a document and its index entries.
// Returns domain.ErrNotFound if the document is unknown.
func (s *IngestionService) Remove(ctx context.Context, filename string) error {
	name, err := domain.ValidateFilename(filename)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(name)
	defer unlock()

	return s.removeLocked(ctx, name)
}

// Recover marks documents left pending by an interrupted process as failed
// and removes whatever they had indexed. Call it once at startup.
func (s *IngestionService) Recover(ctx context.Context) (int, error) {
	docs, err := s.corpus.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}

	recovered := 0
	for _, doc := range docs {
		if doc.Status != domain.DocumentPending {
			continue
		}
		unlock := s.locks.Lock(doc.Filename)
		s.rollback(ctx, doc.Filename, "interrupted before completion")
		unlock()
		recovered++
	}
	if recovered > 0 {
		logger.Warn("Recovered %d interrupted ingestions", recovered)
	}
	return recovered, nil
}

func (s *IngestionService) ingestLocked(ctx context.Context, name string, data []byte) (*domain.Document, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger.Section("Ingest " + name)
	start := s.now()

	existing, err := s.corpus.Get(ctx, name)
	switch {
	case err == nil && existing.Status != domain.DocumentFailed:
		return nil, &domain.IngestError{
			Filename: name,
			Stage:    domain.StageValidate,
			Err:      fmt.Errorf("%w: %s is %s", domain.ErrAlreadyExists, name, existing.Status),
		}
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, &domain.IngestError{Filename: name, Stage: domain.StageRecord, Err: err}
	}

	doc := &domain.Document{
		Filename:   name,
		Status:     domain.DocumentPending,
		IngestedAt: start,
		UpdatedAt:  start,
	}
	if err := s.corpus.Save(ctx, doc); err != nil {
		return nil, &domain.IngestError{Filename: name, Stage: domain.StageRecord, Err: err}
	}

	if stage, err := s.run(ctx, doc, data); err != nil {
		ierr := &domain.IngestError{Filename: name, Stage: stage, Err: err}
		if errors.Is(err, domain.ErrDimensionMismatch) {
			logger.Error("%v", ierr)
		} else {
			logger.Warn("%v", ierr)
		}
		s.rollback(ctx, name, ierr.Error())
		doc.Status = domain.DocumentFailed
		doc.Reason = ierr.Error()
		return doc, ierr
	}

	doc.Status = domain.DocumentProcessed
	doc.UpdatedAt = s.now()
	if err := s.corpus.Save(ctx, doc); err != nil {
		ierr := &domain.IngestError{Filename: name, Stage: domain.StageRecord, Err: err}
		s.rollback(ctx, name, ierr.Error())
		return nil, ierr
	}

	logger.Info("Ingested %s: %d pages, %d chunks in %s",
		name, doc.PageCount, doc.ChunkCount, s.now().Sub(start).Round(time.Millisecond))
	return doc, nil
}

// run executes the pipeline and reports the stage that failed.
func (s *IngestionService) run(ctx context.Context, doc *domain.Document, data []byte) (string, error) {
	pages, err := s.extractor.Extract(ctx, data)
	if err != nil {
		return domain.StageExtract, err
	}
	doc.PageCount = len(pages)
	logger.Debug("Extracted %d pages", len(pages))

	var chunks []domain.Chunk
	for _, page := range pages {
		for chunk := range s.chunker.Chunks(doc.Filename, page) {
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) == 0 {
		return domain.StageChunk, domain.ErrEmptyDocument
	}
	doc.ChunkCount = len(chunks)
	logger.Debug("Produced %d chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedAll(ctx, texts)
	if err != nil {
		return domain.StageEmbed, err
	}

	model := s.embedder.ModelName()
	entries := make([]domain.IndexEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = domain.IndexEntry{Chunk: c, Embedding: vectors[i], Model: model}
	}
	if err := ctx.Err(); err != nil {
		return domain.StageIndex, err
	}
	if err := s.index.Upsert(ctx, entries); err != nil {
		return domain.StageIndex, err
	}
	return "", nil
}

// rollback removes every index entry of the document and marks it failed.
// It runs on a fresh context so a cancelled ingestion is still cleaned up.
func (s *IngestionService) rollback(ctx context.Context, name, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	removed, err := s.index.Remove(ctx, name)
	if err != nil {
		logger.Error("Rollback of %s failed: %v", name, err)
	} else if removed > 0 {
		logger.Debug("Rolled back %d entries of %s", removed, name)
	}

	if err := s.corpus.SetStatus(ctx, name, domain.DocumentFailed, reason); err != nil {
		logger.Error("Failed to mark %s as failed: %v", name, err)
	}
}

func (s *IngestionService) removeLocked(ctx context.Context, name string) error {
	if _, err := s.corpus.Get(ctx, name); err != nil {
		return err
	}
	removed, err := s.index.Remove(ctx, name)
	if err != nil {
		return fmt.Errorf("remove %s from index: %w", name, err)
	}
	if err := s.corpus.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	logger.Info("Removed %s (%d entries)", name, removed)
	return nil
}
