// Package watch ingests PDFs dropped into an inbox directory.
//
// Created or rewritten .pdf files are (re)ingested once the directory has
// been quiet for the debounce interval; removed files leave the corpus.
// Only the top level of the directory is watched.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// DefaultDebounce is how long the directory must be quiet before pending
// changes are applied. Editors and copy tools emit bursts of writes.
const DefaultDebounce = 500 * time.Millisecond

// op is the corpus change a file event maps to.
type op int

const (
	opNone op = iota
	opIngest
	opRemove
)

// Watcher feeds an inbox directory into the ingestion service.
type Watcher struct {
	dir       string
	ingestion driving.IngestionService
	debounce  time.Duration
	readFile  func(string) ([]byte, error)

	// onReady is called once the directory is being watched.
	onReady func()
}

// New creates a watcher for dir.
func New(dir string, ingestion driving.IngestionService) *Watcher {
	return &Watcher{
		dir:       dir,
		ingestion: ingestion,
		debounce:  DefaultDebounce,
		readFile:  os.ReadFile,
	}
}

// SetDebounce changes the quiet period. Non-positive values are ignored.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Scan ingests PDFs already present in the directory that the corpus does
// not know yet. It returns the number of documents ingested.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", w.dir, err)
	}

	ingested := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return ingested, ctx.Err()
		}
		if entry.IsDir() || !isPDF(entry.Name()) {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		data, err := w.readFile(path)
		if err != nil {
			logger.Warn("Skipping %s: %v", path, err)
			continue
		}
		if _, err := w.ingestion.Ingest(ctx, entry.Name(), data); err != nil {
			if !errors.Is(err, domain.ErrAlreadyExists) {
				logger.Warn("Inbox ingest of %s failed: %v", entry.Name(), err)
			}
			continue
		}
		ingested++
	}
	return ingested, nil
}

// Run watches the directory until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	logger.Info("Watching %s for PDFs", w.dir)
	if w.onReady != nil {
		w.onReady()
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	pending := make(map[string]op)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			change := classify(event)
			if change == opNone {
				continue
			}
			logger.Debug("Inbox event: %s", event)
			pending[event.Name] = change
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)

		case <-timer.C:
			w.apply(ctx, pending)
			pending = make(map[string]op)
		}
	}
}

// apply performs the pending changes in path order.
func (w *Watcher) apply(ctx context.Context, pending map[string]op) {
	paths := make([]string, 0, len(pending))
	for path := range pending {
		paths = append(paths, path)
	}
	slices.Sort(paths)

	for _, path := range paths {
		name := filepath.Base(path)
		switch pending[path] {
		case opIngest:
			data, err := w.readFile(path)
			if err != nil {
				// The file may have been moved away after the event.
				logger.Warn("Skipping %s: %v", path, err)
				continue
			}
			if _, err := w.ingestion.Reingest(ctx, name, data); err != nil {
				logger.Warn("Inbox ingest of %s failed: %v", name, err)
			}

		case opRemove:
			if err := w.ingestion.Remove(ctx, name); err != nil && !errors.Is(err, domain.ErrNotFound) {
				logger.Warn("Inbox removal of %s failed: %v", name, err)
			}
		}
	}
}

// classify maps a filesystem event onto a corpus change.
func classify(event fsnotify.Event) op {
	if !isPDF(event.Name) {
		return opNone
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// Rename reports the old name; the new name arrives as Create.
		return opRemove
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			return opNone
		}
		return opIngest
	default:
		return opNone
	}
}

// isPDF reports whether name is a visible file with a .pdf extension.
func isPDF(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".pdf")
}
