package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func writePDF(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	return path
}

func TestIngestCmd_RequiresFiles(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "ingest")

	assert.Error(t, err)
}

func TestIngestCmd_IngestsEachFile(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	dir := t.TempDir()

	out, err := execute(t, "ingest", writePDF(t, dir, "a.pdf"), writePDF(t, dir, "b.pdf"))

	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, ts.ingestion.ingested)
	assert.Contains(t, out, "a.pdf (2 pages, 5 chunks)")
	assert.Contains(t, out, "b.pdf (2 pages, 5 chunks)")
}

func TestIngestCmd_ReportsFailures(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.failures = map[string]error{
		"bad.pdf": &domain.IngestError{Filename: "bad.pdf", Stage: domain.StageExtract, Err: domain.ErrUnreadablePDF},
	}
	dir := t.TempDir()

	out, err := execute(t, "ingest",
		writePDF(t, dir, "good.pdf"),
		writePDF(t, dir, "bad.pdf"),
		filepath.Join(dir, "missing.pdf"))

	require.Error(t, err)
	assert.Equal(t, "2 of 3 documents failed", err.Error())
	assert.Equal(t, []string{"good.pdf"}, ts.ingestion.ingested)
	assert.Contains(t, out, "bad.pdf: ingest bad.pdf: extract: unreadable PDF")
	assert.Contains(t, out, "missing.pdf")
}

func TestIngestCmd_Replace(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	dir := t.TempDir()

	_, err := execute(t, "ingest", "--replace", writePDF(t, dir, "a.pdf"))
	defer func() { ingestReplace = false }()

	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf"}, ts.ingestion.reingested)
	assert.Empty(t, ts.ingestion.ingested)
}
