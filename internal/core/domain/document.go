package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DocumentStatus is the lifecycle state of a document in the corpus.
type DocumentStatus string

// Document lifecycle states.
const (
	// DocumentPending means ingestion has started but not finished.
	DocumentPending DocumentStatus = "pending"

	// DocumentProcessed means every chunk of the document is indexed.
	DocumentProcessed DocumentStatus = "processed"

	// DocumentFailed means ingestion failed and nothing is indexed.
	DocumentFailed DocumentStatus = "failed"
)

// IsValid returns true if the status is recognised.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentPending, DocumentProcessed, DocumentFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s DocumentStatus) String() string {
	return string(s)
}

// Document represents an uploaded PDF tracked in the corpus.
// The filename is its identity and is unique within the corpus.
type Document struct {
	// Filename is the original name of the uploaded file.
	Filename string

	// PageCount is the number of pages extracted from the file.
	PageCount int

	// ChunkCount is the number of chunks indexed for the file.
	ChunkCount int

	// Status is the ingestion lifecycle state.
	Status DocumentStatus

	// Reason explains a failed ingestion.
	Reason string

	// IngestedAt is when ingestion started.
	IngestedAt time.Time

	// UpdatedAt is when the status last changed.
	UpdatedAt time.Time
}

// IsQueryable returns true if the document's chunks may be used to answer questions.
func (d *Document) IsQueryable() bool {
	return d.Status == DocumentProcessed
}

// ValidateFilename checks that name is usable as a document identity.
// Only the base name is kept and it must carry a .pdf extension.
func ValidateFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: invalid filename %q", ErrInvalidInput, name)
	}
	if !strings.EqualFold(filepath.Ext(base), ".pdf") {
		return "", fmt.Errorf("%w: %q is not a .pdf file", ErrInvalidInput, base)
	}
	return base, nil
}

// Page is the extracted text of one PDF page.
// Text may be empty for scanned pages that carry no text layer.
type Page struct {
	// Number is the 1-based page number.
	Number int

	// Text is the normalised page text.
	Text string
}

// IsBlank returns true if the page has no non-whitespace text.
func (p Page) IsBlank() bool {
	return strings.TrimSpace(p.Text) == ""
}

// Chunk is a contiguous span of one page's text.
// Chunks never span pages and Text equals the page text between Start and End.
type Chunk struct {
	// ID is the deterministic identifier, see ChunkID.
	ID string

	// Filename is the document the chunk belongs to.
	Filename string

	// Page is the 1-based page number the chunk comes from.
	Page int

	// Sequence is the ordinal position of the chunk within its page.
	Sequence int

	// Text is the chunk content.
	Text string

	// Start is the byte offset of the chunk within the page text.
	Start int

	// End is the exclusive byte offset of the chunk within the page text.
	End int
}

// ChunkID builds the deterministic identifier of a chunk.
func ChunkID(filename string, page, seq int) string {
	return fmt.Sprintf("%s#p%d#c%d", filename, page, seq)
}

// Citation returns the page-level citation of the chunk.
func (c Chunk) Citation() Citation {
	return Citation{Filename: c.Filename, Page: c.Page}
}

// IndexEntry pairs a chunk with its embedding.
type IndexEntry struct {
	// Chunk is the indexed chunk.
	Chunk Chunk

	// Embedding is the vector produced by Model.
	Embedding []float32

	// Model is the name of the embedding model that produced Embedding.
	Model string
}
