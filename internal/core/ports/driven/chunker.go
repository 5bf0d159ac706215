package driven

import (
	"iter"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// Chunker splits page text into overlapping chunks.
// Implementations must be deterministic for identical input.
type Chunker interface {
	// Chunks returns a restartable sequence of the chunks of one page.
	// Chunks never span pages and a blank page yields nothing.
	Chunks(filename string, page domain.Page) iter.Seq[domain.Chunk]
}
