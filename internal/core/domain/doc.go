// Package domain defines the core business entities for docqa.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An uploaded PDF tracked in the corpus
//   - Page: The extracted text of one PDF page
//   - Chunk: A contiguous span of one page's text
//   - IndexEntry: A chunk paired with its embedding
//   - QueryResult: A grounded answer with its citations
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
