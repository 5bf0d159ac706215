// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Extractor: Turns PDF bytes into per-page text
//   - Chunker: Splits page text into overlapping chunks
//   - EmbeddingService: Generates vector embeddings
//   - VectorIndex: Stores embeddings and answers exact nearest-neighbour queries
//   - LLMService: Produces answers from a grounded prompt
//   - CorpusStore: Document lifecycle persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
//   - PromptStore: Custom prompt templates. Without it, embedded defaults are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
