package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGemini is Google Gemini API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// SupportsEmbeddings returns true if the provider offers an embedding API.
func (p AIProvider) SupportsEmbeddings() bool {
	return p == AIProviderOllama || p == AIProviderOpenAI || p == AIProviderGemini
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderGemini:
		return "Google Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama and OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for cloud providers).
	APIKey string

	// BatchSize caps the number of texts sent per request.
	BatchSize int

	// RequestsPerSecond throttles calls to the provider. Zero disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || !e.Provider.SupportsEmbeddings() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// InputLimit returns the longest text, in bytes, the configured model
// embeds without truncation.
func (e EmbeddingSettings) InputLimit() int {
	if n, ok := EmbeddingInputLimits()[e.Model]; ok {
		return n
	}
	return DefaultEmbeddingInputLimit
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama and OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for cloud providers).
	APIKey string

	// MaxTokens caps the answer length.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float64

	// RequestsPerSecond throttles calls to the provider. Zero disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// ChunkSettings controls how page text is split.
type ChunkSettings struct {
	// Size is the target chunk length in bytes.
	Size int

	// Overlap is the fraction of Size shared by consecutive chunks.
	Overlap float64
}

// RetrievalSettings controls which chunks reach the answerer.
type RetrievalSettings struct {
	// TopK is the number of nearest chunks fetched per question.
	TopK int

	// MinSimilarity drops hits scoring below this floor.
	MinSimilarity float64

	// MaxContextChunks bounds how many chunks are placed in the prompt.
	MaxContextChunks int
}

// IndexBackend selects the VectorIndex implementation.
type IndexBackend string

// Available index backends.
const (
	// IndexBackendSQLite persists entries in the local metadata database.
	IndexBackendSQLite IndexBackend = "sqlite"

	// IndexBackendMemory keeps entries in process memory only.
	IndexBackendMemory IndexBackend = "memory"

	// IndexBackendPgvector stores entries in PostgreSQL with pgvector.
	IndexBackendPgvector IndexBackend = "pgvector"

	// IndexBackendChroma stores entries in a Chroma server.
	IndexBackendChroma IndexBackend = "chroma"
)

// IsValid returns true if the backend is recognised.
func (b IndexBackend) IsValid() bool {
	switch b {
	case IndexBackendSQLite, IndexBackendMemory, IndexBackendPgvector, IndexBackendChroma:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b IndexBackend) String() string {
	return string(b)
}

// DistanceMetric selects how vectors are compared.
type DistanceMetric string

// Available distance metrics.
const (
	// DistanceCosine ranks by cosine distance.
	DistanceCosine DistanceMetric = "cosine"

	// DistanceL2 ranks by Euclidean distance.
	DistanceL2 DistanceMetric = "l2"
)

// IsValid returns true if the metric is recognised.
func (m DistanceMetric) IsValid() bool {
	return m == DistanceCosine || m == DistanceL2
}

// String returns the string representation.
func (m DistanceMetric) String() string {
	return string(m)
}

// IndexSettings holds vector index configuration.
type IndexSettings struct {
	// Backend selects the index implementation.
	Backend IndexBackend

	// Metric is the distance metric.
	Metric DistanceMetric

	// DSN is the PostgreSQL connection string (pgvector backend).
	DSN string

	// URL is the Chroma server address (chroma backend).
	URL string

	// Collection is the table or collection name for remote backends.
	Collection string
}

// ServerSettings holds HTTP server configuration.
type ServerSettings struct {
	// Addr is the listen address.
	Addr string

	// MaxUploadBytes caps the size of an uploaded file.
	MaxUploadBytes int64

	// AllowedOrigin is the CORS origin of the web UI.
	AllowedOrigin string

	// WatchDir is an optional inbox directory ingested automatically.
	WatchDir string
}

// TimeoutSettings bounds the duration of core operations.
type TimeoutSettings struct {
	// Ingest bounds a whole document ingestion.
	Ingest time.Duration

	// Query bounds a whole question.
	Query time.Duration
}

// RetrySettings controls how transient provider errors are retried.
type RetrySettings struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Chunking  ChunkSettings
	Retrieval RetrievalSettings
	Index     IndexSettings
	Server    ServerSettings
	Timeouts  TimeoutSettings
	Retry     RetrySettings
}

// DefaultAppSettings returns settings with sensible defaults.
// AI providers default to a local Ollama instance.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:  AIProviderOllama,
			Model:     DefaultEmbeddingModels()[AIProviderOllama],
			BatchSize: 32,
		},
		LLM: LLMSettings{
			Provider:    AIProviderOllama,
			Model:       DefaultLLMModels()[AIProviderOllama],
			MaxTokens:   1024,
			Temperature: 0.2,
		},
		Chunking: ChunkSettings{
			Size:    1000,
			Overlap: 0.15,
		},
		Retrieval: RetrievalSettings{
			TopK:             3,
			MinSimilarity:    0.25,
			MaxContextChunks: 5,
		},
		Index: IndexSettings{
			Backend:    IndexBackendSQLite,
			Metric:     DistanceCosine,
			Collection: "pdf_documents",
		},
		Server: ServerSettings{
			Addr:           ":8000",
			MaxUploadBytes: 50 << 20,
			AllowedOrigin:  "http://localhost:3000",
		},
		Timeouts: TimeoutSettings{
			Ingest: 5 * time.Minute,
			Query:  60 * time.Second,
		},
		Retry: RetrySettings{
			MaxAttempts: 4,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    8 * time.Second,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderGemini,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "all-minilm",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "text-embedding-004",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
		AIProviderGemini:    "gemini-2.0-flash",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"text-embedding-004":   768,
		"gemini-embedding-001": 3072,
	}
}

// DefaultEmbeddingInputLimit applies to models missing from EmbeddingInputLimits.
const DefaultEmbeddingInputLimit = 6000

// EmbeddingInputLimits returns input limits in bytes for known models,
// assuming about three bytes per token.
func EmbeddingInputLimits() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  6000,
		"mxbai-embed-large": 1500,
		"all-minilm":        1500,
		// OpenAI models
		"text-embedding-3-small": 24000,
		"text-embedding-3-large": 24000,
		"text-embedding-ada-002": 24000,
		// Gemini models
		"text-embedding-004":   6000,
		"gemini-embedding-001": 6000,
	}
}
