package services

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider  = "embedding.provider"
	keyEmbedModel     = "embedding.model"
	keyEmbedBaseURL   = "embedding.base_url"
	keyEmbedAPIKey    = "embedding.api_key"
	keyEmbedBatchSize = "embedding.batch_size"
	keyEmbedRPS       = "embedding.requests_per_second"
	keyLLMProvider    = "llm.provider"
	keyLLMModel       = "llm.model"
	keyLLMBaseURL     = "llm.base_url"
	keyLLMAPIKey      = "llm.api_key"
	keyLLMMaxTokens   = "llm.max_tokens"
	keyLLMTemperature = "llm.temperature"
	keyLLMRPS         = "llm.requests_per_second"
	keyChunkSize      = "chunking.size"
	keyChunkOverlap   = "chunking.overlap"
	keyTopK           = "retrieval.top_k"
	keyMinSimilarity  = "retrieval.min_similarity"
	keyMaxContext     = "retrieval.max_context_chunks"
	keyIndexBackend   = "index.backend"
	keyIndexMetric    = "index.metric"
	keyIndexDSN       = "index.dsn"
	keyIndexURL       = "index.url"
	keyIndexColl      = "index.collection"
	keyServerAddr     = "server.addr"
	keyServerMaxBytes = "server.max_upload_bytes"
	keyServerOrigin   = "server.allowed_origin"
	keyServerWatchDir = "server.watch_dir"
	keyIngestTimeout  = "timeouts.ingest"
	keyQueryTimeout   = "timeouts.query"
	keyRetryAttempts  = "retry.max_attempts"
	keyRetryBase      = "retry.base_delay"
	keyRetryMax       = "retry.max_delay"
)

// envOverrides maps environment variables onto config keys.
// Environment values take precedence over the config file.
var envOverrides = map[string]string{
	"DOCQA_EMBEDDING_PROVIDER": keyEmbedProvider,
	"DOCQA_EMBEDDING_MODEL":    keyEmbedModel,
	"DOCQA_EMBEDDING_BASE_URL": keyEmbedBaseURL,
	"DOCQA_EMBEDDING_API_KEY":  keyEmbedAPIKey,
	"DOCQA_LLM_PROVIDER":       keyLLMProvider,
	"DOCQA_LLM_MODEL":          keyLLMModel,
	"DOCQA_LLM_BASE_URL":       keyLLMBaseURL,
	"DOCQA_LLM_API_KEY":        keyLLMAPIKey,
	"DOCQA_INDEX_BACKEND":      keyIndexBackend,
	"DOCQA_PG_DSN":             keyIndexDSN,
	"DOCQA_CHROMA_URL":         keyIndexURL,
	"DOCQA_ADDR":               keyServerAddr,
	"DOCQA_WATCH_DIR":          keyServerWatchDir,
}

// providerKeyEnv lists the conventional API key variables per provider,
// consulted when no key is configured explicitly.
var providerKeyEnv = map[domain.AIProvider][]string{
	domain.AIProviderOpenAI:    {"OPENAI_API_KEY"},
	domain.AIProviderAnthropic: {"ANTHROPIC_API_KEY"},
	domain.AIProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
// The aiValidator is optional (can be nil).
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get resolves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	embedProvider := s.getProvider(keyEmbedProvider, d.Embedding.Provider)
	llmProvider := s.getProvider(keyLLMProvider, d.LLM.Provider)

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:          embedProvider,
			Model:             s.getString(keyEmbedModel, defaultModel(domain.DefaultEmbeddingModels(), embedProvider, "")),
			BaseURL:           s.getString(keyEmbedBaseURL, ""), // No default - empty is valid for cloud providers
			APIKey:            s.apiKey(keyEmbedAPIKey, embedProvider),
			BatchSize:         s.getInt(keyEmbedBatchSize, d.Embedding.BatchSize),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, d.Embedding.RequestsPerSecond),
		},
		LLM: domain.LLMSettings{
			Provider:          llmProvider,
			Model:             s.getString(keyLLMModel, defaultModel(domain.DefaultLLMModels(), llmProvider, "")),
			BaseURL:           s.getString(keyLLMBaseURL, ""),
			APIKey:            s.apiKey(keyLLMAPIKey, llmProvider),
			MaxTokens:         s.getInt(keyLLMMaxTokens, d.LLM.MaxTokens),
			Temperature:       s.getFloat(keyLLMTemperature, d.LLM.Temperature),
			RequestsPerSecond: s.getFloat(keyLLMRPS, d.LLM.RequestsPerSecond),
		},
		Chunking: domain.ChunkSettings{
			Size:    s.getInt(keyChunkSize, d.Chunking.Size),
			Overlap: s.getFloat(keyChunkOverlap, d.Chunking.Overlap),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:             s.getInt(keyTopK, d.Retrieval.TopK),
			MinSimilarity:    s.getFloat(keyMinSimilarity, d.Retrieval.MinSimilarity),
			MaxContextChunks: s.getInt(keyMaxContext, d.Retrieval.MaxContextChunks),
		},
		Index: domain.IndexSettings{
			Backend:    s.getBackend(d.Index.Backend),
			Metric:     s.getMetric(d.Index.Metric),
			DSN:        s.getString(keyIndexDSN, d.Index.DSN),
			URL:        s.getString(keyIndexURL, d.Index.URL),
			Collection: s.getString(keyIndexColl, d.Index.Collection),
		},
		Server: domain.ServerSettings{
			Addr:           s.getString(keyServerAddr, d.Server.Addr),
			MaxUploadBytes: int64(s.getInt(keyServerMaxBytes, int(d.Server.MaxUploadBytes))),
			AllowedOrigin:  s.getString(keyServerOrigin, d.Server.AllowedOrigin),
			WatchDir:       s.getString(keyServerWatchDir, d.Server.WatchDir),
		},
		Timeouts: domain.TimeoutSettings{
			Ingest: s.getDuration(keyIngestTimeout, d.Timeouts.Ingest),
			Query:  s.getDuration(keyQueryTimeout, d.Timeouts.Query),
		},
		Retry: domain.RetrySettings{
			MaxAttempts: s.getInt(keyRetryAttempts, d.Retry.MaxAttempts),
			BaseDelay:   s.getDuration(keyRetryBase, d.Retry.BaseDelay),
			MaxDelay:    s.getDuration(keyRetryMax, d.Retry.MaxDelay),
		},
	}

	return settings, nil
}

// Save persists application settings.
// API keys are only written when set so that keys supplied by the
// environment are not copied into the config file.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyEmbedRPS, settings.Embedding.RequestsPerSecond},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMMaxTokens, settings.LLM.MaxTokens},
		{keyLLMTemperature, settings.LLM.Temperature},
		{keyLLMRPS, settings.LLM.RequestsPerSecond},
		{keyChunkSize, settings.Chunking.Size},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyTopK, settings.Retrieval.TopK},
		{keyMinSimilarity, settings.Retrieval.MinSimilarity},
		{keyMaxContext, settings.Retrieval.MaxContextChunks},
		{keyIndexBackend, settings.Index.Backend.String()},
		{keyIndexMetric, settings.Index.Metric.String()},
		{keyIndexColl, settings.Index.Collection},
		{keyServerAddr, settings.Server.Addr},
		{keyServerMaxBytes, settings.Server.MaxUploadBytes},
		{keyServerOrigin, settings.Server.AllowedOrigin},
		{keyServerWatchDir, settings.Server.WatchDir},
		{keyIngestTimeout, settings.Timeouts.Ingest.String()},
		{keyQueryTimeout, settings.Timeouts.Query.String()},
		{keyRetryAttempts, settings.Retry.MaxAttempts},
		{keyRetryBase, settings.Retry.BaseDelay.String()},
		{keyRetryMax, settings.Retry.MaxDelay.String()},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if settings.LLM.APIKey != "" {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if !provider.SupportsEmbeddings() {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if apiKey == "" {
		apiKey = settings.Embedding.APIKey
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = defaultModel(domain.DefaultEmbeddingModels(), provider, model)
	settings.Embedding.BaseURL = baseURLFor(provider, settings.Embedding.BaseURL)
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if apiKey == "" {
		apiKey = settings.LLM.APIKey
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = defaultModel(domain.DefaultLLMModels(), provider, model)
	settings.LLM.BaseURL = baseURLFor(provider, settings.LLM.BaseURL)
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that the current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q is not configured",
			domain.ErrEmbeddingUnavailable, settings.Embedding.Provider)
	}
	if !settings.LLM.IsConfigured() {
		return fmt.Errorf("%w: LLM provider %q is not configured",
			domain.ErrLLMUnavailable, settings.LLM.Provider)
	}
	if limit := settings.Embedding.InputLimit(); settings.Chunking.Size > limit {
		return fmt.Errorf("%w: chunking.size %d exceeds the %d byte input limit of %s",
			domain.ErrInvalidInput, settings.Chunking.Size, limit, settings.Embedding.Model)
	}
	if settings.Chunking.Overlap < 0 || settings.Chunking.Overlap > 0.5 {
		return fmt.Errorf("%w: chunking.overlap must be within [0, 0.5], got %v",
			domain.ErrInvalidInput, settings.Chunking.Overlap)
	}
	switch settings.Index.Backend {
	case domain.IndexBackendPgvector:
		if settings.Index.DSN == "" {
			return fmt.Errorf("%w: index.dsn is required for the pgvector backend", domain.ErrInvalidInput)
		}
	case domain.IndexBackendChroma:
		if settings.Index.URL == "" {
			return fmt.Errorf("%w: index.url is required for the chroma backend", domain.ErrInvalidInput)
		}
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with environment overrides and defaults.

// lookup returns the raw value for key, preferring the environment.
func (s *SettingsService) lookup(key string) (any, bool) {
	for env, k := range envOverrides {
		if k != key {
			continue
		}
		if v := s.getenv(env); v != "" {
			return v, true
		}
	}
	return s.configStore.Get(key)
}

func (s *SettingsService) getString(key, defaultVal string) string {
	val, ok := s.lookup(key)
	if !ok {
		return defaultVal
	}
	str, ok := val.(string)
	if !ok || str == "" {
		return defaultVal
	}
	return str
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	raw := s.configStore.GetString(key)
	if raw == "" {
		if secs := s.configStore.GetInt(key); secs > 0 {
			return time.Duration(secs) * time.Second
		}
		return defaultVal
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		if secs, convErr := strconv.Atoi(raw); convErr == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.getString(key, ""))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.IndexBackend) domain.IndexBackend {
	backend := domain.IndexBackend(s.getString(keyIndexBackend, ""))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func (s *SettingsService) getMetric(defaultVal domain.DistanceMetric) domain.DistanceMetric {
	metric := domain.DistanceMetric(s.getString(keyIndexMetric, ""))
	if !metric.IsValid() {
		return defaultVal
	}
	return metric
}

// apiKey resolves the API key from config, then the provider's conventional variables.
func (s *SettingsService) apiKey(key string, provider domain.AIProvider) string {
	if v := s.getString(key, ""); v != "" {
		return v
	}
	for _, env := range providerKeyEnv[provider] {
		if v := s.getenv(env); v != "" {
			return v
		}
	}
	return ""
}

// defaultModel returns model, or the provider's default model, or fallback.
func defaultModel(defaults map[domain.AIProvider]string, provider domain.AIProvider, model string) string {
	if model != "" {
		return model
	}
	if m, ok := defaults[provider]; ok {
		return m
	}
	return model
}

// baseURLFor keeps a configured base URL for local providers and clears it for cloud ones.
func baseURLFor(provider domain.AIProvider, current string) string {
	if !provider.IsLocal() {
		return ""
	}
	if current == "" {
		return "http://localhost:11434"
	}
	return current
}
