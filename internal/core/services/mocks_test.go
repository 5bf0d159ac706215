package services

import (
	"context"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// mockExtractor returns fixed pages or a fixed error.
type mockExtractor struct {
	pages []domain.Page
	err   error
	calls int
}

func (m *mockExtractor) Extract(_ context.Context, _ []byte) ([]domain.Page, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.pages, nil
}

// pageChunker yields one chunk per non-blank page.
type pageChunker struct{}

func (pageChunker) Chunks(filename string, page domain.Page) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		if page.IsBlank() {
			return
		}
		yield(domain.Chunk{
			ID:       domain.ChunkID(filename, page.Number, 0),
			Filename: filename,
			Page:     page.Number,
			Text:     page.Text,
			End:      len(page.Text),
		})
	}
}

// keywordEmbedding maps text onto a small vocabulary so that similarity is predictable.
// Each dimension counts one vocabulary word; a constant component keeps vectors non-zero.
type keywordEmbedding struct {
	mu        sync.Mutex
	vocab     []string
	model     string
	batchSize int
	batches   [][]string
	embeds    []string
	failures  []error
	closed    bool
}

func newKeywordEmbedding(vocab ...string) *keywordEmbedding {
	return &keywordEmbedding{vocab: vocab, model: "test-embed", batchSize: 16}
}

func (m *keywordEmbedding) vector(text string) []float32 {
	lower := strings.ToLower(text)
	vec := make([]float32, len(m.vocab)+1)
	for i, w := range m.vocab {
		vec[i] = float32(strings.Count(lower, w))
	}
	vec[len(m.vocab)] = 0.01
	return vec
}

// nextFailure pops the next scripted failure, if any.
func (m *keywordEmbedding) nextFailure() error {
	if len(m.failures) == 0 {
		return nil
	}
	err := m.failures[0]
	m.failures = m.failures[1:]
	return err
}

func (m *keywordEmbedding) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeds = append(m.embeds, text)
	if err := m.nextFailure(); err != nil {
		return nil, err
	}
	return m.vector(text), nil
}

func (m *keywordEmbedding) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, texts)
	if err := m.nextFailure(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *keywordEmbedding) MaxBatchSize() int { return m.batchSize }
func (m *keywordEmbedding) Dimensions() int { return len(m.vocab) + 1 }
func (m *keywordEmbedding) ModelName() string { return m.model }
func (m *keywordEmbedding) Ping(_ context.Context) error {
	return nil
}
func (m *keywordEmbedding) Close() error {
	m.closed = true
	return nil
}

// mockLLM records prompts and replays scripted results.
type mockLLM struct {
	mu       sync.Mutex
	answer   string
	failures []error
	prompts  []string
	opts     []driven.GenerateOptions
}

func (m *mockLLM) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		if err != nil {
			return "", err
		}
	}
	return m.answer, nil
}

func (m *mockLLM) ModelName() string { return "test-llm" }
func (m *mockLLM) Ping(_ context.Context) error {
	return nil
}
func (m *mockLLM) Close() error { return nil }

func (m *mockLLM) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// failingIndex wraps an index and fails Upsert or Search on demand.
type failingIndex struct {
	driven.VectorIndex
	upsertErr error
	searchErr error
	partial   bool
}

func (f *failingIndex) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	if f.upsertErr == nil {
		return f.VectorIndex.Upsert(ctx, entries)
	}
	if f.partial && len(entries) > 1 {
		// Simulate a backend that wrote part of the batch before failing.
		if err := f.VectorIndex.Upsert(ctx, entries[:1]); err != nil {
			return err
		}
	}
	return f.upsertErr
}

func (f *failingIndex) Search(ctx context.Context, query []float32, k int) ([]domain.ScoredChunk, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.VectorIndex.Search(ctx, query, k)
}

// fastRetry retries without sleeping.
func fastRetry(attempts int) RetryPolicy {
	p := RetryPolicy{MaxAttempts: attempts}
	p.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return p
}

// memoryPromptStore serves prompts from a map.
type memoryPromptStore struct {
	prompts map[string]string
	err     error
}

func (m *memoryPromptStore) Load(name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.prompts[name], nil
}

func (m *memoryPromptStore) Reload() {}
