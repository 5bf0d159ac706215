package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

type mockEmbedding struct {
	calls atomic.Int32
	err   error
}

func (m *mockEmbedding) Embed(_ context.Context, _ string) ([]float32, error) {
	m.calls.Add(1)
	return []float32{1}, m.err
}

func (m *mockEmbedding) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.calls.Add(1)
	return make([][]float32, len(texts)), m.err
}

func (m *mockEmbedding) MaxBatchSize() int { return 8 }
func (m *mockEmbedding) Dimensions() int { return 1 }
func (m *mockEmbedding) ModelName() string { return "mock" }
func (m *mockEmbedding) Ping(_ context.Context) error { return nil }
func (m *mockEmbedding) Close() error { return nil }

type mockLLM struct {
	calls atomic.Int32
}

func (m *mockLLM) Generate(_ context.Context, _ string, _ driven.GenerateOptions) (string, error) {
	m.calls.Add(1)
	return "ok", nil
}

func (m *mockLLM) ModelName() string { return "mock" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error { return nil }

func TestNewLimiter_Disabled(t *testing.T) {
	assert.Nil(t, NewLimiter(Config{}))
	assert.Nil(t, NewLimiter(Config{RequestsPerSecond: -1}))
}

func TestWrapEmbedding_DisabledReturnsInner(t *testing.T) {
	inner := &mockEmbedding{}
	assert.Same(t, inner, WrapEmbedding(inner, Config{}))
}

func TestWrapEmbedding_Delegates(t *testing.T) {
	inner := &mockEmbedding{}
	svc := WrapEmbedding(inner, Config{RequestsPerSecond: 1000, BurstSize: 10})

	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	_, err = svc.Embed(context.Background(), "a")
	require.NoError(t, err)

	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, 8, svc.MaxBatchSize())
	assert.Equal(t, "mock", svc.ModelName())
}

func TestWrapLLM_Delegates(t *testing.T) {
	inner := &mockLLM{}
	svc := WrapLLM(inner, Config{RequestsPerSecond: 1000})

	out, err := svc.Generate(context.Background(), "p", driven.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 0.001, BurstSize: 1})
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx))
}

func TestLimiter_ObserveStartsCooldown(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 1000, BurstSize: 10, Cooldown: time.Hour})

	l.Observe(fmt.Errorf("other: %w", domain.ErrEmbeddingService))
	require.NoError(t, l.Wait(context.Background()))

	l.Observe(fmt.Errorf("quota: %w", domain.ErrRateLimited))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
}

func TestWrapEmbedding_RateLimitedErrorPassesThrough(t *testing.T) {
	inner := &mockEmbedding{err: fmt.Errorf("429: %w", domain.ErrRateLimited)}
	svc := WrapEmbedding(inner, Config{RequestsPerSecond: 1000, Cooldown: time.Millisecond})

	_, err := svc.EmbedBatch(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}
