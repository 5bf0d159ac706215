package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// recordingPolicy returns a policy that records delays instead of sleeping.
func recordingPolicy(attempts int, delays *[]time.Duration) RetryPolicy {
	p := RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    400 * time.Millisecond,
	}
	p.jitter = func(ceiling time.Duration) time.Duration { return ceiling }
	p.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
	return p
}

func TestRetryPolicy_SucceedsAfterTransientErrors(t *testing.T) {
	var delays []time.Duration
	p := recordingPolicy(5, &delays)

	calls := 0
	err := p.Do(context.Background(), "embed", func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("openai: %w", domain.ErrRateLimited)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)
}

func TestRetryPolicy_ExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	p := recordingPolicy(4, &delays)

	calls := 0
	err := p.Do(context.Background(), "embed", func(context.Context) error {
		calls++
		return fmt.Errorf("ollama: %w", domain.ErrEmbeddingService)
	})

	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}, delays)
}

func TestRetryPolicy_DelayCapped(t *testing.T) {
	var delays []time.Duration
	p := recordingPolicy(6, &delays)

	_ = p.Do(context.Background(), "generate", func(context.Context) error {
		return domain.ErrGeneration
	})

	require.Len(t, delays, 5)
	for _, d := range delays {
		assert.LessOrEqual(t, d, p.MaxDelay)
	}
}

func TestRetryPolicy_NonRetryableStopsImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"dimension mismatch", domain.ErrDimensionMismatch},
		{"invalid input", domain.ErrInvalidInput},
		{"plain error", errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var delays []time.Duration
			p := recordingPolicy(5, &delays)

			calls := 0
			err := p.Do(context.Background(), "op", func(context.Context) error {
				calls++
				return tt.err
			})

			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, calls)
			assert.Empty(t, delays)
		})
	}
}

func TestRetryPolicy_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}

	calls := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Do(ctx, "embed", func(context.Context) error {
			calls++
			return domain.ErrRateLimited
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, domain.ErrRateLimited)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not stop on cancellation")
	}
}

func TestRetryPolicy_CancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := DefaultRetryPolicy().Do(ctx, "op", func(context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRetryPolicyFromSettings(t *testing.T) {
	p := RetryPolicyFromSettings(domain.RetrySettings{MaxAttempts: 2})
	assert.Equal(t, 2, p.MaxAttempts)
	assert.Equal(t, DefaultBaseDelay, p.BaseDelay)
	assert.Equal(t, DefaultMaxDelay, p.MaxDelay)

	assert.Equal(t, 1, NoRetry().MaxAttempts)
}
