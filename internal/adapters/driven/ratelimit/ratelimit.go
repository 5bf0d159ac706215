// Package ratelimit throttles calls to embedding and LLM providers.
//
// A token bucket paces requests. When a provider rejects a call with
// domain.ErrRateLimited the limiter also pauses every caller for a
// cool-down window, so concurrent workers back off together.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// DefaultCooldown is the pause applied after a quota rejection.
const DefaultCooldown = 5 * time.Second

// Config holds rate limiting configuration.
type Config struct {
	// RequestsPerSecond is the sustained rate limit. Zero or less disables throttling.
	RequestsPerSecond float64

	// BurstSize is the maximum burst size (default: 1).
	BurstSize int

	// Cooldown is the pause after a quota rejection (default: 5s).
	Cooldown time.Duration
}

// Limiter provides rate limiting for provider requests.
type Limiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	retryAt  time.Time
	cooldown time.Duration
	now      func() time.Time
}

// NewLimiter creates a limiter. It returns nil when throttling is disabled.
func NewLimiter(cfg Config) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		cooldown: cfg.Cooldown,
		now:      time.Now,
	}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any cool-down set by Observe.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if wait := retryAt.Sub(l.now()); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return l.limiter.Wait(ctx)
}

// Observe starts a cool-down when err reports a quota rejection.
func (l *Limiter) Observe(err error) {
	if !errors.Is(err, domain.ErrRateLimited) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.retryAt = l.now().Add(l.cooldown)
}

// Embedding throttles an EmbeddingService.
type Embedding struct {
	driven.EmbeddingService
	limiter *Limiter
}

// Ensure Embedding implements the interface.
var _ driven.EmbeddingService = (*Embedding)(nil)

// WrapEmbedding returns svc throttled by cfg, or svc itself when throttling is disabled.
func WrapEmbedding(svc driven.EmbeddingService, cfg Config) driven.EmbeddingService {
	limiter := NewLimiter(cfg)
	if limiter == nil || svc == nil {
		return svc
	}
	return &Embedding{EmbeddingService: svc, limiter: limiter}
}

// Embed waits for a token, then embeds text.
func (e *Embedding) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	vec, err := e.EmbeddingService.Embed(ctx, text)
	e.limiter.Observe(err)
	return vec, err
}

// EmbedBatch waits for a token, then embeds the batch in one request.
func (e *Embedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	vecs, err := e.EmbeddingService.EmbedBatch(ctx, texts)
	e.limiter.Observe(err)
	return vecs, err
}

// LLM throttles an LLMService.
type LLM struct {
	driven.LLMService
	limiter *Limiter
}

// Ensure LLM implements the interface.
var _ driven.LLMService = (*LLM)(nil)

// WrapLLM returns svc throttled by cfg, or svc itself when throttling is disabled.
func WrapLLM(svc driven.LLMService, cfg Config) driven.LLMService {
	limiter := NewLimiter(cfg)
	if limiter == nil || svc == nil {
		return svc
	}
	return &LLM{LLMService: svc, limiter: limiter}
}

// Generate waits for a token, then generates.
func (l *LLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	out, err := l.LLMService.Generate(ctx, prompt, opts)
	l.limiter.Observe(err)
	return out, err
}
