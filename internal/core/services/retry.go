package services

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 8 * time.Second
)

// RetryPolicy retries transient provider failures with capped exponential
// backoff and full jitter. Adapters never retry on their own; services wrap
// each provider call in a policy.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// BaseDelay is the backoff ceiling before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the backoff ceiling.
	MaxDelay time.Duration

	// Retryable classifies errors. Defaults to domain.IsRetryable.
	Retryable func(error) bool

	// sleep waits for d or until ctx is done. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	// jitter picks a delay in [0, ceiling]. Replaced in tests.
	jitter func(ceiling time.Duration) time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// RetryPolicyFromSettings builds a policy from settings, falling back to defaults.
func RetryPolicyFromSettings(s domain.RetrySettings) RetryPolicy {
	p := DefaultRetryPolicy()
	if s.MaxAttempts > 0 {
		p.MaxAttempts = s.MaxAttempts
	}
	if s.BaseDelay > 0 {
		p.BaseDelay = s.BaseDelay
	}
	if s.MaxDelay > 0 {
		p.MaxDelay = s.MaxDelay
	}
	return p
}

// NoRetry returns a policy that makes a single attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted or ctx is done. The last error is returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	retryable := p.Retryable
	if retryable == nil {
		retryable = domain.IsRetryable
	}

	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= attempts || !retryable(err) || ctx.Err() != nil {
			return err
		}

		delay := p.delay(attempt)
		logger.Debug("%s: attempt %d/%d failed (%v), retrying in %s", op, attempt, attempts, err, delay)
		if sleepErr := p.wait(ctx, delay); sleepErr != nil {
			return err
		}
	}
}

// delay returns the jittered backoff after the given failed attempt.
func (p RetryPolicy) delay(attempt int) time.Duration {
	ceiling := p.BaseDelay
	for i := 1; i < attempt && ceiling < p.MaxDelay; i++ {
		ceiling *= 2
	}
	if p.MaxDelay > 0 && ceiling > p.MaxDelay {
		ceiling = p.MaxDelay
	}
	if ceiling <= 0 {
		return 0
	}
	if p.jitter != nil {
		return p.jitter(ceiling)
	}
	return rand.N(ceiling + 1)
}

func (p RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
