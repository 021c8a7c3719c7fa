package reliability

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/herald/internal/errs"
)

// RetryConfig defines retry behavior with exponential backoff and jitter.
type RetryConfig struct {
	MaxRetries       int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	ExponentialBase  float64
	JitterRange      float64 // in [0,1]; delay is multiplied by (1 ± JitterRange)
	RetryableKinds   map[errs.Kind]bool
	NonRetryableKinds map[errs.Kind]bool
}

// Predefined configurations for the three external call classes.
func ExternalServiceConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        300 * time.Second,
		ExponentialBase: 2.0,
		JitterRange:     0.5,
	}
}

func DatabaseConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		BaseDelay:       500 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		JitterRange:     0.3,
	}
}

func RateLimitConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      5,
		BaseDelay:       60 * time.Second,
		MaxDelay:        3600 * time.Second,
		ExponentialBase: 1.5,
		JitterRange:     0.2,
	}
}

// minDelay floors every computed backoff.
const minDelay = 100 * time.Millisecond

// Retrier runs operations with bounded retries. It is stateless and safe for
// concurrent use; attempt counters are local to each Run call.
type Retrier struct {
	logger arbor.ILogger
}

func NewRetrier(logger arbor.ILogger) *Retrier {
	return &Retrier{logger: logger}
}

// Run executes op, retrying on retryable errors per cfg. Attempt 0 is the
// initial call; total attempts never exceed cfg.MaxRetries + 1. The last
// error is returned when all attempts fail.
func (r *Retrier) Run(ctx context.Context, cfg RetryConfig, cid string, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		kind := errs.KindOf(lastErr)
		if !r.shouldRetry(cfg, attempt, lastErr) {
			r.logger.Debug().
				Str("correlation_id", cid).
				Int("attempt", attempt+1).
				Str("error_kind", string(kind)).
				Err(lastErr).
				Msg("Non-retryable error, failing immediately")
			return lastErr
		}

		delay := r.delayFor(cfg, attempt, lastErr)
		r.logger.Warn().
			Str("correlation_id", cid).
			Int("attempt", attempt+1).
			Int("max_retries", cfg.MaxRetries).
			Str("error_kind", string(kind)).
			Dur("backoff", delay).
			Err(lastErr).
			Msg("Retrying after backoff")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	r.logger.Warn().
		Str("correlation_id", cid).
		Int("max_retries", cfg.MaxRetries).
		Err(lastErr).
		Msg("All retry attempts exhausted")

	return lastErr
}

// shouldRetry decides using, in order: remaining attempts, the non-retryable
// kind set, the retryable kind set, then the error's own retryable tag.
func (r *Retrier) shouldRetry(cfg RetryConfig, attempt int, err error) bool {
	if attempt >= cfg.MaxRetries {
		return false
	}

	kind := errs.KindOf(err)
	if cfg.NonRetryableKinds[kind] {
		return false
	}
	if cfg.RetryableKinds[kind] {
		return true
	}
	return errs.IsRetryable(err)
}

// delayFor computes min(max_delay, base * exponential_base^attempt) with
// jitter, floored at 100ms. A retry_after hint on the error overrides the
// computed delay.
func (r *Retrier) delayFor(cfg RetryConfig, attempt int, err error) time.Duration {
	if hint, ok := errs.RetryAfter(err); ok {
		return hint
	}

	delay := float64(cfg.BaseDelay) * math.Pow(cfg.ExponentialBase, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.JitterRange > 0 {
		delay *= 1 + cfg.JitterRange*(rand.Float64()*2-1)
	}

	if delay < float64(minDelay) {
		delay = float64(minDelay)
	}

	return time.Duration(delay)
}
