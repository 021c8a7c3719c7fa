package reliability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/herald/internal/common"
	"github.com/ternarybob/herald/internal/errs"
)

// fastConfig keeps test backoffs tiny.
func fastConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:      maxRetries,
		BaseDelay:       time.Millisecond,
		MaxDelay:        10 * time.Millisecond,
		ExponentialBase: 2.0,
	}
}

func TestRetrier_SucceedsFirstAttempt(t *testing.T) {
	r := NewRetrier(common.GetLogger())

	calls := 0
	err := r.Run(context.Background(), fastConfig(3), "cid", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_RetriesRetryableErrors(t *testing.T) {
	r := NewRetrier(common.GetLogger())

	calls := 0
	start := time.Now()
	// ExtractionNetwork carries no retry_after hint, so the configured
	// millisecond backoff applies and the test stays fast.
	err := r.Run(context.Background(), fastConfig(3), "cid", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errs.ExtractionNetwork("https://x", nil).WithDetail("attempt", calls)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Less(t, time.Since(start), 5*time.Second, "hint-free errors must not inherit long retry waits")
}

func TestRetrier_ExhaustsAttempts(t *testing.T) {
	r := NewRetrier(common.GetLogger())

	calls := 0
	err := r.Run(context.Background(), fastConfig(2), "cid", func(ctx context.Context) error {
		calls++
		return errs.ExtractionNetwork("https://x", nil)
	})

	require.Error(t, err)
	// MaxRetries=2 means three attempts total.
	assert.Equal(t, 3, calls)
	assert.Equal(t, errs.KindExtractionNetwork, errs.KindOf(err))
}

func TestRetrier_NonRetryableFailsImmediately(t *testing.T) {
	r := NewRetrier(common.GetLogger())

	calls := 0
	err := r.Run(context.Background(), fastConfig(3), "cid", func(ctx context.Context) error {
		calls++
		return errs.ExtractionParsing("https://x", "broken markup")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_KindOverrides(t *testing.T) {
	r := NewRetrier(common.GetLogger())

	cfg := fastConfig(3)
	cfg.NonRetryableKinds = map[errs.Kind]bool{errs.KindGoogleNewsUnavailable: true}

	calls := 0
	err := r.Run(context.Background(), cfg, "cid", func(ctx context.Context) error {
		calls++
		return errs.GoogleNewsUnavailable("down")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-retryable kind set must win over the error's retryable tag")
}

func TestRetrier_ContextCancelStopsBackoff(t *testing.T) {
	r := NewRetrier(common.GetLogger())

	cfg := RetryConfig{
		MaxRetries:      3,
		BaseDelay:       time.Hour,
		MaxDelay:        time.Hour,
		ExponentialBase: 2.0,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := r.Run(ctx, cfg, "cid", func(ctx context.Context) error {
		return errs.GoogleNewsUnavailable("down")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelayFor(t *testing.T) {
	r := NewRetrier(common.GetLogger())

	t.Run("floors at 100ms", func(t *testing.T) {
		cfg := RetryConfig{BaseDelay: time.Millisecond, MaxDelay: time.Second, ExponentialBase: 2.0}
		delay := r.delayFor(cfg, 0, errs.ExtractionNetwork("u", nil))
		assert.GreaterOrEqual(t, delay, minDelay)
	})

	t.Run("caps at max delay", func(t *testing.T) {
		cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 2 * time.Second, ExponentialBase: 10.0}
		delay := r.delayFor(cfg, 5, errs.ExtractionNetwork("u", nil))
		assert.LessOrEqual(t, delay, 2*time.Second)
	})

	t.Run("retry_after hint overrides computed backoff", func(t *testing.T) {
		cfg := fastConfig(3)
		delay := r.delayFor(cfg, 0, errs.RateLimitExceeded(90*time.Second))
		assert.Equal(t, 90*time.Second, delay)
	})

	t.Run("jitter stays in range", func(t *testing.T) {
		cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: time.Minute, ExponentialBase: 2.0, JitterRange: 0.5}
		for i := 0; i < 50; i++ {
			delay := r.delayFor(cfg, 0, errs.ExtractionNetwork("u", nil))
			assert.GreaterOrEqual(t, delay, 500*time.Millisecond)
			assert.LessOrEqual(t, delay, 1500*time.Millisecond)
		}
	})
}
