package reliability

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/herald/internal/errs"
)

// BreakerState is the circuit breaker state machine position.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// BreakerConfig controls one named circuit breaker.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	RecoveryTimeout  time.Duration
	CallTimeout      time.Duration // Optional per-call timeout; 0 disables
	// MonitoredKinds are the error kinds counted as failures. A nil map
	// counts every tagged retryable transport-class error.
	MonitoredKinds map[errs.Kind]bool
}

// DefaultBreakerConfig matches the external-service protection profile.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		RecoveryTimeout:  60 * time.Second,
		MonitoredKinds: map[errs.Kind]bool{
			errs.KindGoogleNewsUnavailable: true,
			errs.KindRateLimitExceeded:     true,
			errs.KindExtractionTimeout:     true,
			errs.KindExtractionNetwork:     true,
			errs.KindDatabaseConnection:    true,
		},
	}
}

// BreakerMetrics is a point-in-time snapshot of breaker counters.
type BreakerMetrics struct {
	State           BreakerState `json:"state"`
	TotalCalls      int64        `json:"total_calls"`
	TotalSuccesses  int64        `json:"total_successes"`
	TotalFailures   int64        `json:"total_failures"`
	FailureCount    int          `json:"failure_count"`
	SuccessCount    int          `json:"success_count"`
	LastTransition  time.Time    `json:"last_transition"`
	LastFailureTime time.Time    `json:"last_failure_time"`
	NextRetryTime   time.Time    `json:"next_retry_time"`
}

// CircuitBreaker protects a single external service. State transitions are
// serialized internally; callers may be many. In half-open, at most one probe
// is in flight.
type CircuitBreaker struct {
	name   string
	config BreakerConfig
	logger arbor.ILogger

	mu              sync.Mutex
	state           BreakerState
	failureCount    int
	successCount    int
	totalCalls      int64
	totalSuccesses  int64
	totalFailures   int64
	lastTransition  time.Time
	lastFailureTime time.Time
	probeInFlight   bool

	onStateChange func(name string, from, to BreakerState)
}

func NewCircuitBreaker(name string, config BreakerConfig, logger arbor.ILogger) *CircuitBreaker {
	if config.MonitoredKinds == nil {
		config.MonitoredKinds = DefaultBreakerConfig().MonitoredKinds
	}
	return &CircuitBreaker{
		name:           name,
		config:         config,
		logger:         logger,
		state:          StateClosed,
		lastTransition: time.Now(),
	}
}

// OnStateChange registers a transition callback, used by the manager to emit
// opened/closed alerts. The callback runs outside the breaker lock.
func (cb *CircuitBreaker) OnStateChange(fn func(name string, from, to BreakerState)) {
	cb.mu.Lock()
	cb.onStateChange = fn
	cb.mu.Unlock()
}

// Call runs op through the breaker. In the open state it fails fast with a
// CircuitBreakerOpen error carrying the next retry time; the operation is not
// invoked.
func (cb *CircuitBreaker) Call(ctx context.Context, op func(ctx context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if cb.config.CallTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, cb.config.CallTimeout)
		defer cancel()
	}

	err := op(callCtx)

	// A per-call timeout counts as a monitored failure.
	if err != nil && cb.config.CallTimeout > 0 && callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		err = errs.ExtractionTimeout(cb.name, cb.config.CallTimeout).WithCause(err)
	}

	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()

	now := time.Now()
	cb.totalCalls++

	switch cb.state {
	case StateOpen:
		nextRetry := cb.lastFailureTime.Add(cb.config.RecoveryTimeout)
		if now.Before(nextRetry) {
			cb.mu.Unlock()
			return errs.CircuitBreakerOpen(cb.name, nextRetry)
		}
		cb.transition(StateHalfOpen)
		cb.probeInFlight = true
		cb.mu.Unlock()
		return nil
	case StateHalfOpen:
		if cb.probeInFlight {
			nextRetry := cb.lastFailureTime.Add(cb.config.RecoveryTimeout)
			cb.mu.Unlock()
			return errs.CircuitBreakerOpen(cb.name, nextRetry)
		}
		cb.probeInFlight = true
		cb.mu.Unlock()
		return nil
	default:
		cb.mu.Unlock()
		return nil
	}
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()

	if cb.state == StateHalfOpen {
		cb.probeInFlight = false
	}

	if err == nil {
		cb.totalSuccesses++
		switch cb.state {
		case StateHalfOpen:
			cb.successCount++
			if cb.successCount >= cb.config.SuccessThreshold {
				cb.failureCount = 0
				cb.successCount = 0
				cb.transition(StateClosed)
			}
		case StateClosed:
			cb.failureCount = 0
		}
		cb.mu.Unlock()
		return
	}

	// Unmonitored error kinds pass through without counting.
	if !cb.config.MonitoredKinds[errs.KindOf(err)] {
		cb.mu.Unlock()
		return
	}

	cb.totalFailures++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.successCount = 0
		cb.transition(StateOpen)
	}

	cb.mu.Unlock()
}

// transition changes state and schedules the callback. Must hold cb.mu.
func (cb *CircuitBreaker) transition(to BreakerState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.lastTransition = time.Now()

	cb.logger.Info().
		Str("breaker", cb.name).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Circuit breaker state transition")

	if cb.onStateChange != nil {
		fn := cb.onStateChange
		go fn(cb.name, from, to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Metrics returns a snapshot of breaker counters.
func (cb *CircuitBreaker) Metrics() BreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerMetrics{
		State:           cb.state,
		TotalCalls:      cb.totalCalls,
		TotalSuccesses:  cb.totalSuccesses,
		TotalFailures:   cb.totalFailures,
		FailureCount:    cb.failureCount,
		SuccessCount:    cb.successCount,
		LastTransition:  cb.lastTransition,
		LastFailureTime: cb.lastFailureTime,
		NextRetryTime:   cb.lastFailureTime.Add(cb.config.RecoveryTimeout),
	}
}
