package reliability

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/herald/internal/interfaces"
	"github.com/ternarybob/herald/internal/models"
)

// BreakerManager keeps one circuit breaker per service name and emits
// opened/closed alerts on transitions.
type BreakerManager struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	logger   arbor.ILogger
	alerts   interfaces.AlertSink
}

func NewBreakerManager(logger arbor.ILogger, alerts interfaces.AlertSink) *BreakerManager {
	return &BreakerManager{
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger,
		alerts:   alerts,
	}
}

// Get returns the breaker for a service, creating it with cfg on first use.
func (m *BreakerManager) Get(name string, cfg BreakerConfig) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, ok := m.breakers[name]; ok {
		return cb
	}

	cb := NewCircuitBreaker(name, cfg, m.logger)
	cb.OnStateChange(m.handleTransition)
	m.breakers[name] = cb
	return cb
}

// CallWithBreaker wraps op with the named breaker.
func (m *BreakerManager) CallWithBreaker(ctx context.Context, name string, cfg BreakerConfig, cid string, op func(ctx context.Context) error) error {
	cb := m.Get(name, cfg)
	err := cb.Call(ctx, op)
	if err != nil {
		m.logger.Debug().
			Str("correlation_id", cid).
			Str("breaker", name).
			Str("state", string(cb.State())).
			Err(err).
			Msg("Breaker-wrapped call failed")
	}
	return err
}

// Metrics returns per-breaker snapshots keyed by service name.
func (m *BreakerManager) Metrics() map[string]BreakerMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]BreakerMetrics, len(m.breakers))
	for name, cb := range m.breakers {
		out[name] = cb.Metrics()
	}
	return out
}

func (m *BreakerManager) handleTransition(name string, from, to BreakerState) {
	if m.alerts == nil {
		return
	}

	switch to {
	case StateOpen:
		m.alerts.Dispatch(models.Alert{
			Type:        models.AlertCircuitBreakerOpened,
			Severity:    models.SeverityHigh,
			Message:     "circuit breaker opened for " + name,
			ServiceName: name,
			Details:     map[string]interface{}{"from": string(from)},
			Timestamp:   time.Now(),
		})
	case StateClosed:
		m.alerts.Dispatch(models.Alert{
			Type:        models.AlertCircuitBreakerClosed,
			Severity:    models.SeverityLow,
			Message:     "circuit breaker closed for " + name,
			ServiceName: name,
			Details:     map[string]interface{}{"from": string(from)},
			Timestamp:   time.Now(),
		})
	}
}
