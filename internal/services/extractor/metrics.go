package extractor

import "sync"

// Outcome labels for extraction metrics.
const (
	outcomeStandard        = "standard"
	outcomeBrowserFallback = "browser_fallback"
	outcomeBatchBrowser    = "batch_browser"
	outcomeBatchNoRedirect = "batch_no_redirect"
	outcomeFailed          = "failed"
)

// Metrics counts extraction outcomes by path so operators can see which
// extraction strategies carry the load and which are rotting.
type Metrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func newMetrics() *Metrics {
	return &Metrics{outcomes: make(map[string]int)}
}

func (m *Metrics) record(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

// Snapshot returns a copy of the outcome counters.
func (m *Metrics) Snapshot() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.outcomes))
	for k, v := range m.outcomes {
		out[k] = v
	}
	return out
}
