package alerts

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/herald/internal/common"
	"github.com/ternarybob/herald/internal/interfaces"
	"github.com/ternarybob/herald/internal/models"
)

// Manager dispatches alerts through configured channels with per-type rules,
// a sliding one-hour rate limit per (type, service), and cooldowns.
type Manager struct {
	mu       sync.Mutex
	rules    map[models.AlertType]models.AlertRule
	channels map[models.AlertChannelType]interfaces.AlertChannel
	logger   arbor.ILogger

	maxPerHour int
	// sent tracks delivery timestamps per (type, service) key for both the
	// sliding rate window and cooldown checks.
	sent    map[string][]time.Time
	history []models.Alert
	histCap int
	histPos int
	histLen int
}

// NewManager builds a manager with the default rule set and a log channel.
// Additional channels are registered with RegisterChannel.
func NewManager(config common.AlertsConfig, logger arbor.ILogger) *Manager {
	m := &Manager{
		rules:      defaultRules(config.DefaultCooldown),
		channels:   make(map[models.AlertChannelType]interfaces.AlertChannel),
		logger:     logger,
		maxPerHour: config.MaxAlertsPerHour,
		sent:       make(map[string][]time.Time),
		histCap:    config.HistorySize,
	}
	if m.maxPerHour <= 0 {
		m.maxPerHour = 10
	}
	if m.histCap < 500 {
		m.histCap = 500
	}
	m.history = make([]models.Alert, m.histCap)

	m.RegisterChannel(NewLogChannel(logger))
	if config.WebhookURL != "" {
		m.RegisterChannel(NewWebhookChannel(config.WebhookURL, logger))
	}

	return m
}

// RegisterChannel adds or replaces a delivery channel.
func (m *Manager) RegisterChannel(ch interfaces.AlertChannel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Type()] = ch
}

// SetRule installs or replaces the rule for an alert type.
func (m *Manager) SetRule(rule models.AlertRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.Type] = rule
}

// Dispatch applies rule lookup, rate limiting and cooldown, then fans out to
// the rule's channels. Returns true when at least one channel delivered.
func (m *Manager) Dispatch(alert models.Alert) bool {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	m.mu.Lock()
	rule, ok := m.rules[alert.Type]
	if !ok || !rule.Enabled {
		m.mu.Unlock()
		m.logger.Debug().
			Str("alert_type", string(alert.Type)).
			Msg("No enabled rule for alert type, skipping")
		return false
	}

	key := rateKey(alert)
	now := alert.Timestamp

	recent := m.pruneWindow(key, now)
	if len(recent) >= m.maxPerHour {
		m.mu.Unlock()
		m.logger.Warn().
			Str("alert_type", string(alert.Type)).
			Str("service", alert.ServiceName).
			Int("max_per_hour", m.maxPerHour).
			Msg("Alert rate limit reached, dropping")
		return false
	}

	if rule.CooldownPeriod > 0 && len(recent) > 0 {
		last := recent[len(recent)-1]
		if now.Sub(last) < rule.CooldownPeriod {
			m.mu.Unlock()
			m.logger.Debug().
				Str("alert_type", string(alert.Type)).
				Str("service", alert.ServiceName).
				Dur("cooldown", rule.CooldownPeriod).
				Msg("Alert within cooldown period, dropping")
			return false
		}
	}

	channels := make([]interfaces.AlertChannel, 0, len(rule.Channels))
	for _, ct := range rule.Channels {
		if ch, ok := m.channels[ct]; ok {
			channels = append(channels, ch)
		}
	}
	m.mu.Unlock()

	delivered := false
	for _, ch := range channels {
		if ch.Send(alert) {
			delivered = true
		} else {
			m.logger.Warn().
				Str("alert_type", string(alert.Type)).
				Str("channel", string(ch.Type())).
				Msg("Alert channel delivery failed")
		}
	}

	if delivered {
		m.mu.Lock()
		m.sent[key] = append(m.pruneWindow(key, now), now)
		m.record(alert)
		m.mu.Unlock()
	}

	return delivered
}

// GetHistory returns the most recent alerts, newest first, up to limit.
func (m *Manager) GetHistory(limit int) []models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > m.histLen {
		limit = m.histLen
	}

	out := make([]models.Alert, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (m.histPos - 1 - i + m.histCap) % m.histCap
		out = append(out, m.history[idx])
	}
	return out
}

// pruneWindow drops delivery timestamps older than one hour. Must hold m.mu.
func (m *Manager) pruneWindow(key string, now time.Time) []time.Time {
	cutoff := now.Add(-time.Hour)
	times := m.sent[key]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	m.sent[key] = kept
	return kept
}

// record appends to the bounded ring buffer. Must hold m.mu.
func (m *Manager) record(alert models.Alert) {
	m.history[m.histPos] = alert
	m.histPos = (m.histPos + 1) % m.histCap
	if m.histLen < m.histCap {
		m.histLen++
	}
}

func rateKey(alert models.Alert) string {
	service := alert.ServiceName
	if service == "" {
		service = "global"
	}
	return string(alert.Type) + ":" + service
}

func defaultRules(cooldown time.Duration) map[models.AlertType]models.AlertRule {
	rule := func(t models.AlertType, sev models.AlertSeverity) models.AlertRule {
		return models.AlertRule{
			Type:           t,
			Severity:       sev,
			Channels:       []models.AlertChannelType{models.ChannelLog, models.ChannelWebhook},
			Enabled:        true,
			CooldownPeriod: cooldown,
		}
	}

	return map[models.AlertType]models.AlertRule{
		models.AlertCircuitBreakerOpened: rule(models.AlertCircuitBreakerOpened, models.SeverityHigh),
		models.AlertCircuitBreakerClosed: rule(models.AlertCircuitBreakerClosed, models.SeverityLow),
		models.AlertTaskFailure:          rule(models.AlertTaskFailure, models.SeverityMedium),
		models.AlertRateLimitExceeded:    rule(models.AlertRateLimitExceeded, models.SeverityMedium),
		models.AlertDatabaseConnection:   rule(models.AlertDatabaseConnection, models.SeverityCritical),
		models.AlertExternalService:      rule(models.AlertExternalService, models.SeverityHigh),
		models.AlertServiceDegraded:      rule(models.AlertServiceDegraded, models.SeverityHigh),
		models.AlertServiceRecovered:     rule(models.AlertServiceRecovered, models.SeverityLow),
	}
}
