package models

import (
	"time"
)

// AlertType identifies the event class an alert reports.
type AlertType string

const (
	AlertCircuitBreakerOpened AlertType = "circuit_breaker_opened"
	AlertCircuitBreakerClosed AlertType = "circuit_breaker_closed"
	AlertTaskFailure          AlertType = "task_failure"
	AlertRateLimitExceeded    AlertType = "rate_limit_exceeded"
	AlertDatabaseConnection   AlertType = "database_connection_failed"
	AlertExternalService      AlertType = "external_service_unavailable"
	AlertServiceDegraded      AlertType = "service_degraded"
	AlertServiceRecovered     AlertType = "service_recovered"
)

// AlertSeverity orders alerts by urgency.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AlertChannelType names a delivery channel.
type AlertChannelType string

const (
	ChannelLog     AlertChannelType = "log"
	ChannelEmail   AlertChannelType = "email"
	ChannelWebhook AlertChannelType = "webhook"
)

// Alert is a single dispatched event.
type Alert struct {
	Type          AlertType              `json:"type"`
	Severity      AlertSeverity          `json:"severity"`
	Message       string                 `json:"message"`
	Details       map[string]interface{} `json:"details,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	ServiceName   string                 `json:"service_name,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

// AlertRule controls whether and where alerts of a given type are delivered.
type AlertRule struct {
	Type           AlertType          `json:"type"`
	Severity       AlertSeverity      `json:"severity"`
	Channels       []AlertChannelType `json:"channels"`
	Enabled        bool               `json:"enabled"`
	CooldownPeriod time.Duration      `json:"cooldown_period"`
}
