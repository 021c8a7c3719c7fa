package alerts

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/herald/internal/models"
)

// LogChannel writes alerts to the structured log.
type LogChannel struct {
	logger arbor.ILogger
}

func NewLogChannel(logger arbor.ILogger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Type() models.AlertChannelType {
	return models.ChannelLog
}

func (c *LogChannel) Send(alert models.Alert) bool {
	event := c.logger.Warn()
	if alert.Severity == models.SeverityCritical || alert.Severity == models.SeverityHigh {
		event = c.logger.Error()
	}
	event.
		Str("alert_type", string(alert.Type)).
		Str("severity", string(alert.Severity)).
		Str("service", alert.ServiceName).
		Str("correlation_id", alert.CorrelationID).
		Msg(alert.Message)
	return true
}

// WebhookChannel POSTs the alert as JSON to a configured endpoint.
type WebhookChannel struct {
	url    string
	client *http.Client
	logger arbor.ILogger
}

func NewWebhookChannel(url string, logger arbor.ILogger) *WebhookChannel {
	return &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (c *WebhookChannel) Type() models.AlertChannelType {
	return models.ChannelWebhook
}

func (c *WebhookChannel) Send(alert models.Alert) bool {
	payload, err := json.Marshal(alert)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to marshal alert for webhook")
		return false
	}

	resp, err := c.client.Post(c.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		c.logger.Warn().Err(err).Str("url", c.url).Msg("Webhook delivery failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().
			Int("status_code", resp.StatusCode).
			Str("url", c.url).
			Msg("Webhook returned non-2xx status")
		return false
	}
	return true
}
