package interfaces

import (
	"github.com/ternarybob/herald/internal/models"
)

// AlertChannel delivers one alert over a single transport. Send returns false
// on delivery failure; failures never abort fan-out to other channels.
type AlertChannel interface {
	Type() models.AlertChannelType
	Send(alert models.Alert) bool
}

// AlertSink is the narrow dispatch surface components use to emit events.
type AlertSink interface {
	Dispatch(alert models.Alert) bool
}
