package ws

import (
	"time"

	"github.com/cellgate/cellgate/internal/monitor"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	// MessageHealthSnapshot is the current status sent on connect.
	MessageHealthSnapshot MessageType = "health.snapshot"
	// MessageHealthChanged is pushed whenever the gateway's status flips.
	MessageHealthChanged MessageType = "health.changed"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// HealthData is the payload for health messages.
type HealthData struct {
	Status monitor.Status `json:"status"`
}
