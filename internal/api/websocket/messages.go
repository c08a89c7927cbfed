package websocket

import (
	"strings"
	"time"

	"github.com/KevinKickass/OpenGCodeCore/internal/events"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Control messages
	MessageTypeAuth        MessageType = "auth"
	MessageTypeAuthSuccess MessageType = "auth_success"
	MessageTypeAuthFailed  MessageType = "auth_failed"
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeSubscribed  MessageType = "subscribed"
	MessageTypeError       MessageType = "error"

	// Forwarded core event
	MessageTypeEvent MessageType = "event"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Event     string      `json:"event,omitempty"`
	ID        string      `json:"id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data,omitempty"`
}

// clientMessage is what clients send: an auth token or a subscription.
type clientMessage struct {
	Type   MessageType `json:"type"`
	Token  string      `json:"token,omitempty"`
	Events []string    `json:"events,omitempty"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewEventMessage wraps a streamer event for the wire.
func NewEventMessage(ev *events.Event) Message {
	return Message{
		Type:      MessageTypeEvent,
		Event:     ev.Type,
		ID:        ev.ID.String(),
		Timestamp: ev.Timestamp,
		Data:      ev.Payload,
	}
}

// matchesFilter reports whether eventType is selected by filter. An entry
// ending in ".*" selects a whole family ("step.*"); an empty filter selects
// everything.
func matchesFilter(filter []string, eventType string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == eventType || f == "*" {
			return true
		}
		if prefix, ok := strings.CutSuffix(f, "*"); ok && strings.HasPrefix(eventType, prefix) {
			return true
		}
	}
	return false
}
