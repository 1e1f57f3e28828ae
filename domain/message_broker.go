package domain

import (
	"context"
	"time"
)

// TranscriptTopic carries TranscriptEvent payloads keyed by session id.
const TranscriptTopic = "transcript.events"

// MessageBroker defines the interface for message broker operations
type MessageBroker interface {
	// Publish sends a message to every subscriber of topic whose routing key
	// matches routingKey.
	Publish(ctx context.Context, topic string, routingKey string, message []byte) error

	// Subscribe listens on topic. An empty routingKey receives every message
	// of the topic. The channel is closed once ctx is done or the broker is
	// closed.
	Subscribe(ctx context.Context, topic string, routingKey string) (<-chan Envelope, error)

	// Close closes the message broker connection
	Close() error
}

// Envelope represents a message received from the broker
type Envelope struct {
	Topic      string
	RoutingKey string
	Payload    []byte
	Timestamp  time.Time
}

type TranscriptEventType string

const (
	MessageAppended TranscriptEventType = "message"
	SessionEnded    TranscriptEventType = "ended"
)

// TranscriptEvent is published whenever a session's transcript changes.
type TranscriptEvent struct {
	Type      TranscriptEventType `json:"type"`
	SessionID string              `json:"session_id"`
	Seq       int                 `json:"seq"`
	Role      Role                `json:"role,omitempty"`
	Kind      Kind                `json:"kind,omitempty"`
	Text      string              `json:"text,omitempty"`
	Caption   string              `json:"caption,omitempty"`
	MIMEType  string              `json:"mime_type,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// NewMessageEvent describes msg as it was appended to sessionID.
func NewMessageEvent(sessionID string, msg Message) TranscriptEvent {
	ev := TranscriptEvent{
		Type:      MessageAppended,
		SessionID: sessionID,
		Seq:       msg.Seq,
		Role:      msg.Role,
		Kind:      msg.Kind,
		Text:      msg.Text(),
		Caption:   msg.Caption,
		Timestamp: msg.CreatedAt,
	}
	if msg.Image != nil {
		ev.MIMEType = msg.Image.MIMEType
	}
	return ev
}
