package messaging

import (
	"context"
)

// Broker is a Publisher owning a connection
type Broker interface {
	Publisher
	Close() error
}

// Publisher defines the interface for publishing messages
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// Message is the envelope published for every outbox event
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
