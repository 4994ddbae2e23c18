// Package pubsub defines the broadcast channel contract: topic-per-room
// fan-out with at-least-once, unordered, best-effort delivery.
package pubsub

import "encoding/json"

type Event struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type Subscription interface {
	Events() <-chan Event
	Close() error
}
