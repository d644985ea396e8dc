// Package queue decouples the latency-sensitive websocket path from the
// CPU-heavy inference pipeline. The gateway publishes submissions and
// returns immediately; the worker drains them one at a time. Delivery is
// at-least-once with no ordering guarantee across messages.
package queue

import "context"

// Publisher is the gateway side: serialize and hand off, never block on
// inference.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// Message is a leased queue entry. It stays leased until Ack.
type Message struct {
	Body []byte
}

// Consumer is the worker side. Receive blocks until a message or context
// cancellation; an unacked message is redelivered after Recover.
type Consumer interface {
	Receive(ctx context.Context) (Message, error)
	Ack(ctx context.Context, msg Message) error
}
