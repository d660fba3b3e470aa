// Package subscriber wraps one broker subscription per feed: it receives
// push deliveries, decodes and filters them, settles them with the broker
// and hands decoded bars to the owning feed.
package subscriber

import "context"

// Message is one broker delivery. Ack settles the message; Nack permits
// broker-side redelivery.
type Message struct {
	Data []byte
	Ack  func()
	Nack func()
}

// Receiver is one named broker subscription. Receive blocks, invoking
// handler for each delivery, until ctx is cancelled (returning nil) or
// the subscription fails. Handlers run on goroutines owned by the broker
// client and must not block.
type Receiver interface {
	// Exists verifies the subscription is resolvable on the broker.
	Exists(ctx context.Context) (bool, error)
	Receive(ctx context.Context, handler func(context.Context, *Message)) error
}

// Source resolves subscription names to Receivers.
type Source interface {
	Subscription(name string) Receiver
	Close() error
}
