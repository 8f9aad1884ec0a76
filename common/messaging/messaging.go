// Package messaging defines the broker abstraction the detection pipeline
// publishes alert lifecycle events through. The NATS implementation lives in
// the nats subpackage; tests substitute in-memory fakes.
package messaging

import (
	"context"
	"time"
)

// Message is a message received from or sent to the broker.
type Message struct {
	Subject   string
	Data      []byte
	Reply     string
	Metadata  map[string]string
	Timestamp time.Time
}

// MessageHandler processes a received message. A returned error is logged by
// the client; core NATS has no redelivery.
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscription is an active subscription to a subject.
type Subscription interface {
	Unsubscribe() error
	Subject() string
	IsValid() bool
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish is fire-and-forget.
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// Subscriber subscribes to subjects.
type Subscriber interface {
	Subscribe(subject string, handler MessageHandler) (Subscription, error)

	// QueueSubscribe load-balances messages across members of the same queue
	// group so each message is processed once.
	QueueSubscribe(subject, queue string, handler MessageHandler) (Subscription, error)

	Close() error
}

// Client combines Publisher and Subscriber.
type Client interface {
	Publisher
	Subscriber

	// Drain closes the connection after in-flight messages complete.
	Drain() error
	IsConnected() bool
}
