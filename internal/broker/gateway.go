// Package broker defines the thin adapter surface (spec section 4.1, "Broker
// gateway") that the rest of the distributor is built against: connections,
// channels, queue/exchange declaration, publish, subscribe, ack/reject, and
// the handful of error kinds callers need to distinguish. The concrete
// implementation (package amqpgw) wraps github.com/rabbitmq/amqp091-go; the
// fake implementation (package fake) backs unit tests with an in-memory
// broker that actually queues and redelivers messages.
package broker

import (
	"context"
	"errors"
)

// Error kinds from spec section 7 ("Error handling design").
var (
	// ErrBrokerUnavailable is returned when a connection or channel could
	// not be obtained.
	ErrBrokerUnavailable = errors.New("broker: unavailable")

	// ErrQueueConflict is returned when a queue already exists with
	// different parameters than requested.
	ErrQueueConflict = errors.New("broker: queue declared with conflicting parameters")

	// ErrLockContended is returned by DeclareQueue when an exclusive queue
	// is already held by another connection. It is not a failure: it
	// signals that some other peer is currently seeding the pool (spec
	// section 4.2).
	ErrLockContended = errors.New("broker: exclusive queue already held")

	// ErrQueueNotFound is returned by DeclareQueuePassive when the queue
	// does not exist.
	ErrQueueNotFound = errors.New("broker: queue does not exist")
)

// QueueOptions mirrors the durable/exclusive/auto-delete triple spec
// section 4.1 requires declare_queue to accept.
type QueueOptions struct {
	Durable    bool
	Exclusive  bool
	AutoDelete bool
}

// Headers is the (string-valued) header bag attached to a publish or
// observed on a delivery. The only header the distributor defines is
// "peer-id" (spec section 4.4).
type Headers map[string]string

// Delivery is what a subscription handler receives for each message.
type Delivery struct {
	Tag     uint64
	Headers Headers
	Body    []byte
}

// DeliveryHandler processes one delivery. It must not block the channel's
// consume loop for longer than necessary; long work should be handed off.
type DeliveryHandler func(Delivery)

// Connection is a broker connection: the thing a Channel is opened on.
type Connection interface {
	// Channel opens a new channel on this connection.
	Channel() (Channel, error)
	// Close closes the connection. Idempotent.
	Close() error
	// IsClosed reports whether the connection is known to be dead.
	IsClosed() bool
}

// Channel is everything the core needs from a broker channel.
type Channel interface {
	// DeclareQueue declares or asserts compatibility with an existing
	// queue. Returns ErrQueueConflict if an existing queue's parameters
	// differ, or ErrLockContended if an exclusive queue is held elsewhere.
	DeclareQueue(name string, opts QueueOptions) error

	// DeclareQueuePassive probes for a queue's existence without creating
	// it. Returns ErrQueueNotFound if it does not exist.
	DeclareQueuePassive(name string) error

	// DeleteQueue deletes a queue this channel owns (used to release the
	// pool-initializer lock).
	DeleteQueue(name string) error

	// DeclareFanoutExchange idempotently declares a fanout exchange.
	DeclareFanoutExchange(name string) error

	// Bind idempotently binds queue to exchange (default routing key).
	Bind(queue, exchange string) error

	// Publish sends a message via exchange (or the default exchange if
	// exchange is "") with the given routing key.
	Publish(ctx context.Context, exchange, routingKey string, body []byte, headers Headers) error

	// SetPrefetch sets this channel's QoS prefetch count. Must be called
	// before Subscribe.
	SetPrefetch(n int) error

	// Subscribe starts delivering messages from queue to handler and
	// returns the consumer tag identifying the subscription.
	Subscribe(queue string, handler DeliveryHandler) (consumerTag string, err error)

	// Ack acknowledges a single delivery.
	Ack(tag uint64) error

	// RejectRequeue rejects a single delivery and asks the broker to
	// requeue it for redelivery.
	RejectRequeue(tag uint64) error

	// Cancel stops a subscription by consumer tag.
	Cancel(consumerTag string) error

	// Recover asks the broker to redeliver (requeue=true) or resend to the
	// same consumer (requeue=false) any unacknowledged deliveries on this
	// channel.
	Recover(requeue bool) error

	// Close closes the channel. Idempotent, and safe to call on a channel
	// already killed by a protocol error.
	Close() error
}

// Gateway opens connections to the broker. It is the only entry point
// application code needs to construct a Connection.
type Gateway interface {
	Connect(ctx context.Context, url string) (Connection, error)
}
